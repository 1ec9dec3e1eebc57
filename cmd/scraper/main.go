package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pricewatch/product-scraper/internal/api"
	"github.com/pricewatch/product-scraper/internal/cache"
	"github.com/pricewatch/product-scraper/internal/config"
	"github.com/pricewatch/product-scraper/internal/extractor"
	"github.com/pricewatch/product-scraper/internal/fetch"
	"github.com/pricewatch/product-scraper/internal/metrics"
	"github.com/pricewatch/product-scraper/internal/ratelimit"
	"github.com/pricewatch/product-scraper/internal/retry"
	"github.com/pricewatch/product-scraper/internal/scheduler"
	"github.com/pricewatch/product-scraper/internal/service"
	"github.com/pricewatch/product-scraper/internal/session"
	"github.com/pricewatch/product-scraper/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	// Extractors
	extractors := extractor.NewRegistry()
	extractors.Register(extractor.NewMyntra(cfg.Scraper.DefaultAvailability))

	// Result cache
	resultCache, err := cache.New(cfg.Cache.Capacity, cfg.Cache.TTL)
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}

	// Browser session pool
	factory := session.NewPlaywrightFactory(session.EngineOptions{
		Headless:       cfg.Browser.Headless,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
	})
	pool := session.NewPool(factory, session.PoolOptions{
		Capacity:   cfg.Browser.PoolSize,
		Identities: cfg.Browser.Identities,
	})
	defer pool.Shutdown()

	// Single-lane scheduler with completion-to-start pacing that
	// widens under error streaks
	limiter := ratelimit.NewAdaptiveLimiter(cfg.Scraper.PacingMinDelay, cfg.Scraper.PacingMaxDelay)
	sched := scheduler.New(cfg.Scraper.Concurrency, 0, limiter)
	defer sched.Shutdown()

	executor := fetch.NewBrowserExecutor(extractors, fetch.BrowserExecutorOptions{
		NavTimeout: cfg.Scraper.NavTimeout,
	}, m)
	retrier := retry.NewController(pool, executor, retry.Options{
		MaxAttempts: cfg.Scraper.MaxAttempts,
		BaseDelay:   cfg.Scraper.RetryBaseDelay,
	}, m)

	identity := ""
	if len(cfg.Browser.Identities) > 0 {
		identity = cfg.Browser.Identities[0]
	}
	fallback := fetch.NewFallback(extractors, fetch.FallbackOptions{
		MaxRedirects: cfg.Scraper.FallbackMaxHops,
		Identity:     identity,
	}, m)

	scraper := service.NewScraper(extractors, resultCache, sched, retrier, fallback, service.Options{
		RequestDeadline: cfg.Scraper.RequestDeadline,
		MaxAttempts:     cfg.Scraper.MaxAttempts,
	}, m)

	// Durable stores are optional: skip whatever is not configured.
	if cfg.Store.RedisAddr != "" {
		mirror, err := store.DialMirror(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB, cfg.Cache.TTL)
		if err != nil {
			logger.Error("failed to connect to Redis, continuing without mirror", "error", err)
		} else {
			defer mirror.Close()
			scraper.WithMirror(mirror)
		}
	}
	if cfg.Store.PostgresDSN != "" {
		history, err := store.NewHistory(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			logger.Error("failed to connect to Postgres, continuing without price history", "error", err)
		} else {
			defer history.Close()
			scraper.WithHistory(history)
		}
	}

	// Initialize API handlers
	handlers := api.NewHandlers(scraper, pool, logger)

	// Setup Chi router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.Health)
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	// API Routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/scrape", handlers.ScrapeByQuery)
		r.Post("/scrape", handlers.ScrapeByBody)
		r.Get("/price-history/{productID}", handlers.GetPriceHistory)
		r.Get("/products/export", handlers.ExportProducts)
	})

	// Start server
	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: stop accepting requests, drain the queue,
	// then tear the browser down.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
