package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pricewatch/product-scraper/internal/cache"
	"github.com/pricewatch/product-scraper/internal/extractor"
	"github.com/pricewatch/product-scraper/internal/fetch"
	"github.com/pricewatch/product-scraper/internal/metrics"
	"github.com/pricewatch/product-scraper/internal/models"
	"github.com/pricewatch/product-scraper/internal/retry"
	"github.com/pricewatch/product-scraper/internal/scheduler"
	"github.com/pricewatch/product-scraper/internal/store"
)

// HistoryStore records and reads price observations. Nil-able: a
// deployment without Postgres simply skips history.
type HistoryStore interface {
	RecordPrice(ctx context.Context, productID, price string) error
	PriceHistory(ctx context.Context, productID string) ([]store.PricePoint, error)
}

// ResultMirror persists scrape results beyond process lifetime.
type ResultMirror interface {
	Persist(ctx context.Context, key string, entry cache.Entry)
	ListAll(ctx context.Context) ([]cache.KeyedEntry, error)
}

type Options struct {
	RequestDeadline time.Duration
	MaxAttempts     int
}

// Scraper is the front door: it resolves targets, consults the cache,
// queues browser work, and falls back to plain HTTP when no engine is
// available.
type Scraper struct {
	extractors *extractor.Registry
	cache      *cache.Cache
	sched      *scheduler.Scheduler
	retrier    *retry.Controller
	fallback   *fetch.Fallback
	history    HistoryStore
	mirror     ResultMirror
	opts       Options
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewScraper(
	extractors *extractor.Registry,
	resultCache *cache.Cache,
	sched *scheduler.Scheduler,
	retrier *retry.Controller,
	fallback *fetch.Fallback,
	opts Options,
	m *metrics.Metrics,
) *Scraper {
	if opts.RequestDeadline <= 0 {
		opts.RequestDeadline = 90 * time.Second
	}

	return &Scraper{
		extractors: extractors,
		cache:      resultCache,
		sched:      sched,
		retrier:    retrier,
		fallback:   fallback,
		opts:       opts,
		metrics:    m,
		logger:     slog.Default().With("component", "scrape-service"),
	}
}

// WithHistory attaches a price history store.
func (s *Scraper) WithHistory(h HistoryStore) *Scraper {
	s.history = h
	return s
}

// WithMirror attaches a durable result mirror.
func (s *Scraper) WithMirror(m ResultMirror) *Scraper {
	s.mirror = m
	return s
}

// ScrapeProduct serves one product lookup. Accepts a full product URL
// or a bare numeric ID; the site extractor normalizes either into a
// canonical URL and cache key.
func (s *Scraper) ScrapeProduct(ctx context.Context, site, target string) models.ScrapeResult {
	ext, err := s.extractors.Lookup(site)
	if err != nil {
		return models.Failure("unsupported website", err.Error())
	}

	resolved, err := ext.ResolveURL(target)
	if err != nil {
		return models.Failure("invalid target", err.Error())
	}

	key := ext.DeriveKey(resolved)

	if result, ok := s.cache.Get(key); ok {
		s.metrics.IncCache("hit")
		s.logger.Info("cache hit", "site", site, "key", key)
		return result
	}
	s.metrics.IncCache("miss")

	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestDeadline)
	defer cancel()

	req := &models.FetchRequest{
		CorrelationID: uuid.New().String(),
		Site:          site,
		URL:           resolved,
		Key:           key,
		MaxAttempts:   s.opts.MaxAttempts,
	}

	s.logger.Info("scraping product",
		"correlation_id", req.CorrelationID,
		"site", site,
		"url", resolved,
		"key", key,
	)

	result := s.sched.Do(ctx, func(jobCtx context.Context) models.ScrapeResult {
		return s.retrier.Execute(jobCtx, req)
	})

	if !result.Success && result.Error == "engine unavailable" && s.fallback != nil {
		s.logger.Warn("engine unavailable, trying HTTP fallback",
			"correlation_id", req.CorrelationID,
		)
		if fbResult, fbErr := s.fallback.Fetch(ctx, req); fbErr == nil {
			result = fbResult
		} else {
			s.logger.Error("fallback failed",
				"correlation_id", req.CorrelationID,
				"error", fbErr.Error(),
			)
		}
	}

	if result.Success {
		s.metrics.IncRequest("success")
		entry := s.cache.Put(key, result)
		s.persist(ctx, key, entry, result.Data)
	} else {
		s.metrics.IncRequest("failure")
	}

	return result
}

// persist fans the fresh result out to the durable stores. Failures
// degrade to log lines; the caller already has the result in hand.
func (s *Scraper) persist(ctx context.Context, key string, entry cache.Entry, record *models.ProductRecord) {
	if s.mirror != nil {
		s.mirror.Persist(ctx, key, entry)
	}

	if s.history != nil && record != nil {
		if err := s.history.RecordPrice(ctx, record.ID, record.Price); err != nil {
			s.logger.Error("failed to record price", "product_id", record.ID, "error", err.Error())
		}
	}
}

// PriceHistory returns stored observations for a product.
func (s *Scraper) PriceHistory(ctx context.Context, productID string) ([]store.PricePoint, error) {
	if s.history == nil {
		return []store.PricePoint{}, nil
	}
	return s.history.PriceHistory(ctx, productID)
}

// Export returns everything currently known: the live cache plus any
// mirrored entries not resident in memory.
func (s *Scraper) Export(ctx context.Context) []cache.KeyedEntry {
	entries := s.cache.Entries()
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Key] = struct{}{}
	}

	if s.mirror != nil {
		mirrored, err := s.mirror.ListAll(ctx)
		if err != nil {
			s.logger.Error("failed to list mirrored entries", "error", err.Error())
			return entries
		}
		for _, e := range mirrored {
			if _, ok := seen[e.Key]; !ok {
				entries = append(entries, e)
			}
		}
	}

	return entries
}
