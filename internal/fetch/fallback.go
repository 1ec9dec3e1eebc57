package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pricewatch/product-scraper/internal/extractor"
	"github.com/pricewatch/product-scraper/internal/metrics"
	"github.com/pricewatch/product-scraper/internal/models"
)

const fallbackBodyLimit = 2 << 20 // 2 MiB safety cap

type FallbackOptions struct {
	MaxRedirects int
	Identity     string
	Timeout      time.Duration
}

// Fallback fetches pages with a plain HTTP client when engine-based
// fetching is unavailable. It does not queue through the scheduler;
// per-host token buckets keep it polite on their own.
type Fallback struct {
	client     *http.Client
	extractors *extractor.Registry
	opts       FallbackOptions
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewFallback(extractors *extractor.Registry, opts FallbackOptions, m *metrics.Metrics) *Fallback {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	f := &Fallback{
		extractors: extractors,
		opts:       opts,
		metrics:    m,
		logger:     slog.Default().With("component", "fallback-fetcher"),
		limiters:   make(map[string]*rate.Limiter),
	}

	f.client = &http.Client{
		Timeout: opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= opts.MaxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}

	return f
}

// Fetch retrieves the target with a single GET and applies the site
// extractor to the raw body. No internal retry: rejection on non-2xx
// is final for this path.
func (f *Fallback) Fetch(ctx context.Context, req *models.FetchRequest) (models.ScrapeResult, error) {
	ext, err := f.extractors.Lookup(req.Site)
	if err != nil {
		return models.ScrapeResult{}, fmt.Errorf("%w: %s", ErrUnsupportedSite, req.Site)
	}

	if err := f.waitHost(ctx, req.URL); err != nil {
		return models.ScrapeResult{}, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return models.ScrapeResult{}, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
	}

	httpReq.Header.Set("User-Agent", f.opts.Identity)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.5")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		switch {
		case errors.Is(err, ErrTooManyRedirects):
			return models.ScrapeResult{}, fmt.Errorf("%w: %s", ErrTooManyRedirects, req.URL)
		case isTimeout(err):
			return models.ScrapeResult{}, fmt.Errorf("%w: %v", ErrNavigationTimeout, err)
		default:
			return models.ScrapeResult{}, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.ScrapeResult{}, fmt.Errorf("%w: status %d", ErrBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fallbackBodyLimit))
	if err != nil {
		return models.ScrapeResult{}, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
	}

	content := string(body)
	if sig, blocked := blockedBy("", content); blocked {
		return models.ScrapeResult{}, fmt.Errorf("%w: matched %q", ErrBotBlocked, sig)
	}

	f.metrics.IncFallback()

	record := ext.Extract(content)
	record.ID = req.Key

	f.logger.Info("served via HTTP fallback",
		"correlation_id", req.CorrelationID,
		"url", req.URL,
	)

	return models.Succeeded(&record), nil
}

// waitHost blocks on the per-host token bucket (1 req/s, burst 1).
func (f *Fallback) waitHost(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}

	host := strings.ToLower(parsed.Host)

	f.mu.Lock()
	limiter, ok := f.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Second), 1)
		f.limiters[host] = limiter
	}
	f.mu.Unlock()

	return limiter.Wait(ctx)
}
