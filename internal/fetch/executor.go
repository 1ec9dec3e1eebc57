// Package fetch performs single fetch attempts: one via a pooled
// browser session, one via a plain HTTP client when no engine is
// available. Retrying belongs to the retry controller, not here.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/pricewatch/product-scraper/internal/extractor"
	"github.com/pricewatch/product-scraper/internal/metrics"
	"github.com/pricewatch/product-scraper/internal/models"
	"github.com/pricewatch/product-scraper/internal/session"
)

// Executor performs one attempt of a FetchRequest against a session.
// A nil error means the attempt produced a result; a non-nil error is
// classified by Retryable.
type Executor interface {
	Attempt(ctx context.Context, req *models.FetchRequest, sess *session.Session) (models.ScrapeResult, error)
}

// botSignatures mark block and CAPTCHA interstitials. Matching pages
// fail the attempt so the retry controller can start over with a
// clean session.
var botSignatures = []string{
	"captcha",
	"are you a robot",
	"robot check",
	"access denied",
	"unusual traffic",
	"verify you are a human",
}

type BrowserExecutorOptions struct {
	NavTimeout time.Duration
	// JitterMax bounds the random pre-navigation delay.
	JitterMax time.Duration
}

// BrowserExecutor navigates a pooled session to the target page and
// hands the rendered markup to the site extractor.
type BrowserExecutor struct {
	extractors *extractor.Registry
	opts       BrowserExecutorOptions
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewBrowserExecutor(extractors *extractor.Registry, opts BrowserExecutorOptions, m *metrics.Metrics) *BrowserExecutor {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 45 * time.Second
	}
	if opts.JitterMax <= 0 {
		opts.JitterMax = 1500 * time.Millisecond
	}

	return &BrowserExecutor{
		extractors: extractors,
		opts:       opts,
		metrics:    m,
		logger:     slog.Default().With("component", "fetch-executor"),
	}
}

func (e *BrowserExecutor) Attempt(ctx context.Context, req *models.FetchRequest, sess *session.Session) (models.ScrapeResult, error) {
	ext, err := e.extractors.Lookup(req.Site)
	if err != nil {
		return models.ScrapeResult{}, fmt.Errorf("%w: %s", ErrUnsupportedSite, req.Site)
	}

	start := time.Now()
	defer func() {
		e.metrics.ObserveAttempt(time.Since(start))
	}()

	// Small random delay so attempts do not land on a fixed
	// interval.
	if err := e.jitter(ctx); err != nil {
		return models.ScrapeResult{}, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
	}

	nav, err := sess.Page.Navigate(req.URL, session.NavigateOptions{
		Timeout:   e.opts.NavTimeout,
		WaitUntil: e.waitCondition(),
	})
	if err != nil {
		if isTimeout(err) {
			return models.ScrapeResult{}, fmt.Errorf("%w: %v", ErrNavigationTimeout, err)
		}
		return models.ScrapeResult{}, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
	}

	if nav == nil || nav.Status == 0 {
		return models.ScrapeResult{}, fmt.Errorf("%w: no response received", ErrNavigationFailed)
	}
	if nav.Status < 200 || nav.Status > 299 {
		return models.ScrapeResult{}, fmt.Errorf("%w: status %d", ErrBadStatus, nav.Status)
	}

	title, err := sess.Page.Title()
	if err != nil {
		return models.ScrapeResult{}, fmt.Errorf("%w: %v", ErrSessionBroken, err)
	}

	content, err := sess.Page.Content()
	if err != nil {
		return models.ScrapeResult{}, fmt.Errorf("%w: %v", ErrSessionBroken, err)
	}

	if sig, blocked := blockedBy(title, content); blocked {
		return models.ScrapeResult{}, fmt.Errorf("%w: matched %q", ErrBotBlocked, sig)
	}

	record := ext.Extract(content)
	record.ID = req.Key

	e.logger.Debug("attempt succeeded",
		"correlation_id", req.CorrelationID,
		"url", req.URL,
		"elapsed", time.Since(start),
	)

	return models.Succeeded(&record), nil
}

func (e *BrowserExecutor) jitter(ctx context.Context) error {
	delay := time.Duration(rand.Int63n(int64(e.opts.JitterMax)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// waitCondition is randomized across attempts so wait behavior does
// not become part of the request signature.
func (e *BrowserExecutor) waitCondition() session.WaitCondition {
	if rand.Intn(2) == 0 {
		return session.WaitDOMContentLoaded
	}
	return session.WaitLoad
}

func blockedBy(title, content string) (string, bool) {
	loweredTitle := strings.ToLower(title)
	loweredContent := strings.ToLower(content)

	for _, sig := range botSignatures {
		if strings.Contains(loweredTitle, sig) || strings.Contains(loweredContent, sig) {
			return sig, true
		}
	}
	return "", false
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
