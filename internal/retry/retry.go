package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pricewatch/product-scraper/internal/fetch"
	"github.com/pricewatch/product-scraper/internal/metrics"
	"github.com/pricewatch/product-scraper/internal/models"
	"github.com/pricewatch/product-scraper/internal/session"
)

// SessionPool is the slice of the session pool the controller needs.
type SessionPool interface {
	Acquire(ctx context.Context) (*session.Session, error)
	Release(sess *session.Session)
	Invalidate(sess *session.Session)
}

type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Controller drives a fetch request through bounded attempts. A broken
// session is invalidated rather than returned, so a fresh one backs the
// next attempt.
type Controller struct {
	pool     SessionPool
	executor fetch.Executor
	opts     Options
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewController(pool SessionPool, executor fetch.Executor, opts Options, m *metrics.Metrics) *Controller {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 5 * time.Second
	}

	return &Controller{
		pool:     pool,
		executor: executor,
		opts:     opts,
		metrics:  m,
		logger:   slog.Default().With("component", "retry-controller"),
	}
}

// Execute runs up to MaxAttempts attempts for the request. The first
// success wins. Non-retryable errors and an unavailable engine end the
// loop immediately; everything surfaces as a result, never an error.
func (c *Controller) Execute(ctx context.Context, req *models.FetchRequest) models.ScrapeResult {
	maxAttempts := c.opts.MaxAttempts
	if req.MaxAttempts > 0 {
		maxAttempts = req.MaxAttempts
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.Failure("deadline exceeded", err.Error())
		}

		if attempt > 1 {
			c.metrics.IncRetry()
			delay := time.Duration(attempt-1) * c.opts.BaseDelay
			c.logger.Info("retrying fetch",
				"correlation_id", req.CorrelationID,
				"attempt", attempt,
				"delay", delay.String(),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return models.Failure("deadline exceeded", ctx.Err().Error())
			}
		}

		sess, err := c.pool.Acquire(ctx)
		if err != nil {
			// No browser to work with; the caller decides whether a
			// degraded path can serve the request instead.
			return models.Failure("engine unavailable", err.Error())
		}
		c.metrics.IncSession("acquired")

		result, err := c.executor.Attempt(ctx, req, sess)
		if err == nil {
			c.pool.Release(sess)
			c.metrics.IncSession("released")
			return result
		}

		c.pool.Invalidate(sess)
		c.metrics.IncSession("invalidated")
		lastErr = err

		if !fetch.Retryable(err) {
			return models.Failure("fetch failed", err.Error())
		}

		c.logger.Warn("attempt failed",
			"correlation_id", req.CorrelationID,
			"attempt", attempt,
			"error", err.Error(),
		)
	}

	return models.Failure("exhausted retries",
		fmt.Sprintf("gave up after %d attempts: %v", maxAttempts, lastErr))
}
