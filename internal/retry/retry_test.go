package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/product-scraper/internal/fetch"
	"github.com/pricewatch/product-scraper/internal/metrics"
	"github.com/pricewatch/product-scraper/internal/models"
	"github.com/pricewatch/product-scraper/internal/session"
)

type fakePool struct {
	acquired    int
	released    int
	invalidated int
	acquireErr  error
}

func (p *fakePool) Acquire(ctx context.Context) (*session.Session, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.acquired++
	return &session.Session{ID: "fake", CreatedAt: time.Now()}, nil
}

func (p *fakePool) Release(sess *session.Session)    { p.released++ }
func (p *fakePool) Invalidate(sess *session.Session) { p.invalidated++ }

// scriptedExecutor returns one scripted outcome per attempt, in order.
type scriptedExecutor struct {
	errs     []error
	attempts int
}

func (e *scriptedExecutor) Attempt(ctx context.Context, req *models.FetchRequest, sess *session.Session) (models.ScrapeResult, error) {
	idx := e.attempts
	e.attempts++

	if idx < len(e.errs) && e.errs[idx] != nil {
		return models.ScrapeResult{}, e.errs[idx]
	}

	record := models.DefaultRecord("myntra", models.AvailabilityInStock)
	record.ID = req.Key
	return models.Succeeded(&record), nil
}

func newTestController(pool *fakePool, executor fetch.Executor, maxAttempts int) *Controller {
	return NewController(pool, executor, Options{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
	}, metrics.New())
}

func testRequest() *models.FetchRequest {
	return &models.FetchRequest{CorrelationID: "test", Site: "myntra", URL: "https://www.myntra.com/products/12345678", Key: "12345678"}
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	pool := &fakePool{}
	executor := &scriptedExecutor{}
	c := newTestController(pool, executor, 3)

	result := c.Execute(context.Background(), testRequest())

	require.True(t, result.Success)
	assert.Equal(t, 1, executor.attempts)
	assert.Equal(t, 1, pool.released)
	assert.Equal(t, 0, pool.invalidated)
}

func TestExecuteShortCircuitsOnSuccess(t *testing.T) {
	pool := &fakePool{}
	executor := &scriptedExecutor{errs: []error{fetch.ErrNavigationTimeout, nil}}
	c := newTestController(pool, executor, 4)

	result := c.Execute(context.Background(), testRequest())

	require.True(t, result.Success)
	assert.Equal(t, 2, executor.attempts, "must stop at the first success")
	assert.Equal(t, 1, pool.invalidated, "failed attempt invalidates its session")
	assert.Equal(t, 1, pool.released)
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	pool := &fakePool{}
	executor := &scriptedExecutor{errs: []error{
		fetch.ErrNavigationTimeout,
		fetch.ErrBotBlocked,
		fetch.ErrSessionBroken,
	}}
	c := newTestController(pool, executor, 3)

	result := c.Execute(context.Background(), testRequest())

	require.False(t, result.Success)
	assert.Equal(t, "exhausted retries", result.Error)
	assert.Contains(t, result.Details, "3 attempts")
	assert.Equal(t, 3, executor.attempts, "exactly max attempts, no more")
	assert.Equal(t, 3, pool.invalidated)
	assert.Equal(t, 0, pool.released)
}

func TestExecuteStopsOnNonRetryableError(t *testing.T) {
	pool := &fakePool{}
	executor := &scriptedExecutor{errs: []error{fetch.ErrUnsupportedSite}}
	c := newTestController(pool, executor, 3)

	result := c.Execute(context.Background(), testRequest())

	require.False(t, result.Success)
	assert.Equal(t, "fetch failed", result.Error)
	assert.Equal(t, 1, executor.attempts)
}

func TestExecuteEngineUnavailable(t *testing.T) {
	pool := &fakePool{acquireErr: errors.New("browser binary missing")}
	executor := &scriptedExecutor{}
	c := newTestController(pool, executor, 3)

	result := c.Execute(context.Background(), testRequest())

	require.False(t, result.Success)
	assert.Equal(t, "engine unavailable", result.Error)
	assert.Contains(t, result.Details, "browser binary missing")
	assert.Equal(t, 0, executor.attempts)
}

func TestExecuteRespectsContextDeadline(t *testing.T) {
	pool := &fakePool{}
	executor := &scriptedExecutor{errs: []error{
		fetch.ErrNavigationTimeout,
		fetch.ErrNavigationTimeout,
		fetch.ErrNavigationTimeout,
	}}
	c := NewController(pool, executor, Options{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
	}, metrics.New())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := c.Execute(ctx, testRequest())

	require.False(t, result.Success)
	assert.Equal(t, "deadline exceeded", result.Error)
	assert.Less(t, executor.attempts, 3)
}

func TestExecuteRequestAttemptOverride(t *testing.T) {
	pool := &fakePool{}
	executor := &scriptedExecutor{errs: []error{
		fetch.ErrNavigationTimeout,
		fetch.ErrNavigationTimeout,
		fetch.ErrNavigationTimeout,
		fetch.ErrNavigationTimeout,
		fetch.ErrNavigationTimeout,
	}}
	c := newTestController(pool, executor, 3)

	req := testRequest()
	req.MaxAttempts = 5

	result := c.Execute(context.Background(), req)

	require.False(t, result.Success)
	assert.Equal(t, 5, executor.attempts)
}
