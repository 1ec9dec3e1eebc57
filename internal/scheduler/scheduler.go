// Package scheduler is the single admission gate for outbound
// fetches. Jobs are serviced strictly in FIFO order by a fixed set of
// workers (one by default), with a pacing delay inserted between the
// completion of one fetch and the start of the next.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pricewatch/product-scraper/internal/models"
	"github.com/pricewatch/product-scraper/internal/ratelimit"
)

// Job produces the result for one admitted fetch. Errors are encoded
// in the returned value, never raised past the worker.
type Job func(ctx context.Context) models.ScrapeResult

type queued struct {
	ctx  context.Context
	run  Job
	done chan models.ScrapeResult
}

// Scheduler owns the queue and workers. Concurrency above one is
// bounded by the session pool; pacing still applies globally.
type Scheduler struct {
	jobs    chan *queued
	stop    chan struct{}
	limiter ratelimit.Limiter
	logger  *slog.Logger

	wg       sync.WaitGroup
	stopMu   sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

func New(concurrency, queueDepth int, limiter ratelimit.Limiter) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueDepth < 1 {
		queueDepth = 256
	}

	s := &Scheduler{
		jobs:    make(chan *queued, queueDepth),
		stop:    make(chan struct{}),
		limiter: limiter,
		logger:  slog.Default().With("component", "scheduler"),
	}

	s.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go s.worker(i)
	}

	return s
}

// Do enqueues fn and blocks until its own result is ready or ctx is
// done. A job abandoned by its caller still completes in the worker;
// the buffered done channel keeps the worker from blocking on it.
// Admission is guarded against shutdown: a job either lands in the
// queue before the scheduler stops accepting work (and is then
// serviced or drained), or is rejected here — it can never be
// stranded.
func (s *Scheduler) Do(ctx context.Context, fn Job) models.ScrapeResult {
	q := &queued{ctx: ctx, run: fn, done: make(chan models.ScrapeResult, 1)}

	s.stopMu.RLock()
	if s.stopped {
		s.stopMu.RUnlock()
		return models.Failure("shutting down", "scheduler no longer accepts work")
	}

	select {
	case s.jobs <- q:
		s.stopMu.RUnlock()
	default:
		s.stopMu.RUnlock()
		return models.Failure("queue full", "admission queue is at capacity")
	}

	select {
	case res := <-q.done:
		return res
	case <-ctx.Done():
		return models.Failure("deadline exceeded", "request deadline elapsed while queued")
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			s.drain()
			s.logger.Debug("worker stopped", "worker", id)
			return
		case q := <-s.jobs:
			s.service(q)
		}
	}
}

func (s *Scheduler) service(q *queued) {
	// Requests whose deadline elapsed while queued are skipped
	// without consuming a pacing slot.
	if err := q.ctx.Err(); err != nil {
		q.done <- models.Failure("deadline exceeded", err.Error())
		return
	}

	if err := s.limiter.Wait(q.ctx); err != nil {
		q.done <- models.Failure("deadline exceeded", err.Error())
		return
	}

	res := s.runJob(q)
	if res.Success {
		s.limiter.RecordSuccess()
	} else {
		s.limiter.RecordError()
	}

	q.done <- res
	s.limiter.Touch()
}

// runJob executes a job, converting a panic into a failure result so
// one bad request can never take the queue down.
func (s *Scheduler) runJob(q *queued) (res models.ScrapeResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "panic", r)
			res = models.Failure("internal error", fmt.Sprintf("panic: %v", r))
		}
	}()

	return q.run(q.ctx)
}

func (s *Scheduler) drain() {
	for {
		select {
		case q := <-s.jobs:
			q.done <- models.Failure("shutting down", "scheduler stopped before this request was admitted")
		default:
			return
		}
	}
}

// Shutdown stops the workers. Jobs still queued resolve with a
// shutdown failure rather than hanging their callers; the write lock
// fences out concurrent admissions before the stop signal fires.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		s.stopMu.Lock()
		s.stopped = true
		s.stopMu.Unlock()
		close(s.stop)
	})
	s.wg.Wait()
}
