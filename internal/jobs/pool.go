// Package jobs runs fire-and-forget background work on a bounded pool.
//
// Feed replenishment and deep sweeps must not block request handling, but
// unbounded goroutine spawning hides failures and lets load spikes pile up
// invisibly. The pool gives that work a fixed number of workers, a bounded
// queue, named jobs with IDs in every log line, and panic recovery.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultWorkers is the default number of concurrent workers.
	DefaultWorkers = 4

	// DefaultQueueSize is the default pending-job queue capacity.
	DefaultQueueSize = 64
)

// Job is one unit of background work. The context is cancelled when the
// pool shuts down.
type Job struct {
	// Name identifies the kind of work for logs and metrics.
	Name string

	// Key scopes the job to a query or resource, for log correlation.
	Key string

	// Run does the work. Errors are logged, never propagated.
	Run func(ctx context.Context) error
}

// Pool is a bounded worker pool for background jobs.
type Pool struct {
	queue  chan queuedJob
	logger zerolog.Logger

	// onDone is called after each job with its outcome, for metrics.
	onDone func(name string, err error, took time.Duration)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type queuedJob struct {
	id  string
	job Job
}

// Option configures a Pool.
type Option func(*Pool)

// WithCompletionHook registers a callback invoked after every job.
func WithCompletionHook(fn func(name string, err error, took time.Duration)) Option {
	return func(p *Pool) { p.onDone = fn }
}

// NewPool starts a pool with the given worker count and queue capacity.
// Non-positive values fall back to the defaults.
func NewPool(workers, queueSize int, logger zerolog.Logger, opts ...Option) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan queuedJob, queueSize),
		logger: logger.With().Str("component", "jobpool").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a job without blocking. Returns false when the queue is
// full or the pool is shut down; the caller decides whether dropping the
// work matters.
func (p *Pool) Submit(job Job) bool {
	qj := queuedJob{id: uuid.NewString(), job: job}

	// The send must happen under the same lock as the closed check, or a
	// concurrent Shutdown can close the queue between the two and the send
	// panics.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}

	select {
	case p.queue <- qj:
		p.logger.Debug().
			Str("job_id", qj.id).
			Str("job", job.Name).
			Str("key", job.Key).
			Msg("job queued")
		return true
	default:
		p.logger.Warn().
			Str("job", job.Name).
			Str("key", job.Key).
			Msg("job queue full, dropping job")
		return false
	}
}

// Shutdown stops accepting jobs, cancels running ones, and waits for the
// workers to exit or the context to be done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for qj := range p.queue {
		p.runOne(qj)
	}
}

func (p *Pool) runOne(qj queuedJob) {
	logger := p.logger.With().
		Str("job_id", qj.id).
		Str("job", qj.job.Name).
		Str("key", qj.job.Key).
		Logger()

	start := time.Now()
	var err error

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("job panicked")
			}
		}()
		err = qj.job.Run(p.ctx)
	}()

	took := time.Since(start)
	if p.onDone != nil {
		p.onDone(qj.job.Name, err, took)
	}

	if err != nil {
		logger.Warn().Err(err).Dur("took", took).Msg("job failed")
		return
	}
	logger.Debug().Dur("took", took).Msg("job finished")
}
