package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/docrefine/internal/async"
)

// ProcessorQueue is a fixed pool of workers draining a bounded channel of rewrite jobs.
type ProcessorQueue struct {
	handler async.Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan async.Job
	wg   sync.WaitGroup
	once sync.Once

	// base parents every job context; canceled when a shutdown deadline passes
	base  context.Context
	abort context.CancelFunc

	mu     sync.Mutex
	closed bool
}

var _ async.Queue = (*ProcessorQueue)(nil)

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan async.Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(handler async.Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		handler: handler,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan async.Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.base, q.abort = context.WithCancel(context.Background())
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job async.Job) {
	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	defer cancel()

	start := time.Now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		err = q.handler.Process(ctx, job)
	}()

	if err != nil {
		q.logger.Error("processing failed",
			"worker_id", workerID, "document_id", job.DocumentID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return
	}
	q.logger.Info("processed document successfully",
		"worker_id", workerID, "document_id", job.DocumentID,
		"queued_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"elapsed_ms", time.Since(start).Milliseconds())
}

// Enqueue hands job to the workers without waiting: a full buffer yields
// async.ErrQueueFull so the caller can shed load instead of stalling.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job async.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "document_id", job.DocumentID)
		return async.ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued document for processing", "document_id", job.DocumentID, "style", job.Style)
		return nil
	default:
		q.logger.Warn("queue full, rejecting document", "document_id", job.DocumentID, "capacity", cap(q.ch))
		return async.ErrQueueFull
	}
}

// Full reports whether Enqueue would currently be rejected.
func (q *ProcessorQueue) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed || len(q.ch) >= cap(q.ch)
}

// Pending reports how many jobs are waiting for a worker.
func (q *ProcessorQueue) Pending() int {
	return len(q.ch)
}

// Shutdown stops intake and waits for the workers to drain the buffer. When
// ctx ends first, in-flight and remaining jobs are canceled so each records a
// terminal status, and Shutdown still returns only after every worker exited.
func (q *ProcessorQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.wg.Wait()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-done:
		q.abort()
		q.logger.Info("queue drained, shutdown complete")
		return nil
	case <-ctx.Done():
	}

	q.logger.Warn("shutdown deadline passed, canceling remaining jobs", "pending", len(q.ch))
	q.abort()
	<-done
	q.logger.Info("workers stopped after cancel")
	return ctx.Err()
}
