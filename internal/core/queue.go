package core

// queue.go is the explicit executor for ingestion jobs: a bounded buffered
// channel drained by a fixed pool of worker goroutines.
//
// Submit never blocks. When the buffer is full the job is rejected with
// ErrQueueFull and the upload stays pending until it is resubmitted
// (see Service.ResumePending). A job whose upload is already queued or
// running is accepted without being enqueued twice. Close stops intake; Wait
// lets workers drain what is already buffered.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrQueueClosed = errors.New("job queue is closed")
)

const (
	DefaultQueueWorkers  = 3
	DefaultQueueCapacity = 100
)

// JobHandler executes one job. Returned errors are logged by the queue.
type JobHandler func(ctx context.Context, job Job) error

// JobQueue runs jobs on a fixed worker pool.
type JobQueue struct {
	jobs    chan Job
	handler JobHandler
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// upload IDs queued or running
	scheduledMu sync.Mutex
	scheduled   map[string]struct{}

	active    atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// NewJobQueue creates a queue. Workers do not run until Start.
func NewJobQueue(workers, capacity int, handler JobHandler) *JobQueue {
	if workers <= 0 {
		workers = DefaultQueueWorkers
	}
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &JobQueue{
		jobs:      make(chan Job, capacity),
		handler:   handler,
		workers:   workers,
		scheduled: make(map[string]struct{}),
	}
}

// Start launches the workers. Jobs run under a context detached from ctx's
// cancellation so shutdown never interrupts a job midway; ctx only supplies
// values.
func (q *JobQueue) Start(ctx context.Context) {
	jobCtx := context.WithoutCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(jobCtx, i+1)
	}
	slog.Info("job queue started", "workers", q.workers, "capacity", cap(q.jobs))
}

// Submit enqueues job without blocking. Submitting an upload that is
// already queued or running is a no-op.
func (q *JobQueue) Submit(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.scheduledMu.Lock()
	defer q.scheduledMu.Unlock()
	if _, ok := q.scheduled[job.UploadID]; ok {
		return nil
	}
	select {
	case q.jobs <- job:
		q.scheduled[job.UploadID] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs. Buffered jobs are still processed.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.jobs)
}

// Wait blocks until every worker has exited or ctx is done. Call Close first.
func (q *JobQueue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for job queue to drain: %w", ctx.Err())
	}
}

func (q *JobQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for job := range q.jobs {
		q.run(ctx, id, job)
	}
	slog.Debug("queue worker stopped", "worker", id)
}

// run executes one job, turning a panic into a failed job.
func (q *JobQueue) run(ctx context.Context, worker int, job Job) {
	q.active.Add(1)
	defer q.active.Add(-1)
	defer q.unschedule(job.UploadID)

	start := time.Now()
	logger := slog.With("worker", worker, "upload_id", job.UploadID)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		return q.handler(ctx, job)
	}()

	if err != nil {
		q.failed.Add(1)
		logger.Error("job failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	q.succeeded.Add(1)
	logger.Debug("job finished", "duration_ms", time.Since(start).Milliseconds())
}

func (q *JobQueue) unschedule(uploadID string) {
	q.scheduledMu.Lock()
	delete(q.scheduled, uploadID)
	q.scheduledMu.Unlock()
}

// QueueStatus is a snapshot of queue state.
type QueueStatus struct {
	Workers   int   `json:"workers"`
	Capacity  int   `json:"capacity"`
	Queued    int   `json:"queued"`
	Active    int64 `json:"active"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Closed    bool  `json:"closed"`
}

// Status returns the current queue state for monitoring.
func (q *JobQueue) Status() QueueStatus {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()

	return QueueStatus{
		Workers:   q.workers,
		Capacity:  cap(q.jobs),
		Queued:    len(q.jobs),
		Active:    q.active.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
		Closed:    closed,
	}
}
