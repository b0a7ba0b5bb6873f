package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/leadstream/internal/provider"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("enrichment queue is shutting down")

// Job is one dispatched enrichment batch.
type Job struct {
	BatchID  uuid.UUID
	UploadID int64
	Items    []provider.RequestItem
}

// JobFunc runs a job. A returned error or panic is passed to the failure func.
type JobFunc func(ctx context.Context, job Job) error

// FailFunc settles a job that could not complete.
type FailFunc func(ctx context.Context, job Job, cause error)

// Queue is a fixed pool of workers draining a buffered channel. Jobs run detached
// from the context that enqueued them.
type Queue struct {
	run     JobFunc
	fail    FailFunc
	logger  *zap.Logger
	workers int
	timeout time.Duration

	ch chan Job
	// slots holds one token per buffered job. Enqueue waits on it without holding mu.
	slots chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex
	closed bool
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithWorkers sets the number of workers.
func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithQueueSize sets how many jobs may wait for a worker.
func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithJobTimeout bounds each job run.
func WithJobTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewQueue starts the workers immediately.
func NewQueue(run JobFunc, fail FailFunc, logger *zap.Logger, opts ...QueueOption) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		run:     run,
		fail:    fail,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 256),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.slots = make(chan struct{}, cap(q.ch))
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("enrichment worker started", zap.Int("worker_id", workerID))
				for job := range q.ch {
					<-q.slots
					q.handle(workerID, job)
				}
				q.logger.Debug("enrichment worker stopped", zap.Int("worker_id", workerID))
			}(i + 1)
		}
	})
}

func (q *Queue) handle(workerID int, job Job) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	err := q.safeRun(ctx, job)
	cancel()

	if err == nil {
		q.logger.Info("enrichment batch processed",
			zap.Int("worker_id", workerID),
			zap.String("batch_id", job.BatchID.String()),
			zap.Int64("upload_id", job.UploadID),
			zap.Duration("elapsed", time.Since(started)),
		)
		return
	}

	q.logger.Error("enrichment batch failed",
		zap.Int("worker_id", workerID),
		zap.String("batch_id", job.BatchID.String()),
		zap.Int64("upload_id", job.UploadID),
		zap.Error(err),
	)
	// The job context may already be expired; settling gets a fresh one.
	failCtx, failCancel := context.WithTimeout(context.Background(), q.timeout)
	defer failCancel()
	q.safeFail(failCtx, job, err)
}

func (q *Queue) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("enrichment job panicked: %v", p)
		}
	}()
	return q.run(ctx, job)
}

func (q *Queue) safeFail(ctx context.Context, job Job, cause error) {
	defer func() {
		if p := recover(); p != nil {
			q.logger.Error("enrichment failure handler panicked",
				zap.String("batch_id", job.BatchID.String()),
				zap.Any("panic", p),
			)
		}
	}()
	q.fail(ctx, job, cause)
}

// Enqueue hands job to the workers. It blocks while the buffer is full until ctx is done
// or the queue shuts down.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.slots <- struct{}{}:
	default:
		q.logger.Warn("enrichment queue full, applying backpressure", zap.String("batch_id", job.BatchID.String()))
		select {
		case q.slots <- struct{}{}:
		case <-q.done:
			return ErrQueueClosed
		case <-ctx.Done():
			return fmt.Errorf("failed to enqueue enrichment batch: %w", ctx.Err())
		}
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		<-q.slots
		return ErrQueueClosed
	}
	// A held slot guarantees buffer space, so this send never blocks.
	q.ch <- job
	q.logger.Debug("queued enrichment batch",
		zap.String("batch_id", job.BatchID.String()),
		zap.Int("items", len(job.Items)),
	)
	return nil
}

// Shutdown stops intake and waits for queued jobs until ctx is done. Jobs that do not
// finish stay unsettled for the recovery sweep.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("enrichment queue shutdown interrupted", zap.Error(ctx.Err()))
		return ctx.Err()
	case <-done:
		q.logger.Info("enrichment queue drained")
		return nil
	}
}
