package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/medimage2report/internal/pipeline"
)

// DocumentProcessor is satisfied by *pipeline.Processor.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID uuid.UUID, opts pipeline.Options) (pipeline.Outcome, error)
}

// ProcessorQueue runs queued jobs on a fixed pool of workers. The worker count
// bounds how many LLM calls are in flight at once.
type ProcessorQueue struct {
	proc    DocumentProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// stopping closes before Shutdown takes mu; it wakes enqueuers blocked on a full ch.
	stopping chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

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
			q.ch = make(chan Job, n)
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

func NewProcessorQueue(proc DocumentProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:     proc,
		logger:   logger,
		workers:  4,
		timeout:  5 * time.Minute,
		ch:       make(chan Job, 256),
		stopping: make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	waited := time.Since(job.SubmittedAt)
	out, err := q.proc.Process(ctx, job.DocumentID, pipeline.Options{Language: job.Language, Provider: job.Provider})
	if err != nil {
		q.logger.Error("queue.job.failed",
			"worker_id", workerID,
			"document_id", job.DocumentID,
			"trace_id", job.TraceID,
			"status", out.Status,
			"err", err,
		)
		return
	}
	q.logger.Info("queue.job.ok",
		"worker_id", workerID,
		"document_id", job.DocumentID,
		"trace_id", job.TraceID,
		"wait_ms", waited.Milliseconds(),
		"elapsed_ms", out.Duration.Milliseconds(),
	)
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.rejected", "document_id", job.DocumentID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueue.ok", "document_id", job.DocumentID, "provider", job.Provider)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "document_id", job.DocumentID)
	select {
	case q.ch <- job:
		return nil
	case <-q.stopping:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.stopOnce.Do(func() { close(q.stopping) })
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
