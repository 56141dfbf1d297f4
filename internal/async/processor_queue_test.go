package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/medimage2report/internal/pipeline"
)

type recordingProcessor struct {
	mu       sync.Mutex
	seen     map[uuid.UUID]pipeline.Options
	inflight int
	peak     int
	delay    time.Duration
	fail     bool
}

func (p *recordingProcessor) Process(ctx context.Context, id uuid.UUID, opts pipeline.Options) (pipeline.Outcome, error) {
	p.mu.Lock()
	p.inflight++
	if p.inflight > p.peak {
		p.peak = p.inflight
	}
	p.mu.Unlock()

	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight--
	if p.seen == nil {
		p.seen = map[uuid.UUID]pipeline.Options{}
	}
	p.seen[id] = opts
	if p.fail {
		return pipeline.Outcome{DocumentID: id}, errors.New("boom")
	}
	return pipeline.Outcome{DocumentID: id}, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestQueueDrainsOnShutdown(t *testing.T) {
	proc := &recordingProcessor{delay: 5 * time.Millisecond}
	q := NewProcessorQueue(proc, quiet(), WithWorkers(2), WithQueueSize(8))

	ids := make([]uuid.UUID, 6)
	for i := range ids {
		ids[i] = uuid.New()
		if err := q.Enqueue(context.Background(), Job{DocumentID: ids[i], Provider: "ollama", Language: "deu"}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if len(proc.seen) != len(ids) {
		t.Fatalf("processed %d jobs, want %d", len(proc.seen), len(ids))
	}
	for _, id := range ids {
		if got := proc.seen[id]; got.Provider != "ollama" || got.Language != "deu" {
			t.Errorf("options for %s = %+v", id, got)
		}
	}
	if proc.peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", proc.peak)
	}
}

func TestQueueRejectsAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&recordingProcessor{}, quiet(), WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{DocumentID: uuid.New()})
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestQueueEnqueueRespectsContextWhenFull(t *testing.T) {
	proc := &recordingProcessor{delay: time.Second}
	q := NewProcessorQueue(proc, quiet(), WithWorkers(1), WithQueueSize(1))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q.Shutdown(ctx)
	}()

	// one job running, one buffered
	_ = q.Enqueue(context.Background(), Job{DocumentID: uuid.New()})
	time.Sleep(20 * time.Millisecond)
	_ = q.Enqueue(context.Background(), Job{DocumentID: uuid.New()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, Job{DocumentID: uuid.New()}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestQueueJobTimeout(t *testing.T) {
	proc := &recordingProcessor{delay: time.Minute, fail: true}
	q := NewProcessorQueue(proc, quiet(), WithWorkers(1), WithProcessTimeout(10*time.Millisecond))
	id := uuid.New()
	if err := q.Enqueue(context.Background(), Job{DocumentID: id}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if _, ok := proc.seen[id]; !ok {
		t.Fatal("job did not finish within its timeout")
	}
}

func TestShutdownReleasesBlockedEnqueue(t *testing.T) {
	proc := &recordingProcessor{delay: time.Second}
	q := NewProcessorQueue(proc, quiet(), WithWorkers(1), WithQueueSize(1))

	_ = q.Enqueue(context.Background(), Job{DocumentID: uuid.New()})
	time.Sleep(20 * time.Millisecond)
	_ = q.Enqueue(context.Background(), Job{DocumentID: uuid.New()})

	errCh := make(chan error, 1)
	go func() { errCh <- q.Enqueue(context.Background(), Job{DocumentID: uuid.New()}) }()
	time.Sleep(20 * time.Millisecond)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q.Shutdown(ctx)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("err = %v, want ErrQueueClosed", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("enqueue stayed blocked after shutdown started")
	}
	<-shutdownDone
}
