package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has begun.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks for one processing attempt of a stored document.
type Job struct {
	DocumentID  uuid.UUID
	Language    string // OCR language; empty means the processor default
	Provider    string // LLM provider; empty means the processor default
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
