package entity

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingError records one failed attempt. Append-only.
type ProcessingError struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	AttemptID  uuid.UUID `json:"attempt_id"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
