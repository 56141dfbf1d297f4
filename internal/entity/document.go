package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/medimage2report/constants"
)

// Document is one uploaded PDF and its processing status.
type Document struct {
	ID               uuid.UUID                `json:"id"`
	OwnerID          string                   `json:"owner_id"`
	OriginalFilename string                   `json:"original_filename"`
	Content          []byte                   `json:"-"`
	ContentSHA256    string                   `json:"content_sha256"`
	Status           constants.DocumentStatus `json:"status"`
	UploadedAt       time.Time                `json:"uploaded_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// DocumentSummary is the listing shape of a document: everything but the bytes,
// plus the id of its latest report if one exists.
type DocumentSummary struct {
	Document
	LatestReportID *uuid.UUID `json:"latest_report_id,omitempty"`
}
