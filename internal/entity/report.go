package entity

import (
	"time"

	"github.com/google/uuid"
)

// LocalizedText holds the short/long report text for one locale.
type LocalizedText struct {
	ShortText string `json:"short_text,omitempty"`
	LongText  string `json:"long_text,omitempty"`
}

// StructuredReport is the persisted outcome of one successful processing attempt.
// Rows are never updated; reprocessing appends a new one.
type StructuredReport struct {
	ID            uuid.UUID                `json:"id"`
	DocumentID    uuid.UUID                `json:"document_id"`
	AttemptID     uuid.UUID                `json:"attempt_id"`
	Company       string                   `json:"company,omitempty"`
	Sequences     string                   `json:"sequences,omitempty"`
	Method        string                   `json:"method,omitempty"`
	Region        string                   `json:"region,omitempty"`
	Modality      string                   `json:"modality,omitempty"`
	ShortText     string                   `json:"short_text,omitempty"`
	LongText      string                   `json:"long_text,omitempty"`
	Quality       string                   `json:"quality,omitempty"`
	Locales       map[string]LocalizedText `json:"locales,omitempty"`
	Provider      string                   `json:"provider"`
	Model         string                   `json:"model,omitempty"`
	SchemaVersion string                   `json:"schema_version"`
	RawResponse   string                   `json:"-"`
	CreatedAt     time.Time                `json:"created_at"`

	Findings []Finding `json:"findings,omitempty"`
}

// Finding is one structured finding listed in a report.
type Finding struct {
	ID           uuid.UUID `json:"id"`
	ReportID     uuid.UUID `json:"report_id"`
	Position     int       `json:"position"`
	FindingType  string    `json:"finding_type,omitempty"`
	Location     string    `json:"location,omitempty"`
	Value        string    `json:"value,omitempty"`
	Unit         string    `json:"unit,omitempty"`
	Significance string    `json:"significance,omitempty"`
}
