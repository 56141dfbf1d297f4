package llm

import (
	"context"
	"strings"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/entity"
)

// Provider turns a prompt into raw model output. Implementations fold every
// failure into *common.ProviderError before returning.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// modeler is implemented by providers that know which model they call.
type modeler interface {
	Model() string
}

// FindingFields is one entry of the optional findings array.
type FindingFields struct {
	FindingType  string `json:"finding_type,omitempty"`
	Location     string `json:"location,omitempty"`
	Value        string `json:"value,omitempty"`
	Unit         string `json:"unit,omitempty"`
	Significance string `json:"significance,omitempty"`
}

// ReportFields is the validated shape we take from the model. Absent fields are empty.
type ReportFields struct {
	Company   string                          `json:"company,omitempty"`
	Sequences []string                        `json:"sequences,omitempty"`
	Method    string                          `json:"method,omitempty"`
	Region    string                          `json:"region,omitempty"`
	Modality  string                          `json:"modality,omitempty"`
	ShortText string                          `json:"short_text,omitempty"`
	LongText  string                          `json:"long_text,omitempty"`
	Quality   string                          `json:"quality,omitempty"`
	Locales   map[string]entity.LocalizedText `json:"locales,omitempty"`
	Findings  []FindingFields                 `json:"findings,omitempty"`
}

// SequencesString joins sequences in their original order, duplicates kept.
func (f ReportFields) SequencesString() string {
	return strings.Join(f.Sequences, constants.SequenceDelimiter)
}

// ParsedReport is a successful invocation: the fields plus the raw output they came from.
type ParsedReport struct {
	Fields   ReportFields
	Raw      string
	Provider string
	Model    string
}

type PromptOptions struct {
	Locales  []string // extra output languages, e.g. ["de"]
	Filename string
}
