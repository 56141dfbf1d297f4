package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/medimage2report/internal/entity"
	"github.com/joseph-ayodele/medimage2report/internal/repository"
)

const (
	reportsSheet  = "Reports"
	findingsSheet = "Findings"
)

// Service produces XLSX bytes for report exports.
type Service struct {
	docs    repository.DocumentRepository
	reports repository.ReportRepository
	logger  *slog.Logger
}

func NewService(docs repository.DocumentRepository, reports repository.ReportRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, reports: reports, logger: logger}
}

var reportHeaders = []string{
	"File",
	"Uploaded",
	"Modality",
	"Region",
	"Method",
	"Sequences",
	"Company",
	"Quality",
	"Short Text",
	"Long Text",
	"Findings",
	"Provider",
	"Model",
	"Reported",
}

var findingHeaders = []string{
	"File",
	"#",
	"Type",
	"Location",
	"Value",
	"Unit",
	"Significance",
}

// ExportReportsXLSX returns a workbook with the latest report of every document
// owned by ownerID, plus one row per finding on a second sheet. Documents
// without a report are skipped.
func (s *Service) ExportReportsXLSX(ctx context.Context, ownerID string) ([]byte, error) {
	start := time.Now()

	docs, err := s.docs.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	byID := make(map[string]entity.DocumentSummary, len(docs))
	for _, d := range docs {
		byID[d.ID.String()] = d
	}
	reps, err := s.reports.LatestByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	// the default "Sheet1" becomes the reports sheet
	if err := f.SetSheetName(f.GetSheetName(0), reportsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(findingsSheet); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	writeRow(f, reportsSheet, 1, toAny(reportHeaders))
	writeRow(f, findingsSheet, 1, toAny(findingHeaders))

	row, frow := 2, 2
	for _, r := range reps {
		doc := byID[r.DocumentID.String()]
		name := doc.OriginalFilename
		if name == "" {
			name = r.DocumentID.String()
		}
		uploaded := ""
		if !doc.UploadedAt.IsZero() {
			uploaded = doc.UploadedAt.UTC().Format(time.RFC3339)
		}
		writeRow(f, reportsSheet, row, []any{
			name,
			uploaded,
			r.Modality,
			r.Region,
			r.Method,
			r.Sequences,
			r.Company,
			r.Quality,
			r.ShortText,
			truncate(r.LongText, 32000),
			len(r.Findings),
			r.Provider,
			r.Model,
			r.CreatedAt.UTC().Format(time.RFC3339),
		})
		row++

		for _, fd := range r.Findings {
			writeRow(f, findingsSheet, frow, []any{
				name,
				fd.Position + 1,
				fd.FindingType,
				fd.Location,
				fd.Value,
				fd.Unit,
				fd.Significance,
			})
			frow++
		}
	}

	_ = f.SetColWidth(reportsSheet, "A", "A", 32) // file
	_ = f.SetColWidth(reportsSheet, "B", "B", 22) // uploaded
	_ = f.SetColWidth(reportsSheet, "C", "H", 14)
	_ = f.SetColWidth(reportsSheet, "I", "J", 60) // texts
	_ = f.SetColWidth(reportsSheet, "N", "N", 22) // reported
	_ = f.SetColWidth(findingsSheet, "A", "A", 32)
	_ = f.SetColWidth(findingsSheet, "C", "G", 18)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"owner_id", ownerID,
		"rows", len(reps),
		"findings", frow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetSheetRow(sheet, cell, &values)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// truncate keeps cells under the XLSX per-cell character limit.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
