package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/medimage2report/internal/entity"
	"github.com/joseph-ayodele/medimage2report/internal/repository"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestExportReportsXLSX(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "export.db")}, quiet())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close(quiet()) })
	if err := repository.Migrate(ctx, db, quiet()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	docs := repository.NewDocumentRepository(db, quiet())
	reports := repository.NewReportRepository(db, quiet())

	mk := func(name string) *entity.Document {
		d := &entity.Document{OwnerID: "owner", OriginalFilename: name, Content: []byte("%PDF-1.4"), ContentSHA256: uuid.NewString()}
		if err := docs.Create(ctx, d); err != nil {
			t.Fatalf("create: %v", err)
		}
		return d
	}
	withReport := mk("knee.pdf")
	mk("pending.pdf")

	old := &entity.StructuredReport{DocumentID: withReport.ID, AttemptID: uuid.New(), Modality: "CT", Provider: "ollama", SchemaVersion: "v", CreatedAt: time.Now().Add(-time.Hour)}
	if err := reports.CreateAndMarkProcessed(ctx, old); err != nil {
		t.Fatalf("report: %v", err)
	}
	latest := &entity.StructuredReport{
		DocumentID: withReport.ID, AttemptID: uuid.New(),
		Modality: "MRI", Region: "knee", Sequences: "T1, T2, FLAIR", Quality: "4",
		Provider: "openai", Model: "gpt-test", SchemaVersion: "v",
		Findings: []entity.Finding{{FindingType: "effusion", Location: "suprapatellar"}},
	}
	if err := reports.CreateAndMarkProcessed(ctx, latest); err != nil {
		t.Fatalf("report: %v", err)
	}

	b, err := NewService(docs, reports, quiet()).ExportReportsXLSX(ctx, "owner")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(reportsSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "File" || rows[1][0] != "knee.pdf" {
		t.Errorf("file column = %q / %q", rows[0][0], rows[1][0])
	}
	if rows[1][2] != "MRI" || rows[1][5] != "T1, T2, FLAIR" || rows[1][11] != "openai" {
		t.Errorf("report row = %v", rows[1])
	}

	frows, err := f.GetRows(findingsSheet)
	if err != nil {
		t.Fatalf("finding rows: %v", err)
	}
	if len(frows) != 2 || frows[1][2] != "effusion" || frows[1][1] != "1" {
		t.Errorf("findings = %v", frows)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
