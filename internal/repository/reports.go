package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/entity"
)

type ReportRepository interface {
	// CreateAndMarkProcessed inserts the report with its findings and moves the
	// document to processed, atomically.
	CreateAndMarkProcessed(ctx context.Context, report *entity.StructuredReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.StructuredReport, error)
	LatestByDocument(ctx context.Context, documentID uuid.UUID) (*entity.StructuredReport, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]entity.StructuredReport, error)
	LatestByOwner(ctx context.Context, ownerID string) ([]entity.StructuredReport, error)
}

type reportRepo struct {
	db  *DB
	log *slog.Logger
}

func NewReportRepository(db *DB, log *slog.Logger) ReportRepository {
	if log == nil {
		log = slog.Default()
	}
	return &reportRepo{db: db, log: log}
}

var reportColumns = []string{
	"id", "document_id", "attempt_id", "company", "sequences", "method", "region", "modality",
	"short_text", "long_text", "quality", "locales", "provider", "model", "schema_version",
	"raw_response", "created_at",
}

func (r *reportRepo) CreateAndMarkProcessed(ctx context.Context, rep *entity.StructuredReport) error {
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = time.Now().UTC()
	}
	var locales any
	if len(rep.Locales) > 0 {
		b, err := json.Marshal(rep.Locales)
		if err != nil {
			return fmt.Errorf("encode locales: %w", err)
		}
		locales = string(b)
	}

	err := r.db.inTx(ctx, func(tx dialect.Tx) error {
		ins := r.db.builder().Insert(tableReports).
			Columns(reportColumns...).
			Values(rep.ID, rep.DocumentID, rep.AttemptID, nullable(rep.Company), nullable(rep.Sequences),
				nullable(rep.Method), nullable(rep.Region), nullable(rep.Modality), nullable(rep.ShortText),
				nullable(rep.LongText), nullable(rep.Quality), locales, rep.Provider, nullable(rep.Model),
				rep.SchemaVersion, nullable(rep.RawResponse), rep.CreatedAt)
		if _, err := exec(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		for i := range rep.Findings {
			f := &rep.Findings[i]
			if f.ID == uuid.Nil {
				f.ID = uuid.New()
			}
			f.ReportID = rep.ID
			f.Position = i
			fi := r.db.builder().Insert(tableFindings).
				Columns("id", "report_id", "position", "finding_type", "location", "value", "unit", "significance").
				Values(f.ID, f.ReportID, f.Position, nullable(f.FindingType), nullable(f.Location),
					nullable(f.Value), nullable(f.Unit), nullable(f.Significance))
			if _, err := exec(ctx, tx, fi); err != nil {
				return fmt.Errorf("insert finding %d: %w", i, err)
			}
		}
		n, err := exec(ctx, tx, updateStatus(r.db, rep.DocumentID, constants.StatusProcessed))
		if err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("document %s: %w", rep.DocumentID, common.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		r.log.Error("report create failed", "document_id", rep.DocumentID, "attempt_id", rep.AttemptID, "err", err)
		return persistErr("create report", err)
	}
	r.log.Info("report created", "report_id", rep.ID, "document_id", rep.DocumentID, "findings", len(rep.Findings))
	return nil
}

func (r *reportRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.StructuredReport, error) {
	d := r.db.builder()
	reps, err := r.list(ctx, d.Select(reportColumns...).From(d.Table(tableReports)).Where(entsql.EQ("id", id)))
	if err != nil {
		return nil, err
	}
	if len(reps) == 0 {
		return nil, fmt.Errorf("report %s: %w", id, common.ErrNotFound)
	}
	return &reps[0], nil
}

func (r *reportRepo) LatestByDocument(ctx context.Context, documentID uuid.UUID) (*entity.StructuredReport, error) {
	d := r.db.builder()
	sel := d.Select(reportColumns...).From(d.Table(tableReports)).
		Where(entsql.EQ("document_id", documentID)).
		OrderBy(entsql.Desc("created_at")).
		Limit(1)
	reps, err := r.list(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(reps) == 0 {
		return nil, fmt.Errorf("report for document %s: %w", documentID, common.ErrNotFound)
	}
	return &reps[0], nil
}

// ListByDocument returns every report of the document, newest first.
func (r *reportRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]entity.StructuredReport, error) {
	d := r.db.builder()
	return r.list(ctx, d.Select(reportColumns...).From(d.Table(tableReports)).
		Where(entsql.EQ("document_id", documentID)).
		OrderBy(entsql.Desc("created_at")))
}

// LatestByOwner returns the newest report of each of the owner's documents.
func (r *reportRepo) LatestByOwner(ctx context.Context, ownerID string) ([]entity.StructuredReport, error) {
	d := r.db.builder()
	docs := d.Select("id").From(d.Table(tableDocuments)).Where(entsql.EQ("owner_id", ownerID))
	all, err := r.list(ctx, d.Select(reportColumns...).From(d.Table(tableReports)).
		Where(entsql.In("document_id", docs)).
		OrderBy(entsql.Desc("created_at")))
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]struct{}, len(all))
	out := make([]entity.StructuredReport, 0, len(all))
	for _, rep := range all {
		if _, ok := seen[rep.DocumentID]; ok {
			continue
		}
		seen[rep.DocumentID] = struct{}{}
		out = append(out, rep)
	}
	return out, nil
}

// list scans reports then loads their findings in a second query.
func (r *reportRepo) list(ctx context.Context, sel *entsql.Selector) ([]entity.StructuredReport, error) {
	out, err := r.scanReports(ctx, sel)
	if err != nil || len(out) == 0 {
		return out, err
	}
	ids := make([]any, len(out))
	idx := make(map[uuid.UUID]int, len(out))
	for i := range out {
		ids[i] = out[i].ID
		idx[out[i].ID] = i
	}
	d := r.db.builder()
	fs := d.Select("id", "report_id", "position", "finding_type", "location", "value", "unit", "significance").
		From(d.Table(tableFindings)).
		Where(entsql.In("report_id", ids...)).
		OrderBy(entsql.Asc("position"))
	rows, err := query(ctx, r.db.drv, fs)
	if err != nil {
		return nil, persistErr("list findings", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			f                                        entity.Finding
			ftype, loc, value, unit, significanceCol entsql.NullString
		)
		if err := rows.Scan(&f.ID, &f.ReportID, &f.Position, &ftype, &loc, &value, &unit, &significanceCol); err != nil {
			return nil, persistErr("scan finding", err)
		}
		f.FindingType, f.Location, f.Value, f.Unit, f.Significance = ftype.String, loc.String, value.String, unit.String, significanceCol.String
		i := idx[f.ReportID]
		out[i].Findings = append(out[i].Findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list findings", err)
	}
	return out, nil
}

func (r *reportRepo) scanReports(ctx context.Context, sel *entsql.Selector) ([]entity.StructuredReport, error) {
	rows, err := query(ctx, r.db.drv, sel)
	if err != nil {
		return nil, persistErr("list reports", err)
	}
	defer rows.Close()
	var out []entity.StructuredReport
	for rows.Next() {
		var (
			rep                                                  entity.StructuredReport
			company, sequences, method, region, modality         entsql.NullString
			shortText, longText, quality, locales, model, rawOut entsql.NullString
		)
		if err := rows.Scan(&rep.ID, &rep.DocumentID, &rep.AttemptID, &company, &sequences, &method, &region,
			&modality, &shortText, &longText, &quality, &locales, &rep.Provider, &model, &rep.SchemaVersion,
			&rawOut, &rep.CreatedAt); err != nil {
			return nil, persistErr("scan report", err)
		}
		rep.Company, rep.Sequences, rep.Method = company.String, sequences.String, method.String
		rep.Region, rep.Modality, rep.Quality = region.String, modality.String, quality.String
		rep.ShortText, rep.LongText = shortText.String, longText.String
		rep.Model, rep.RawResponse = model.String, rawOut.String
		if locales.Valid && locales.String != "" {
			if err := json.Unmarshal([]byte(locales.String), &rep.Locales); err != nil {
				r.log.Warn("report locales decode failed", "report_id", rep.ID, "err", err)
			}
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list reports", err)
	}
	return out, nil
}

// nullable stores empty optional strings as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
