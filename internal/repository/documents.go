package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/entity"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	FindByHash(ctx context.Context, ownerID, sha256Hex string) (*entity.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]entity.DocumentSummary, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus) error
}

type documentRepo struct {
	db  *DB
	log *slog.Logger
}

func NewDocumentRepository(db *DB, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &documentRepo{db: db, log: log}
}

// summary columns; content is loaded only by GetByID
var documentSummaryColumns = []string{"id", "owner_id", "original_filename", "content_sha256", "status", "uploaded_at", "updated_at"}

// Create inserts doc, filling ID, timestamps and the initial status when unset.
func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = constants.StatusUploaded
	}
	now := time.Now().UTC()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = doc.UploadedAt

	b := r.db.builder().Insert(tableDocuments).
		Columns("id", "owner_id", "original_filename", "content", "content_sha256", "status", "uploaded_at", "updated_at").
		Values(doc.ID, doc.OwnerID, doc.OriginalFilename, doc.Content, doc.ContentSHA256, string(doc.Status), doc.UploadedAt, doc.UpdatedAt)
	if _, err := exec(ctx, r.db.drv, b); err != nil {
		r.log.Error("document create failed", "owner_id", doc.OwnerID, "filename", doc.OriginalFilename, "err", err)
		return persistErr("create document", err)
	}
	r.log.Info("document created", "document_id", doc.ID, "owner_id", doc.OwnerID, "bytes", len(doc.Content))
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	d := r.db.builder()
	sel := d.Select(append(documentSummaryColumns, "content")...).
		From(d.Table(tableDocuments)).
		Where(entsql.EQ("id", id))
	rows, err := query(ctx, r.db.drv, sel)
	if err != nil {
		return nil, persistErr("get document", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, persistErr("get document", err)
		}
		return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	var (
		doc    entity.Document
		status string
	)
	if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.OriginalFilename, &doc.ContentSHA256, &status, &doc.UploadedAt, &doc.UpdatedAt, &doc.Content); err != nil {
		return nil, persistErr("scan document", err)
	}
	doc.Status = constants.DocumentStatus(status)
	return &doc, nil
}

// FindByHash returns the owner's document with the same content hash, or ErrNotFound.
func (r *documentRepo) FindByHash(ctx context.Context, ownerID, sha256Hex string) (*entity.Document, error) {
	d := r.db.builder()
	sel := d.Select(documentSummaryColumns...).
		From(d.Table(tableDocuments)).
		Where(entsql.And(entsql.EQ("owner_id", ownerID), entsql.EQ("content_sha256", sha256Hex))).
		OrderBy(entsql.Asc("uploaded_at")).
		Limit(1)
	docs, err := r.scanSummaries(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("document with hash %s: %w", sha256Hex, common.ErrNotFound)
	}
	return &docs[0].Document, nil
}

// ListByOwner returns the owner's documents newest first, each with its latest report id.
func (r *documentRepo) ListByOwner(ctx context.Context, ownerID string) ([]entity.DocumentSummary, error) {
	d := r.db.builder()
	sel := d.Select(documentSummaryColumns...).
		From(d.Table(tableDocuments)).
		Where(entsql.EQ("owner_id", ownerID)).
		OrderBy(entsql.Desc("uploaded_at"))
	docs, err := r.scanSummaries(ctx, sel)
	if err != nil || len(docs) == 0 {
		return docs, err
	}

	ids := make([]any, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
	}
	rs := d.Select("document_id", "id").
		From(d.Table(tableReports)).
		Where(entsql.In("document_id", ids...)).
		OrderBy(entsql.Desc("created_at"))
	rows, err := query(ctx, r.db.drv, rs)
	if err != nil {
		return nil, persistErr("list latest reports", err)
	}
	defer rows.Close()
	latest := make(map[uuid.UUID]uuid.UUID, len(docs))
	for rows.Next() {
		var docID, reportID uuid.UUID
		if err := rows.Scan(&docID, &reportID); err != nil {
			return nil, persistErr("scan latest report", err)
		}
		if _, seen := latest[docID]; !seen {
			latest[docID] = reportID
		}
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list latest reports", err)
	}
	for i := range docs {
		if id, ok := latest[docs[i].ID]; ok {
			docs[i].LatestReportID = &id
		}
	}
	return docs, nil
}

func (r *documentRepo) scanSummaries(ctx context.Context, sel *entsql.Selector) ([]entity.DocumentSummary, error) {
	rows, err := query(ctx, r.db.drv, sel)
	if err != nil {
		return nil, persistErr("list documents", err)
	}
	defer rows.Close()
	var out []entity.DocumentSummary
	for rows.Next() {
		var (
			s      entity.DocumentSummary
			status string
		)
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.OriginalFilename, &s.ContentSHA256, &status, &s.UploadedAt, &s.UpdatedAt); err != nil {
			return nil, persistErr("scan document", err)
		}
		s.Status = constants.DocumentStatus(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list documents", err)
	}
	return out, nil
}

func (r *documentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", common.ErrInvalidInput, status)
	}
	n, err := exec(ctx, r.db.drv, updateStatus(r.db, id, status))
	if err != nil {
		r.log.Error("document status update failed", "document_id", id, "status", status, "err", err)
		return persistErr("update document status", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	r.log.Info("document status updated", "document_id", id, "status", status)
	return nil
}

func updateStatus(db *DB, id uuid.UUID, status constants.DocumentStatus) *entsql.UpdateBuilder {
	return db.builder().Update(tableDocuments).
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id))
}
