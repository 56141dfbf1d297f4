package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/medimage2report/internal/entity"
)

// ProcessingErrorRepository is append-only: records are never updated or removed
// except by cascade when their document goes.
type ProcessingErrorRepository interface {
	Create(ctx context.Context, pe *entity.ProcessingError) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]entity.ProcessingError, error)
}

type processingErrorRepo struct {
	db  *DB
	log *slog.Logger
}

func NewProcessingErrorRepository(db *DB, log *slog.Logger) ProcessingErrorRepository {
	if log == nil {
		log = slog.Default()
	}
	return &processingErrorRepo{db: db, log: log}
}

func (r *processingErrorRepo) Create(ctx context.Context, pe *entity.ProcessingError) error {
	if pe.ID == uuid.Nil {
		pe.ID = uuid.New()
	}
	if pe.CreatedAt.IsZero() {
		pe.CreatedAt = time.Now().UTC()
	}
	b := r.db.builder().Insert(tableProcessingErrors).
		Columns("id", "document_id", "attempt_id", "kind", "message", "created_at").
		Values(pe.ID, pe.DocumentID, pe.AttemptID, pe.Kind, pe.Message, pe.CreatedAt)
	if _, err := exec(ctx, r.db.drv, b); err != nil {
		r.log.Error("processing error create failed", "document_id", pe.DocumentID, "kind", pe.Kind, "err", err)
		return persistErr("create processing error", err)
	}
	r.log.Info("processing error recorded", "document_id", pe.DocumentID, "attempt_id", pe.AttemptID, "kind", pe.Kind)
	return nil
}

// ListByDocument returns the document's error log, newest first.
func (r *processingErrorRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]entity.ProcessingError, error) {
	d := r.db.builder()
	sel := d.Select("id", "document_id", "attempt_id", "kind", "message", "created_at").
		From(d.Table(tableProcessingErrors)).
		Where(entsql.EQ("document_id", documentID)).
		OrderBy(entsql.Desc("created_at"))
	rows, err := query(ctx, r.db.drv, sel)
	if err != nil {
		return nil, persistErr("list processing errors", err)
	}
	defer rows.Close()
	var out []entity.ProcessingError
	for rows.Next() {
		var pe entity.ProcessingError
		if err := rows.Scan(&pe.ID, &pe.DocumentID, &pe.AttemptID, &pe.Kind, &pe.Message, &pe.CreatedAt); err != nil {
			return nil, persistErr("scan processing error", err)
		}
		out = append(out, pe)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list processing errors", err)
	}
	return out, nil
}
