package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/medimage2report/internal/async"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/entity"
	"github.com/joseph-ayodele/medimage2report/internal/repository"
)

// Result is the per-file ingest outcome.
type Result struct {
	SourcePath   string
	DocumentID   uuid.UUID
	Deduplicated bool
	HashHex      string
	UploadedAt   time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Service stores uploaded PDFs as documents and, when a queue is set,
// schedules them for processing.
type Service struct {
	docs   repository.DocumentRepository
	queue  async.Queue
	logger *slog.Logger
}

func NewService(docs repository.DocumentRepository, queue async.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, queue: queue, logger: logger}
}

// Upload validates and stores one PDF for ownerID. Identical content already
// uploaded by the same owner returns the existing document with Deduplicated set.
func (s *Service) Upload(ctx context.Context, ownerID, filename string, content []byte) (Result, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	v := common.NewValidator().
		Field("owner_id", ownerID, common.Required, common.MaxLength(128)).
		Field("filename", filename, common.Required, common.MaxLength(255), common.PDFFilename).
		Field("content", content, common.Required, common.PDFContent)
	if err := v.Err(); err != nil {
		s.logger.Warn("ingest.upload.invalid", "owner_id", ownerID, "filename", filename, "err", err)
		return Result{}, err
	}

	sum := sha256.Sum256(content)
	hashHex := hex.EncodeToString(sum[:])

	existing, err := s.docs.FindByHash(ctx, ownerID, hashHex)
	switch {
	case err == nil:
		s.logger.Info("ingest.upload.deduplicated", "owner_id", ownerID, "document_id", existing.ID, "filename", filename)
		return Result{
			SourcePath:   filename,
			DocumentID:   existing.ID,
			Deduplicated: true,
			HashHex:      hashHex,
			UploadedAt:   existing.UploadedAt,
		}, nil
	case !errors.Is(err, common.ErrNotFound):
		return Result{}, err
	}

	doc := &entity.Document{
		OwnerID:          ownerID,
		OriginalFilename: filename,
		Content:          content,
		ContentSHA256:    hashHex,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return Result{}, err
	}
	s.logger.Info("ingest.upload.ok", "owner_id", ownerID, "document_id", doc.ID, "filename", filename, "bytes", len(content))
	return Result{
		SourcePath: filename,
		DocumentID: doc.ID,
		HashHex:    hashHex,
		UploadedAt: doc.UploadedAt,
	}, nil
}

// IngestPath uploads the file at path under its base name.
func (s *Service) IngestPath(ctx context.Context, ownerID, path string) (Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, fmt.Errorf("abs path: %w", err)
	}
	if !AllowedExt(filepath.Ext(abs)) {
		return Result{}, fmt.Errorf("%w: unsupported or missing extension %q", common.ErrInvalidInput, filepath.Ext(abs))
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return Result{}, fmt.Errorf("read: %w", err)
	}
	r, err := s.Upload(ctx, ownerID, filepath.Base(abs), content)
	r.SourcePath = abs
	return r, err
}

// Schedule enqueues a newly stored document. Deduplicated results are skipped
// unless force is set.
func (s *Service) Schedule(ctx context.Context, r Result, job async.Job, force bool) error {
	if s.queue == nil || r.DocumentID == uuid.Nil {
		return nil
	}
	if r.Deduplicated && !force {
		s.logger.Info("skipping processing (duplicate)", "document_id", r.DocumentID, "path", r.SourcePath)
		return nil
	}
	job.DocumentID = r.DocumentID
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error("enqueue failed for document", "document_id", r.DocumentID, "err", err)
		return err
	}
	return nil
}
