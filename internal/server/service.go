package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/medimage2report/internal/async"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/export"
	"github.com/joseph-ayodele/medimage2report/internal/ingest"
	"github.com/joseph-ayodele/medimage2report/internal/pipeline"
	"github.com/joseph-ayodele/medimage2report/internal/repository"
)

// DocumentServer implements medreport.v1.DocumentService. Every method takes
// and returns a google.protobuf.Struct.
type DocumentServer struct {
	ingest  *ingest.Service
	proc    async.DocumentProcessor
	queue   async.Queue // optional; required for async processing
	docs    repository.DocumentRepository
	reports repository.ReportRepository
	errs    repository.ProcessingErrorRepository
	export  *export.Service
	logger  *slog.Logger
}

type Deps struct {
	Ingest  *ingest.Service
	Proc    async.DocumentProcessor
	Queue   async.Queue
	Docs    repository.DocumentRepository
	Reports repository.ReportRepository
	Errors  repository.ProcessingErrorRepository
	Export  *export.Service
}

func NewDocumentServer(d Deps, logger *slog.Logger) *DocumentServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentServer{
		ingest:  d.Ingest,
		proc:    d.Proc,
		queue:   d.Queue,
		docs:    d.Docs,
		reports: d.Reports,
		errs:    d.Errors,
		export:  d.Export,
		logger:  logger,
	}
}

// Upload stores a PDF. Request: owner_id, filename, content (base64), and
// optionally process=true to queue it with provider/language.
func (s *DocumentServer) Upload(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner := strField(req, "owner_id")
	if owner == "" {
		owner = common.OwnerIDFromContext(ctx)
	}
	content, err := base64.StdEncoding.DecodeString(strField(req, "content"))
	if err != nil {
		return nil, common.InvalidArgumentError("content must be base64")
	}

	r, err := s.ingest.Upload(ctx, owner, strField(req, "filename"), content)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	out := map[string]any{
		"document_id":  r.DocumentID.String(),
		"deduplicated": r.Deduplicated,
		"sha256":       r.HashHex,
		"uploaded_at":  r.UploadedAt.UTC().Format(time.RFC3339Nano),
		"queued":       false,
	}
	if boolField(req, "process") {
		if s.queue == nil {
			return nil, common.InternalError("processing queue is not configured")
		}
		job := async.Job{Provider: strField(req, "provider"), Language: strField(req, "language"), TraceID: common.RequestIDFromContext(ctx)}
		if err := s.ingest.Schedule(ctx, r, job, boolField(req, "force")); err != nil {
			return nil, common.ToStatus(err)
		}
		out["queued"] = !r.Deduplicated || boolField(req, "force")
	}
	return structpb.NewStruct(out)
}

// Process runs one attempt for document_id. With async=true the attempt is
// queued and the call returns immediately.
func (s *DocumentServer) Process(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuidField(req, "document_id")
	if err != nil {
		return nil, err
	}
	opts := pipeline.Options{Provider: strField(req, "provider"), Language: strField(req, "language")}

	if boolField(req, "async") {
		if s.queue == nil {
			return nil, common.InternalError("processing queue is not configured")
		}
		if _, err := s.docs.GetByID(ctx, id); err != nil {
			return nil, common.ToStatus(err)
		}
		job := async.Job{DocumentID: id, Provider: opts.Provider, Language: opts.Language, SubmittedAt: time.Now(), TraceID: common.RequestIDFromContext(ctx)}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			return nil, common.ToStatus(err)
		}
		return structpb.NewStruct(map[string]any{"document_id": id.String(), "queued": true})
	}

	out, err := s.proc.Process(ctx, id, opts)
	if err != nil && out.AttemptID == uuid.Nil {
		// nothing was attempted
		return nil, common.ToStatus(err)
	}
	resp := map[string]any{
		"document_id": id.String(),
		"attempt_id":  out.AttemptID.String(),
		"status":      string(out.Status),
		"pages":       out.Pages,
		"elapsed_ms":  out.Duration.Milliseconds(),
	}
	if out.Report != nil {
		rep, err := toMap(out.Report)
		if err != nil {
			return nil, common.InternalErrorf("encode report: %v", err)
		}
		resp["report"] = rep
	}
	if out.Error != nil {
		resp["error"] = map[string]any{"kind": out.Error.Kind, "message": out.Error.Message}
	} else if err != nil {
		resp["error"] = map[string]any{"kind": string(common.KindOf(err)), "message": err.Error()}
	}
	return structpb.NewStruct(resp)
}

// GetDocument returns the document metadata with its latest report id.
func (s *DocumentServer) GetDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuidField(req, "document_id")
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	m, err := toMap(doc)
	if err != nil {
		return nil, common.InternalErrorf("encode document: %v", err)
	}
	latest, err := s.reports.LatestByDocument(ctx, id)
	switch {
	case err == nil:
		m["latest_report_id"] = latest.ID.String()
	case !errors.Is(err, common.ErrNotFound):
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(m)
}

// ListDocuments returns the owner's documents newest first.
func (s *DocumentServer) ListDocuments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner := strField(req, "owner_id")
	if owner == "" {
		owner = common.OwnerIDFromContext(ctx)
	}
	if owner == "" {
		return nil, common.InvalidArgumentError("owner_id is required")
	}
	docs, err := s.docs.ListByOwner(ctx, owner)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return listStruct("documents", docs)
}

// GetReport returns report_id, or the latest report of document_id.
func (s *DocumentServer) GetReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var (
		rep any
		err error
	)
	switch {
	case strField(req, "report_id") != "":
		id, perr := uuidField(req, "report_id")
		if perr != nil {
			return nil, perr
		}
		rep, err = s.reports.GetByID(ctx, id)
	case strField(req, "document_id") != "":
		id, perr := uuidField(req, "document_id")
		if perr != nil {
			return nil, perr
		}
		rep, err = s.reports.LatestByDocument(ctx, id)
	default:
		return nil, common.InvalidArgumentError("report_id or document_id is required")
	}
	if err != nil {
		return nil, common.ToStatus(err)
	}
	m, err := toMap(rep)
	if err != nil {
		return nil, common.InternalErrorf("encode report: %v", err)
	}
	return structpb.NewStruct(m)
}

// ListErrors returns the document's processing errors newest first.
func (s *DocumentServer) ListErrors(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuidField(req, "document_id")
	if err != nil {
		return nil, err
	}
	errs, err := s.errs.ListByDocument(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return listStruct("errors", errs)
}

// ExportReports returns an XLSX workbook (base64) of the owner's latest reports.
func (s *DocumentServer) ExportReports(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner := strField(req, "owner_id")
	if owner == "" {
		return nil, common.InvalidArgumentError("owner_id is required")
	}
	xlsx, err := s.export.ExportReportsXLSX(ctx, owner)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "owner_id", owner, "err", err)
		return nil, common.InternalError(err.Error())
	}
	return structpb.NewStruct(map[string]any{
		"owner_id": owner,
		"xlsx":     base64.StdEncoding.EncodeToString(xlsx),
	})
}

func strField(s *structpb.Struct, key string) string {
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

func boolField(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

func uuidField(s *structpb.Struct, key string) (uuid.UUID, error) {
	raw := strField(s, key)
	v := common.NewValidator().Field(key, raw, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

// toMap renders an entity through its JSON tags.
func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, err
	}
	return st.AsMap(), nil
}

func listStruct(key string, v any) (*structpb.Struct, error) {
	b, err := json.Marshal(map[string]any{key: v})
	if err != nil {
		return nil, common.InternalErrorf("encode %s: %v", key, err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, common.InternalErrorf("encode %s: %v", key, err)
	}
	return st, nil
}
