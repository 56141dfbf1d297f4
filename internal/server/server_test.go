package server

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/async"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/entity"
	"github.com/joseph-ayodele/medimage2report/internal/export"
	"github.com/joseph-ayodele/medimage2report/internal/ingest"
	"github.com/joseph-ayodele/medimage2report/internal/pipeline"
	"github.com/joseph-ayodele/medimage2report/internal/repository"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// stubProcessor writes a report directly, standing in for the OCR and LLM stages.
type stubProcessor struct {
	reports repository.ReportRepository
	fail    error
}

func (p *stubProcessor) Process(ctx context.Context, id uuid.UUID, opts pipeline.Options) (pipeline.Outcome, error) {
	out := pipeline.Outcome{DocumentID: id, AttemptID: uuid.New()}
	if p.fail != nil {
		out.Status = constants.StatusError
		out.Error = &entity.ProcessingError{DocumentID: id, AttemptID: out.AttemptID, Kind: string(common.KindOf(p.fail)), Message: p.fail.Error()}
		return out, p.fail
	}
	rep := &entity.StructuredReport{DocumentID: id, AttemptID: out.AttemptID, Modality: "MRI", Sequences: "T1, T2", Provider: opts.Provider, SchemaVersion: "v"}
	if err := p.reports.CreateAndMarkProcessed(ctx, rep); err != nil {
		return out, err
	}
	out.Status, out.Report = constants.StatusProcessed, rep
	return out, nil
}

type memQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (q *memQueue) Enqueue(_ context.Context, j async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, j)
	return nil
}
func (q *memQueue) Shutdown(context.Context) {}

type fixture struct {
	client *Client
	conn   *grpc.ClientConn
	proc   *stubProcessor
	queue  *memQueue
	errs   repository.ProcessingErrorRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := ConnectDB(ctx, common.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "server.db"), AutoMigrate: true}, quiet())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close(quiet()) })

	docs := repository.NewDocumentRepository(db, quiet())
	reports := repository.NewReportRepository(db, quiet())
	errs := repository.NewProcessingErrorRepository(db, quiet())
	q := &memQueue{}
	proc := &stubProcessor{reports: reports}
	svc := NewDocumentServer(Deps{
		Ingest:  ingest.NewService(docs, q, quiet()),
		Proc:    proc,
		Queue:   q,
		Docs:    docs,
		Reports: reports,
		Errors:  errs,
		Export:  export.NewService(docs, reports, quiet()),
	}, quiet())

	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(svc, quiet())
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &fixture{client: NewClient(conn), conn: conn, proc: proc, queue: q, errs: errs}
}

func (f *fixture) upload(t *testing.T, owner, body string, extra map[string]any) string {
	t.Helper()
	req := map[string]any{
		"owner_id": owner,
		"filename": "scan.pdf",
		"content":  base64.StdEncoding.EncodeToString([]byte("%PDF-1.4\n" + body)),
	}
	for k, v := range extra {
		req[k] = v
	}
	resp, err := f.client.Call(context.Background(), "Upload", req)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return resp.GetFields()["document_id"].GetStringValue()
}

func TestUploadAndGetDocument(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, "owner", "one", nil)

	resp, err := f.client.Call(context.Background(), "GetDocument", map[string]any{"document_id": id})
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	fields := resp.GetFields()
	if fields["status"].GetStringValue() != string(constants.StatusUploaded) || fields["original_filename"].GetStringValue() != "scan.pdf" {
		t.Errorf("document = %v", resp)
	}
	if _, ok := fields["latest_report_id"]; ok {
		t.Error("unexpected latest_report_id before processing")
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.Call(context.Background(), "Upload", map[string]any{
		"owner_id": "owner",
		"filename": "scan.pdf",
		"content":  base64.StdEncoding.EncodeToString([]byte("GIF89a")),
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument (%v)", status.Code(err), err)
	}
}

func TestUploadWithProcessQueuesJob(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, "owner", "queued", map[string]any{"process": true, "provider": "gemini"})

	f.queue.mu.Lock()
	defer f.queue.mu.Unlock()
	if len(f.queue.jobs) != 1 || f.queue.jobs[0].DocumentID.String() != id || f.queue.jobs[0].Provider != "gemini" {
		t.Fatalf("jobs = %+v", f.queue.jobs)
	}
}

func TestProcessAndGetReport(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, "owner", "two", nil)
	ctx := context.Background()

	resp, err := f.client.Call(ctx, "Process", map[string]any{"document_id": id, "provider": "ollama"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := resp.GetFields()["status"].GetStringValue(); got != string(constants.StatusProcessed) {
		t.Fatalf("status = %q", got)
	}

	rep, err := f.client.Call(ctx, "GetReport", map[string]any{"document_id": id})
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if rep.GetFields()["sequences"].GetStringValue() != "T1, T2" || rep.GetFields()["provider"].GetStringValue() != "ollama" {
		t.Errorf("report = %v", rep)
	}

	doc, err := f.client.Call(ctx, "GetDocument", map[string]any{"document_id": id})
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.GetFields()["latest_report_id"].GetStringValue() != rep.GetFields()["id"].GetStringValue() {
		t.Errorf("latest_report_id mismatch: %v vs %v", doc, rep)
	}
}

func TestProcessFailureReturnsRecordedError(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, "owner", "bad", nil)
	f.proc.fail = &common.ExtractionError{Pages: 1}

	resp, err := f.client.Call(context.Background(), "Process", map[string]any{"document_id": id})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	e := resp.GetFields()["error"].GetStructValue().GetFields()
	if e["kind"].GetStringValue() != string(common.KindExtraction) {
		t.Errorf("error = %v", resp)
	}
}

func TestProcessUnknownDocument(t *testing.T) {
	f := newFixture(t)
	f.proc.fail = nil
	_, err := f.client.Call(context.Background(), "Process", map[string]any{"document_id": "not-a-uuid"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v", status.Code(err))
	}
	_, err = f.client.Call(context.Background(), "Process", map[string]any{"document_id": uuid.NewString(), "async": true})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %v, want NotFound", status.Code(err))
	}
}

func TestListDocumentsUsesOwnerMetadata(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "alice", "a", nil)
	f.upload(t, "alice", "b", nil)
	f.upload(t, "bob", "c", nil)

	ctx := metadata.AppendToOutgoingContext(context.Background(), MetadataOwnerID, "alice")
	resp, err := f.client.Call(ctx, "ListDocuments", map[string]any{})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if n := len(resp.GetFields()["documents"].GetListValue().GetValues()); n != 2 {
		t.Errorf("documents = %d, want 2", n)
	}
}

func TestListErrors(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, "owner", "e", nil)
	docID := uuid.MustParse(id)
	if err := f.errs.Create(context.Background(), &entity.ProcessingError{DocumentID: docID, AttemptID: uuid.New(), Kind: "ProviderError", Message: "quota"}); err != nil {
		t.Fatal(err)
	}
	resp, err := f.client.Call(context.Background(), "ListErrors", map[string]any{"document_id": id})
	if err != nil {
		t.Fatalf("ListErrors: %v", err)
	}
	vals := resp.GetFields()["errors"].GetListValue().GetValues()
	if len(vals) != 1 || vals[0].GetStructValue().GetFields()["kind"].GetStringValue() != "ProviderError" {
		t.Errorf("errors = %v", resp)
	}
}

func TestExportReports(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, "owner", "x", nil)
	if _, err := f.client.Call(context.Background(), "Process", map[string]any{"document_id": id}); err != nil {
		t.Fatal(err)
	}
	resp, err := f.client.Call(context.Background(), "ExportReports", map[string]any{"owner_id": "owner"})
	if err != nil {
		t.Fatalf("ExportReports: %v", err)
	}
	b, err := base64.StdEncoding.DecodeString(resp.GetFields()["xlsx"].GetStringValue())
	if err != nil || len(b) < 4 || string(b[:2]) != "PK" {
		t.Errorf("xlsx payload is not a zip archive (err=%v)", err)
	}
}

func TestHealthServing(t *testing.T) {
	f := newFixture(t)
	resp, err := healthpb.NewHealthClient(f.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v", resp.GetStatus())
	}
}

func TestToStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{common.ErrNotFound, codes.NotFound},
		{&common.DocumentFormatError{Reason: "x"}, codes.InvalidArgument},
		{&common.ProviderError{Provider: "openai", Reason: common.ProviderAuth}, codes.Unavailable},
		{context.Canceled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		if got := status.Code(common.ToStatus(tc.err)); got != tc.want {
			t.Errorf("ToStatus(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
