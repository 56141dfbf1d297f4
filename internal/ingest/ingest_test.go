package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/async"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/repository"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	got  chan struct{}
}

func newFakeQueue() *fakeQueue { return &fakeQueue{got: make(chan struct{}, 16)} }

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.got <- struct{}{}
	return nil
}

func (q *fakeQueue) Shutdown(context.Context) {}

func newService(t *testing.T, q async.Queue) (*Service, repository.DocumentRepository) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "ingest.db")}, quiet())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close(quiet()) })
	if err := repository.Migrate(ctx, db, quiet()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	docs := repository.NewDocumentRepository(db, quiet())
	return NewService(docs, q, quiet()), docs
}

func pdf(body string) []byte { return []byte("%PDF-1.4\n" + body) }

func TestUploadStoresDocument(t *testing.T) {
	svc, docs := newService(t, nil)
	ctx := context.Background()

	r, err := svc.Upload(ctx, "owner", "scan.pdf", pdf("one"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if r.Deduplicated || len(r.HashHex) != 64 {
		t.Errorf("result = %+v", r)
	}
	doc, err := docs.GetByID(ctx, r.DocumentID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Status != constants.StatusUploaded || doc.OriginalFilename != "scan.pdf" || string(doc.Content) != string(pdf("one")) {
		t.Errorf("document = %+v", doc)
	}
}

func TestUploadDeduplicatesPerOwner(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	first, err := svc.Upload(ctx, "owner", "a.pdf", pdf("same"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	again, err := svc.Upload(ctx, "owner", "b.pdf", pdf("same"))
	if err != nil {
		t.Fatalf("again: %v", err)
	}
	if !again.Deduplicated || again.DocumentID != first.DocumentID {
		t.Errorf("expected dedup onto %s, got %+v", first.DocumentID, again)
	}
	other, err := svc.Upload(ctx, "someone-else", "a.pdf", pdf("same"))
	if err != nil {
		t.Fatalf("other owner: %v", err)
	}
	if other.Deduplicated || other.DocumentID == first.DocumentID {
		t.Errorf("dedup must be scoped to the owner: %+v", other)
	}
}

func TestUploadRejectsInvalidInput(t *testing.T) {
	svc, _ := newService(t, nil)
	cases := []struct {
		name, owner, file string
		content           []byte
	}{
		{"no owner", "", "a.pdf", pdf("x")},
		{"wrong extension", "o", "a.png", pdf("x")},
		{"not a pdf", "o", "a.pdf", []byte("hello")},
		{"empty", "o", "a.pdf", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tc.owner, tc.file, tc.content)
			if !errors.Is(err, common.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestIngestDirectory(t *testing.T) {
	svc, _ := newService(t, nil)
	root := t.TempDir()
	write := func(rel string, b []byte) {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, b, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.pdf", pdf("a"))
	write("nested/b.PDF", pdf("b"))
	write("nested/copy.pdf", pdf("a"))
	write("broken.pdf", []byte("not a pdf"))
	write("notes.txt", []byte("ignored"))
	write(".hidden/c.pdf", pdf("c"))

	results, stats, err := svc.IngestDirectory(context.Background(), "owner", root, true)
	if err != nil {
		t.Fatalf("IngestDirectory: %v", err)
	}
	if stats.Matched != 4 || stats.Succeeded != 3 || stats.Deduplicated != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(results) != 4 {
		t.Errorf("results = %d, want 4", len(results))
	}
}

func TestScheduleSkipsDuplicates(t *testing.T) {
	q := newFakeQueue()
	svc, _ := newService(t, q)
	ctx := context.Background()

	r, err := svc.Upload(ctx, "owner", "a.pdf", pdf("x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Schedule(ctx, r, async.Job{Provider: "ollama"}, false); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	dup, _ := svc.Upload(ctx, "owner", "a.pdf", pdf("x"))
	if err := svc.Schedule(ctx, dup, async.Job{}, false); err != nil {
		t.Fatalf("Schedule dup: %v", err)
	}
	if err := svc.Schedule(ctx, dup, async.Job{}, true); err != nil {
		t.Fatalf("Schedule forced: %v", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(q.jobs))
	}
	if q.jobs[0].DocumentID != r.DocumentID || q.jobs[0].Provider != "ollama" || q.jobs[0].SubmittedAt.IsZero() {
		t.Errorf("job = %+v", q.jobs[0])
	}
}

func TestWatchIngestsNewFiles(t *testing.T) {
	q := newFakeQueue()
	svc, _ := newService(t, q)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "existing.pdf"), pdf("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 50 * time.Millisecond}, "inbox", async.Job{Language: "deu"})
	}()

	waitJob := func() {
		t.Helper()
		select {
		case <-q.got:
		case <-time.After(5 * time.Second):
			t.Fatal("no job enqueued")
		}
	}
	waitJob()

	// write to a temp name and rename so the watcher never sees a partial file
	tmp := filepath.Join(root, "incoming.tmp")
	if err := os.WriteFile(tmp, pdf("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, filepath.Join(root, "incoming.pdf")); err != nil {
		t.Fatal(err)
	}
	waitJob()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) != 2 || q.jobs[1].Language != "deu" {
		t.Errorf("jobs = %+v", q.jobs)
	}
}

func TestStartWatcherRequiresRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}); err == nil {
		t.Fatal("expected error")
	}
}
