package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joseph-ayodele/medimage2report/internal/common"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestGenerateOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Stream || req.Format != "json" || req.Model != "qwen2.5:1.5b" {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = io.WriteString(w, `{"model":"qwen2.5:1.5b","response":"{\"region\":\"Thorax\"}","done":true}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/"}, testLogger())
	out, err := c.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != `{"region":"Thorax"}` {
		t.Errorf("unexpected output %q", out)
	}
}

func TestGenerateModelMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model 'qwen2.5:1.5b' not found"}`)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}, testLogger()).Generate(context.Background(), "p")
	var pe *common.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Reason != common.ProviderUnavailable || pe.Status != http.StatusNotFound {
		t.Errorf("unexpected error %+v", pe)
	}
}

func TestGenerateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{BaseURL: url}, testLogger()).Generate(context.Background(), "p")
	var pe *common.ProviderError
	if !errors.As(err, &pe) || pe.Reason != common.ProviderNetwork {
		t.Fatalf("expected network ProviderError, got %v", err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL, Timeout: 30 * time.Millisecond}, testLogger()).Generate(context.Background(), "p")
	var pe *common.ProviderError
	if !errors.As(err, &pe) || pe.Reason != common.ProviderTimeout {
		t.Fatalf("expected timeout ProviderError, got %v", err)
	}
}
