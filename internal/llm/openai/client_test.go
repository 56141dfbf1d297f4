package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joseph-ayodele/medimage2report/internal/common"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerateOK(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":" {\"modality\":\"MRI\"} "},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
	})

	out, err := c.Generate(context.Background(), "describe the report")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != `{"modality":"MRI"}` {
		t.Errorf("unexpected content %q", out)
	}
	if rf, ok := got["response_format"].(map[string]any); !ok || rf["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", got["response_format"])
	}
}

func TestGenerateFoldsErrors(t *testing.T) {
	cases := []struct {
		status int
		want   common.ProviderFailure
	}{
		{http.StatusUnauthorized, common.ProviderAuth},
		{http.StatusTooManyRequests, common.ProviderQuota},
		{http.StatusServiceUnavailable, common.ProviderUnavailable},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"invalid_request_error","code":"x"}}`)
		})
		_, err := c.Generate(context.Background(), "p")
		var pe *common.ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("status %d: expected ProviderError, got %v", tc.status, err)
		}
		if pe.Reason != tc.want || pe.Provider != "openai" {
			t.Errorf("status %d: got reason %s provider %s", tc.status, pe.Reason, pe.Provider)
		}
	}
}

func TestGenerateNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
	})
	_, err := c.Generate(context.Background(), "p")
	if !errors.Is(err, common.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
