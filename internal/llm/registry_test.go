package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joseph-ayodele/medimage2report/internal/common"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubProvider struct {
	name  string
	out   string
	err   error
	block bool
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Model() string { return s.name + "-model" }

func (s *stubProvider) Generate(ctx context.Context, _ string) (string, error) {
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.out, s.err
}

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry("openai", &stubProvider{name: "openai"})
	if _, err := r.Get(""); err != nil {
		t.Errorf("empty selector should use the default: %v", err)
	}
	_, err := r.Get("bard")
	var pe *common.ProviderError
	if !errors.As(err, &pe) || pe.Reason != common.ProviderUnavailable {
		t.Fatalf("expected unavailable ProviderError, got %v", err)
	}
}

func TestInvokeOK(t *testing.T) {
	raw := "```json\n{\"modality\":\"MRI\",\"sequences\":[\"T1\",\"T2\"]}\n```"
	iv := NewInvoker(NewRegistry("ollama", &stubProvider{name: "ollama", out: raw}), time.Second, testLogger())

	rep, err := iv.Invoke(context.Background(), "", "prompt")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if rep.Provider != "ollama" || rep.Model != "ollama-model" || rep.Raw != raw {
		t.Errorf("unexpected report meta: %+v", rep)
	}
	if rep.Fields.SequencesString() != "T1, T2" {
		t.Errorf("unexpected sequences %q", rep.Fields.SequencesString())
	}
}

func TestInvokeMalformedCarriesProvider(t *testing.T) {
	iv := NewInvoker(NewRegistry("openai", &stubProvider{name: "openai", out: "sorry, no JSON"}), time.Second, testLogger())
	_, err := iv.Invoke(context.Background(), "openai", "prompt")
	var mre *common.MalformedResponseError
	if !errors.As(err, &mre) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
	if mre.Provider != "openai" || mre.Raw != "sorry, no JSON" {
		t.Errorf("unexpected error fields: %+v", mre)
	}
}

func TestInvokeFoldsPlainErrors(t *testing.T) {
	iv := NewInvoker(NewRegistry("x", &stubProvider{name: "x", err: errors.New("connection refused")}), time.Second, testLogger())
	_, err := iv.Invoke(context.Background(), "x", "prompt")
	var pe *common.ProviderError
	if !errors.As(err, &pe) || pe.Reason != common.ProviderNetwork {
		t.Fatalf("expected network ProviderError, got %v", err)
	}
	if common.KindOf(err) != common.KindProvider {
		t.Errorf("unexpected kind %s", common.KindOf(err))
	}
}

func TestInvokeTimeout(t *testing.T) {
	iv := NewInvoker(NewRegistry("slow", &stubProvider{name: "slow", block: true}), 20*time.Millisecond, testLogger())
	_, err := iv.Invoke(context.Background(), "slow", "prompt")
	var pe *common.ProviderError
	if !errors.As(err, &pe) || pe.Reason != common.ProviderTimeout {
		t.Fatalf("expected timeout ProviderError, got %v", err)
	}
}

func TestInvokeCallerCanceled(t *testing.T) {
	iv := NewInvoker(NewRegistry("slow", &stubProvider{name: "slow", block: true}), time.Minute, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := iv.Invoke(ctx, "slow", "prompt")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if common.KindOf(err) != common.KindCanceled {
		t.Errorf("unexpected kind %s", common.KindOf(err))
	}
}

func TestFailureForStatus(t *testing.T) {
	cases := map[int]common.ProviderFailure{
		401: common.ProviderAuth,
		403: common.ProviderAuth,
		429: common.ProviderQuota,
		504: common.ProviderTimeout,
		500: common.ProviderUnavailable,
		503: common.ProviderUnavailable,
	}
	for status, want := range cases {
		if got := FailureForStatus(status); got != want {
			t.Errorf("FailureForStatus(%d) = %s, want %s", status, got, want)
		}
	}
}
