package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/common"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig(t *testing.T) *common.Config {
	return &common.Config{
		Database: common.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "app.db"), AutoMigrate: true},
		OCR:      common.OCRConfig{Engine: constants.EngineTesseract, Language: "eng", DPI: 300},
		LLM: common.LLMConfig{
			Provider:    constants.ProviderOllama,
			Timeout:     time.Second,
			OllamaURL:   "http://127.0.0.1:1",
			OllamaModel: "test",
		},
		Queue: common.QueueConfig{Workers: 1, Size: 4, JobTimeout: time.Second},
	}
}

func TestNewWiresComponents(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), quiet())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Processor == nil || a.Ingest == nil || a.Export == nil || a.Invoker == nil {
		t.Fatalf("app not fully wired: %+v", a)
	}
	if got := a.Registry.Names(); !reflect.DeepEqual(got, []string{constants.ProviderOllama}) {
		t.Errorf("providers = %v", got)
	}
	q := a.StartQueue()
	if q == nil || a.StartQueue() != q {
		t.Error("StartQueue should be idempotent")
	}
	if a.DocumentServer() == nil {
		t.Error("nil document server")
	}
}

func TestBuildRegistryRequiresDefault(t *testing.T) {
	_, _, err := BuildRegistry(context.Background(), common.LLMConfig{Provider: constants.ProviderOpenAI, OllamaURL: "http://localhost:11434"}, quiet())
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestBuildRegistryRegistersConfiguredProviders(t *testing.T) {
	reg, closeFn, err := BuildRegistry(context.Background(), common.LLMConfig{
		Provider:     constants.ProviderOpenAI,
		OpenAIAPIKey: "sk-test",
		OllamaURL:    "http://localhost:11434",
	}, quiet())
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	defer closeFn()
	if got := reg.Names(); !reflect.DeepEqual(got, []string{constants.ProviderOllama, constants.ProviderOpenAI}) {
		t.Errorf("providers = %v", got)
	}
}

func TestBuildExtractorRejectsUnknownEngine(t *testing.T) {
	_, _, err := BuildExtractor(context.Background(), common.OCRConfig{Engine: "abbyy"}, quiet())
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}
