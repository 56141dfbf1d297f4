package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/async"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/export"
	"github.com/joseph-ayodele/medimage2report/internal/ingest"
	"github.com/joseph-ayodele/medimage2report/internal/llm"
	"github.com/joseph-ayodele/medimage2report/internal/llm/gemini"
	"github.com/joseph-ayodele/medimage2report/internal/llm/ollama"
	"github.com/joseph-ayodele/medimage2report/internal/llm/openai"
	"github.com/joseph-ayodele/medimage2report/internal/ocr"
	"github.com/joseph-ayodele/medimage2report/internal/pipeline"
	"github.com/joseph-ayodele/medimage2report/internal/repository"
	"github.com/joseph-ayodele/medimage2report/internal/server"
)

// App is the fully wired service graph shared by the daemon and the CLI.
type App struct {
	Config *common.Config
	Logger *slog.Logger

	DB      *repository.DB
	Docs    repository.DocumentRepository
	Reports repository.ReportRepository
	Errors  repository.ProcessingErrorRepository

	Extractor *ocr.Extractor
	Registry  *llm.Registry
	Invoker   *llm.Invoker
	Processor *pipeline.Processor
	Queue     *async.ProcessorQueue // nil unless StartQueue was called
	Ingest    *ingest.Service
	Export    *export.Service

	closers []func() error
}

// New connects the database and builds OCR, LLM and pipeline components from cfg.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.Docs = repository.NewDocumentRepository(db, logger)
	a.Reports = repository.NewReportRepository(db, logger)
	a.Errors = repository.NewProcessingErrorRepository(db, logger)

	extractor, closeOCR, err := BuildExtractor(ctx, cfg.OCR, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Extractor = extractor
	a.closers = append(a.closers, closeOCR)

	registry, closeLLM, err := BuildRegistry(ctx, cfg.LLM, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Registry = registry
	a.closers = append(a.closers, closeLLM)
	a.Invoker = llm.NewInvoker(registry, cfg.LLM.Timeout, logger)

	a.Processor = pipeline.NewProcessor(pipeline.Config{
		DefaultLanguage: cfg.OCR.Language,
		DefaultProvider: cfg.LLM.Provider,
		Locales:         cfg.LLM.Locales,
	}, a.Docs, a.Reports, a.Errors, a.Extractor, a.Invoker, logger)

	a.Ingest = ingest.NewService(a.Docs, nil, logger)
	a.Export = export.NewService(a.Docs, a.Reports, logger)
	return a, nil
}

// StartQueue starts the background workers and lets ingestion schedule work.
func (a *App) StartQueue() *async.ProcessorQueue {
	if a.Queue != nil {
		return a.Queue
	}
	a.Queue = async.NewProcessorQueue(a.Processor, a.Logger,
		async.WithWorkers(a.Config.Queue.Workers),
		async.WithQueueSize(a.Config.Queue.Size),
		async.WithProcessTimeout(a.Config.Queue.JobTimeout),
	)
	a.Ingest = ingest.NewService(a.Docs, a.Queue, a.Logger)
	return a.Queue
}

// DocumentServer builds the gRPC service over the app's components.
func (a *App) DocumentServer() *server.DocumentServer {
	d := server.Deps{
		Ingest:  a.Ingest,
		Proc:    a.Processor,
		Docs:    a.Docs,
		Reports: a.Reports,
		Errors:  a.Errors,
		Export:  a.Export,
	}
	if a.Queue != nil {
		d.Queue = a.Queue
	}
	return server.NewDocumentServer(d, a.Logger)
}

// Close drains the queue, releases provider clients and closes the database.
func (a *App) Close() {
	if a.Queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.Queue.JobTimeout)
		a.Queue.Shutdown(ctx)
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
	if a.DB != nil {
		a.DB.Close(a.Logger)
		a.DB = nil
	}
}

// BuildExtractor builds the OCR pipeline for the configured engine.
func BuildExtractor(ctx context.Context, cfg common.OCRConfig, logger *slog.Logger) (*ocr.Extractor, func() error, error) {
	ocfg := ocr.Config{
		Pdftoppm:    cfg.Pdftoppm,
		Tesseract:   cfg.Tesseract,
		Language:    cfg.Language,
		DPI:         cfg.DPI,
		MaxPages:    cfg.MaxPages,
		Workers:     cfg.Workers,
		Contrast:    cfg.Contrast,
		TessdataDir: cfg.TessdataDir,
		PSM:         cfg.PSM,
		OEM:         cfg.OEM,
	}
	switch cfg.Engine {
	case "", constants.EngineTesseract:
		return ocr.NewExtractor(ocfg, ocr.NewTesseractEngine(ocfg, logger), logger), func() error { return nil }, nil
	case constants.EngineVision:
		engine, err := ocr.NewVisionEngine(ctx, ocr.VisionConfig{
			Project:         cfg.VisionProject,
			CredentialsJSON: cfg.VisionCredsJSON,
			CredentialsFile: cfg.VisionCredsFile,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return ocr.NewExtractor(ocfg, engine, logger), engine.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown OCR engine %q", common.ErrInvalidInput, cfg.Engine)
}

// BuildRegistry registers every provider that has enough configuration to
// start. The default provider must be among them.
func BuildRegistry(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (*llm.Registry, func() error, error) {
	reg := llm.NewRegistry(cfg.Provider)
	closeFn := func() error { return nil }

	if cfg.OpenAIAPIKey != "" {
		reg.Register(openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger))
	}
	if cfg.OllamaURL != "" {
		reg.Register(ollama.NewClient(ollama.Config{
			BaseURL:     cfg.OllamaURL,
			Model:       cfg.OllamaModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger))
	}
	if cfg.GeminiProject != "" {
		gc, err := gemini.NewClient(ctx, gemini.Config{
			ProjectID:       cfg.GeminiProject,
			Location:        cfg.GeminiLocation,
			Model:           cfg.GeminiModel,
			Temperature:     cfg.Temperature,
			CredentialsFile: cfg.GeminiCredsFile,
		}, logger)
		switch {
		case err == nil:
			reg.Register(gc)
			closeFn = gc.Close
		case cfg.Provider == constants.ProviderGemini:
			return nil, nil, err
		default:
			logger.Warn("gemini provider disabled", "error", err)
		}
	}

	if _, err := reg.Get(cfg.Provider); err != nil {
		_ = closeFn()
		return nil, nil, errors.Join(common.ErrInvalidInput, err)
	}
	logger.Info("llm providers registered", "default", cfg.Provider, "providers", reg.Names())
	return reg, closeFn, nil
}
