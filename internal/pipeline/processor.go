package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/entity"
	"github.com/joseph-ayodele/medimage2report/internal/llm"
	"github.com/joseph-ayodele/medimage2report/internal/ocr"
	"github.com/joseph-ayodele/medimage2report/internal/repository"
)

// TextExtractor is what the processor needs from the OCR layer.
type TextExtractor interface {
	Extract(ctx context.Context, pdf []byte, lang string) (ocr.ExtractedContent, error)
}

// ReportInvoker is what the processor needs from the LLM layer.
type ReportInvoker interface {
	Invoke(ctx context.Context, providerName, prompt string) (llm.ParsedReport, error)
}

type Config struct {
	DefaultLanguage string
	DefaultProvider string
	Locales         []string
	// FinalizeTimeout bounds the terminal writes, which run detached from the
	// caller's context. Default 10s.
	FinalizeTimeout time.Duration
}

// Options select the OCR language and LLM provider for one attempt.
type Options struct {
	Language string
	Provider string
}

// Outcome describes one finished attempt. Exactly one of Report and Error is set
// once the attempt has started.
type Outcome struct {
	DocumentID uuid.UUID
	AttemptID  uuid.UUID
	Status     constants.DocumentStatus
	Report     *entity.StructuredReport
	Error      *entity.ProcessingError
	Pages      int
	Warnings   []string
	Duration   time.Duration
}

// Processor drives a document through uploaded -> processing -> processed | error.
type Processor struct {
	cfg       Config
	docs      repository.DocumentRepository
	reports   repository.ReportRepository
	errs      repository.ProcessingErrorRepository
	extractor TextExtractor
	invoker   ReportInvoker
	logger    *slog.Logger
}

func NewProcessor(
	cfg Config,
	docs repository.DocumentRepository,
	reports repository.ReportRepository,
	errs repository.ProcessingErrorRepository,
	extractor TextExtractor,
	invoker ReportInvoker,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = constants.DefaultOCRLanguage
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = constants.ProviderOpenAI
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = 10 * time.Second
	}
	return &Processor{
		cfg:       cfg,
		docs:      docs,
		reports:   reports,
		errs:      errs,
		extractor: extractor,
		invoker:   invoker,
		logger:    logger,
	}
}

// Process runs one attempt. A document in any state may be processed again;
// a successful attempt appends a new report.
//
// When the attempt fails, the returned error is the cause and Outcome.Error
// describes what was recorded. Errors loading the document or entering the
// processing state are returned before any attempt starts.
func (p *Processor) Process(ctx context.Context, documentID uuid.UUID, opts Options) (Outcome, error) {
	start := time.Now()
	if opts.Language == "" {
		opts.Language = p.cfg.DefaultLanguage
	}
	if opts.Provider == "" {
		opts.Provider = p.cfg.DefaultProvider
	}
	out := Outcome{DocumentID: documentID}

	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		p.logger.Error("processor.load.failed", "document_id", documentID, "err", err)
		return out, err
	}
	if err := p.docs.UpdateStatus(ctx, documentID, constants.StatusProcessing); err != nil {
		p.logger.Error("processor.start.failed", "document_id", documentID, "err", err)
		return out, err
	}
	out.AttemptID = uuid.New()
	out.Status = constants.StatusProcessing
	log := p.logger.With("document_id", documentID, "attempt_id", out.AttemptID)
	log.Info("processor.attempt.start", "provider", opts.Provider, "language", opts.Language, "bytes", len(doc.Content))

	// 1) OCR
	content, err := p.extractor.Extract(ctx, doc.Content, opts.Language)
	out.Pages, out.Warnings = len(content.Pages), content.Warnings
	if err != nil {
		return p.fail(ctx, log, out, start, "ocr", err)
	}
	log.Info("processor.ocr.ok",
		"pages", len(content.Pages),
		"non_empty_pages", content.NonEmptyPages(),
		"warnings", len(content.Warnings),
		"elapsed_ms", content.Duration.Milliseconds(),
	)

	// 2) prompt + LLM
	prompt := llm.BuildPrompt(content, llm.PromptOptions{Locales: p.cfg.Locales, Filename: doc.OriginalFilename})
	parsed, err := p.invoker.Invoke(ctx, opts.Provider, prompt)
	if err != nil {
		return p.fail(ctx, log, out, start, "llm", err)
	}
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, log, out, start, "llm", err)
	}

	// 3) persist report, findings and the processed status together
	report := buildReport(documentID, out.AttemptID, parsed)
	fctx, cancel := p.finalizeContext(ctx)
	defer cancel()
	if err := p.reports.CreateAndMarkProcessed(fctx, report); err != nil {
		return p.fail(ctx, log, out, start, "persist", err)
	}

	out.Status = constants.StatusProcessed
	out.Report = report
	out.Duration = time.Since(start)
	log.Info("processor.attempt.ok",
		"report_id", report.ID,
		"provider", report.Provider,
		"modality", report.Modality,
		"findings", len(report.Findings),
		"elapsed_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

// fail records the error first, then moves the document to error. Both writes
// are attempted even if the first fails; cause is always returned.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, out Outcome, start time.Time, stage string, cause error) (Outcome, error) {
	kind := common.KindOf(cause)
	pe := &entity.ProcessingError{
		DocumentID: out.DocumentID,
		AttemptID:  out.AttemptID,
		Kind:       string(kind),
		Message:    cause.Error(),
	}

	fctx, cancel := p.finalizeContext(ctx)
	defer cancel()
	if err := p.errs.Create(fctx, pe); err != nil {
		log.Error("processor.error_record.failed", "kind", kind, "cause", cause, "err", err)
	} else {
		out.Error = pe
	}
	if err := p.docs.UpdateStatus(fctx, out.DocumentID, constants.StatusError); err != nil {
		log.Error("processor.error_status.failed", "kind", kind, "err", err)
	} else {
		out.Status = constants.StatusError
	}

	out.Duration = time.Since(start)
	log.Error("processor.attempt.failed",
		"stage", stage,
		"kind", kind,
		"err", cause,
		"elapsed_ms", out.Duration.Milliseconds(),
	)
	return out, cause
}

// finalizeContext keeps terminal writes alive when the caller gives up.
func (p *Processor) finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FinalizeTimeout)
}

func buildReport(documentID, attemptID uuid.UUID, parsed llm.ParsedReport) *entity.StructuredReport {
	f := parsed.Fields
	rep := &entity.StructuredReport{
		DocumentID:    documentID,
		AttemptID:     attemptID,
		Company:       f.Company,
		Sequences:     f.SequencesString(),
		Method:        f.Method,
		Region:        f.Region,
		Modality:      f.Modality,
		ShortText:     f.ShortText,
		LongText:      f.LongText,
		Quality:       f.Quality,
		Locales:       f.Locales,
		Provider:      parsed.Provider,
		Model:         parsed.Model,
		SchemaVersion: llm.SchemaVersion,
		RawResponse:   parsed.Raw,
	}
	for i, fd := range f.Findings {
		rep.Findings = append(rep.Findings, entity.Finding{
			Position:     i,
			FindingType:  fd.FindingType,
			Location:     fd.Location,
			Value:        fd.Value,
			Unit:         fd.Unit,
			Significance: fd.Significance,
		})
	}
	return rep
}
