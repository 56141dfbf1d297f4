package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/common"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language    string // ISO-639-2 tesseract code, default "eng"
	DPI         int    // rasterization DPI, default 400, never below 300
	MaxPages    int    // 0 = no limit
	Workers     int    // parallel page OCR, default 4
	Contrast    float64
	TessdataDir string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

func (c Config) withDefaults() Config {
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Language == "" {
		c.Language = constants.DefaultOCRLanguage
	}
	if c.DPI <= 0 {
		c.DPI = constants.DefaultDPI
	}
	if c.DPI < constants.MinDPI {
		c.DPI = constants.MinDPI
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Contrast <= 0 {
		c.Contrast = constants.DefaultContrast
	}
	return c
}

// PageText is the normalized text of one page; Text is empty for blank or failed pages.
type PageText struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// ExtractedContent is the result of one extraction attempt.
type ExtractedContent struct {
	Pages    []PageText    `json:"pages"`
	RawText  string        `json:"raw_text"`
	Language string        `json:"language"`
	Engine   string        `json:"engine"`
	Duration time.Duration `json:"duration"`
	Warnings []string      `json:"warnings,omitempty"`
}

// NonEmptyPages counts pages that produced text.
func (c ExtractedContent) NonEmptyPages() int {
	n := 0
	for _, p := range c.Pages {
		if p.Text != "" {
			n++
		}
	}
	return n
}

type Extractor struct {
	cfg      Config
	renderer *Renderer
	adapter  *Adapter
	logger   *slog.Logger
}

func NewExtractor(cfg Config, engine Engine, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	runner := execRunner{logger: logger}
	return &Extractor{
		cfg:      cfg,
		renderer: NewRenderer(cfg, runner, logger),
		adapter:  NewAdapter(engine, cfg.Contrast, logger),
		logger:   logger,
	}
}

// Extract renders pdf, OCRs every page in parallel and normalizes the text in page
// order. Lines are deduplicated across the whole document.
func (e *Extractor) Extract(ctx context.Context, pdf []byte, lang string) (ExtractedContent, error) {
	start := time.Now()
	if lang == "" {
		lang = e.cfg.Language
	}
	out := ExtractedContent{Language: lang, Engine: e.adapter.engine.Name()}
	e.logger.Debug("ocr.extract.start", "bytes", len(pdf), "language", lang, "engine", out.Engine)

	pages, cleanup, err := e.renderer.Render(ctx, pdf)
	defer cleanup()
	if err != nil {
		out.Duration = time.Since(start)
		return out, err
	}

	results := make([]PageResult, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, p := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.adapter.Page(gctx, p, lang)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		out.Duration = time.Since(start)
		return out, err
	}
	if err := ctx.Err(); err != nil {
		out.Duration = time.Since(start)
		return out, err
	}

	// dedup runs sequentially in page order so the output does not depend on
	// which worker finished first
	norm := NewNormalizer()
	var texts []string
	out.Pages = make([]PageText, 0, len(results))
	for _, r := range results {
		txt := norm.Page(r.Text)
		out.Pages = append(out.Pages, PageText{Number: r.Number, Text: txt})
		if r.Warning != "" {
			out.Warnings = append(out.Warnings, r.Warning)
		}
		if txt != "" {
			texts = append(texts, txt)
		}
	}
	out.RawText = strings.Join(texts, constants.PageBoundary)
	out.Duration = time.Since(start)

	if len(texts) == 0 {
		e.logger.Warn("ocr.extract.empty", "pages", len(out.Pages), "warnings", len(out.Warnings))
		return out, &common.ExtractionError{Pages: len(out.Pages), Warnings: out.Warnings}
	}
	e.logger.Info("ocr.extract.ok",
		"pages", len(out.Pages),
		"non_empty_pages", len(texts),
		"chars", len(out.RawText),
		"elapsed_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

