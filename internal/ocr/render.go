package ocr

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/common"
)

// RenderedPage is one rasterized page on disk. Number is 1-based.
type RenderedPage struct {
	Number int
	Path   string
}

// Renderer turns PDF bytes into page PNGs via pdftoppm.
type Renderer struct {
	pdftoppm  string
	dpi       int
	maxPages  int
	runner    Runner
	pageCount func(rs io.ReadSeeker) (int, error)
	logger    *slog.Logger
}

func NewRenderer(cfg Config, runner Runner, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Renderer{
		pdftoppm:  cfg.Pdftoppm,
		dpi:       cfg.DPI,
		maxPages:  cfg.MaxPages,
		runner:    runner,
		pageCount: pdfPageCount,
		logger:    logger,
	}
}

func pdfPageCount(rs io.ReadSeeker) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(rs, conf)
}

// Render validates pdf and rasterizes its pages in page order. The returned
// cleanup removes the temporary files and is safe to call when err != nil.
func (r *Renderer) Render(ctx context.Context, pdf []byte) ([]RenderedPage, func(), error) {
	noop := func() {}
	if !constants.HasPDFHeader(pdf) {
		return nil, noop, &common.DocumentFormatError{Reason: "missing %PDF header"}
	}
	n, err := r.pageCount(bytes.NewReader(pdf))
	if err != nil {
		return nil, noop, &common.DocumentFormatError{Reason: "unparseable pdf", Cause: err}
	}
	if n == 0 {
		return nil, noop, &common.DocumentFormatError{Reason: "pdf has no pages"}
	}

	tmpDir, err := os.MkdirTemp("", "mr-pp-*")
	if err != nil {
		return nil, noop, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger.Warn("ocr.render.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}

	in := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, cleanup, err
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 400 -png [-l N] <in.pdf> <tmp/page>
	args := []string{"-r", strconv.Itoa(r.dpi), "-png"}
	if r.maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(r.maxPages))
	}
	args = append(args, in, prefix)
	if _, errb, err := r.runner.Run(ctx, r.pdftoppm, args...); err != nil {
		if ctx.Err() != nil {
			return nil, cleanup, ctx.Err()
		}
		return nil, cleanup, &common.DocumentFormatError{
			Reason: "rasterization failed: " + tail(string(errb), 512),
			Cause:  err,
		}
	}

	pages, err := collectPages(prefix)
	if err != nil {
		return nil, cleanup, err
	}
	if r.maxPages > 0 && len(pages) > r.maxPages {
		pages = pages[:r.maxPages]
	}
	if len(pages) == 0 {
		return nil, cleanup, &common.DocumentFormatError{Reason: "pdftoppm produced no images"}
	}
	r.logger.Debug("ocr.render.ok", "pages", len(pages), "pdf_pages", n, "dpi", r.dpi)
	return pages, cleanup, nil
}

// collectPages finds prefix-<n>.png files and orders them by n.
func collectPages(prefix string) ([]RenderedPage, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	pages := make([]RenderedPage, 0, len(matches))
	for _, m := range matches {
		num := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), filepath.Base(prefix)+"-"), ".png")
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		pages = append(pages, RenderedPage{Number: n, Path: m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}
