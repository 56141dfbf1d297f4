package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"
)

// PageResult is the raw engine output for one page. Warning is set when the page
// could not be recognized.
type PageResult struct {
	Number  int
	Text    string
	Warning string
}

// Adapter wraps an Engine so that a failing page never aborts the document.
type Adapter struct {
	engine   Engine
	contrast float64
	logger   *slog.Logger
}

func NewAdapter(engine Engine, contrast float64, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{engine: engine, contrast: contrast, logger: logger}
}

func (a *Adapter) Page(ctx context.Context, page RenderedPage, lang string) PageResult {
	res := PageResult{Number: page.Number}
	path, err := a.preprocess(page.Path)
	if err != nil {
		a.logger.Warn("ocr.page.preprocess_failed", "page", page.Number, "error", err)
		path = page.Path
	}
	txt, err := a.engine.Recognize(ctx, path, lang)
	if err != nil {
		a.logger.Warn("ocr.page.failed", "page", page.Number, "engine", a.engine.Name(), "error", err)
		res.Warning = fmt.Sprintf("page %d: %v", page.Number, err)
		return res
	}
	res.Text = txt
	return res
}

// preprocess writes the enhanced raster next to the original and returns its path.
func (a *Adapter) preprocess(path string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", err
	}
	out := strings.TrimSuffix(path, ".png") + ".prep.png"
	if err := imaging.Save(Preprocess(img, a.contrast), out); err != nil {
		return "", err
	}
	return out, nil
}
