package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/joseph-ayodele/medimage2report/constants"
)

// Engine recognizes the text of a single page image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath, lang string) (string, error)
}

// reBoxNoise strips runs of box-drawing and pipe characters tesseract emits for table rules.
var reBoxNoise = regexp.MustCompile(`[│┃┆┇┊┋|]{2,}`)

type TesseractEngine struct {
	bin         string
	tessdataDir string
	psm, oem    int
	runner      Runner
	logger      *slog.Logger
}

func NewTesseractEngine(cfg Config, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &TesseractEngine{
		bin:         cfg.Tesseract,
		tessdataDir: cfg.TessdataDir,
		psm:         cfg.PSM,
		oem:         cfg.OEM,
		runner:      execRunner{logger: logger},
		logger:      logger,
	}
}

func (t *TesseractEngine) Name() string { return constants.EngineTesseract }

func (t *TesseractEngine) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	// tesseract <file> stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D]
	args := []string{imagePath, "stdout", "-l", lang}
	if t.psm > 0 {
		args = append(args, "--psm", strconv.Itoa(t.psm))
	}
	if t.oem > 0 {
		args = append(args, "--oem", strconv.Itoa(t.oem))
	}
	if t.tessdataDir != "" {
		args = append(args, "--tessdata-dir", t.tessdataDir)
	}
	out, errb, err := t.runner.Run(ctx, t.bin, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, tail(string(errb), 512))
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}
