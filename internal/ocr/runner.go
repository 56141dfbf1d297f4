package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner executes an external binary (pdftoppm, tesseract). Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	log := r.logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("cmd", name, "args", strings.Join(args, " "), "elapsed_ms", time.Since(start).Milliseconds())
	switch {
	case ctx.Err() != nil:
		log.Warn("ocr.exec.canceled", "error", ctx.Err())
	case err != nil:
		log.Error("ocr.exec.failed", "error", err, "stderr", tail(stderr.String(), 4<<10))
	default:
		log.Debug("ocr.exec.ok", "stdout_bytes", stdout.Len())
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// tail keeps the last n bytes of s; pdftoppm and tesseract print the cause last.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
