package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/medimage2report/internal/async"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid create/write bursts per path
	Logger      *slog.Logger
}

// StartWatcher emits the paths of PDFs created or rewritten under cfg.Roots
// until ctx is done. Both channels are closed when the watcher stops.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var initial []string
	for _, r := range cfg.Roots {
		err := filepath.WalkDir(r, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && AllowedExt(filepath.Ext(path)) {
				initial = append(initial, path)
			}
			return nil
		})
		if err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("watcher close failed", "error", err)
			}
		}()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		// last event time per path; a path is emitted once it has been quiet for Debounce
		pending := map[string]time.Time{}
		tick := time.NewTicker(tickInterval(cfg.Debounce))
		defer tick.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op.Has(fsnotify.Create) {
					// new subdirectories are watched too; Add fails harmlessly for files
					_ = w.Add(e.Name)
				}
				if !AllowedExt(filepath.Ext(e.Name)) || !(e.Op.Has(fsnotify.Create) || e.Op.Has(fsnotify.Write) || e.Op.Has(fsnotify.Rename)) {
					continue
				}
				if cfg.Debounce <= 0 {
					if !emit(e.Name) {
						return
					}
					continue
				}
				pending[e.Name] = time.Now()
			case now := <-tick.C:
				for p, last := range pending {
					if now.Sub(last) < cfg.Debounce {
						continue
					}
					delete(pending, p)
					if !emit(p) {
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func tickInterval(debounce time.Duration) time.Duration {
	if debounce <= 0 {
		return time.Second
	}
	if d := debounce / 4; d > 10*time.Millisecond {
		return d
	}
	return 10 * time.Millisecond
}

// Watch ingests every PDF reported by the watcher for ownerID and schedules new
// documents with job as the template. It returns when ctx is done.
func (s *Service) Watch(ctx context.Context, cfg WatchConfig, ownerID string, job async.Job) error {
	if cfg.Logger == nil {
		cfg.Logger = s.logger
	}
	paths, errs, err := StartWatcher(ctx, cfg)
	if err != nil {
		return err
	}
	s.logger.Info("ingest.watch.started", "roots", cfg.Roots, "owner_id", ownerID)
	for {
		select {
		case p, ok := <-paths:
			if !ok {
				s.logger.Info("ingest.watch.stopped")
				return ctx.Err()
			}
			r, err := s.IngestPath(ctx, ownerID, p)
			if err != nil {
				s.logger.Warn("ingest.watch.skipped", "path", p, "err", err)
				continue
			}
			if err := s.Schedule(ctx, r, job, false); err != nil {
				s.logger.Error("ingest.watch.schedule_failed", "path", p, "document_id", r.DocumentID, "err", err)
			}
		case err, ok := <-errs:
			if ok {
				s.logger.Warn("ingest.watch.error", "err", err)
			} else {
				errs = nil
			}
		}
	}
}
