package faqfile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reapplies a seed file whenever it changes on disk.
type Watcher struct {
	seeder   *Seeder
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher constructs a watcher for path.
func NewWatcher(seeder *Seeder, path string, logger *slog.Logger) *Watcher {
	return &Watcher{
		seeder:   seeder,
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		logger:   logger.With("component", "faqfile.watcher"),
	}
}

// Run blocks until ctx is cancelled. The parent directory is watched so that
// editors which replace the file on save are still picked up.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching faq seed file", "path", w.path)

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			trigger = timer.C
		case <-trigger:
			trigger = nil
			if _, err := w.seeder.Apply(ctx, w.path); err != nil {
				w.logger.Error("reload faq seed failed", "path", w.path, "error", err)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("faq seed watcher error", "error", err)
		}
	}
}
