// Package watch reports changes to a single file.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events one save produces.
const DefaultDebounce = 500 * time.Millisecond

// File watches path and calls onChange after it is written, replaced or
// removed. The parent directory is watched so that editors which save by
// renaming a temporary file over the original are seen. File blocks until
// ctx is cancelled.
func File(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if relevant(ev, target) {
				logger.Debug("file event", "path", ev.Name, "op", ev.Op.String())
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "path", target, "err", err)
		case <-timer.C:
			onChange()
		}
	}
}

// relevant reports whether ev changes the content at target.
func relevant(ev fsnotify.Event, target string) bool {
	name, err := filepath.Abs(ev.Name)
	if err != nil || name != target {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
