package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads whenever the CURRENT file in dataDir is written or
// replaced, until ctx is cancelled. Bursts of events within debounce
// collapse into one reload.
func (r *Reloader) Watch(ctx context.Context, dataDir string, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	// CURRENT is replaced by rename, so the directory is watched rather
	// than the file.
	if err := w.Add(dataDir); err != nil {
		return fmt.Errorf("watching %s: %w", dataDir, err)
	}
	current := filepath.Join(dataDir, indexer.CurrentFile)
	r.logger.Info("watching for new generations", "path", current)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != current || !evt.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", "error", err)
		case <-timer.C:
			if _, err := r.Reload(ctx); err != nil {
				r.logger.Error("reload after CURRENT change failed", "error", err)
			}
		}
	}
}
