package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the notes root and re-indexes changed
// note files until ctx is cancelled. cb (if non-nil) is called after each
// successful index mutation.
//
// New directories (a new YYYY or MM folder) are added to the watch list.
// Rename events trigger a debounced Sync that removes stale entries and
// picks up the new name.
func Watch(ctx context.Context, db *DB, notes *storage.Notes, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := notes.FS().Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	notify := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			stats, err := Sync(ctx, db, notes, logger)
			if err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
				continue
			}
			if stats.Indexed > 0 || stats.Removed > 0 {
				notify("reconciled", root)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			path := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, path); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", path),
							slog.String("error", addErr.Error()))
					}
					indexNewDir(ctx, db, notes, path, logger, notify)
					continue
				}
			}

			if !models.IsNoteFile(path) || strings.HasPrefix(filepath.Base(path), ".") {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if err := indexFile(ctx, db, notes, path); err != nil {
					logger.Warn("watcher: index failed", slog.String("path", path), slog.String("error", err.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", path), slog.String("op", kind))
				notify(kind, path)

			case ev.Op&fsnotify.Remove != 0:
				if err := db.RemoveNote(path); err != nil {
					logger.Warn("watcher: remove failed", slog.String("path", path), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("path", path))
				notify("deleted", path)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports Rename on the old path only; the new name
				// arrives as a Create if it stays inside a watched dir.
				if err := db.RemoveNote(path); err != nil {
					logger.Warn("watcher: rename remove failed", slog.String("path", path), slog.String("error", err.Error()))
				} else {
					notify("deleted", path)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// indexNewDir indexes note files already present in a newly created directory.
func indexNewDir(ctx context.Context, db *DB, notes *storage.Notes, dir string, logger *slog.Logger, notify func(kind, path string)) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !models.IsNoteFile(path) {
			return nil
		}
		if idxErr := indexFile(ctx, db, notes, path); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("path", path))
			notify("created", path)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
