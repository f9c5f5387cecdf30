package index

import (
	"context"
	"log/slog"

	"github.com/starford/notegraph/internal/storage"
)

// SyncStats summarises one Sync pass.
type SyncStats struct {
	Indexed int `json:"indexed"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Sync walks the notes directory and brings the index up to date:
//   - new/changed files are loaded and re-indexed
//   - files removed from disk are removed from the index
func Sync(ctx context.Context, db *DB, notes *storage.Notes, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats
	fsys := notes.FS()
	metas, err := fsys.List("")
	if err != nil {
		return stats, err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		abs, err := fsys.Abs(m.Path)
		if err != nil {
			continue
		}
		disk[abs] = struct{}{}

		if checksums[abs] == m.Checksum {
			continue
		}
		if err := indexFile(ctx, db, notes, abs); err != nil {
			stats.Failed++
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		stats.Indexed++
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.RemoveNote(p); err != nil {
			stats.Failed++
			logger.Warn("sync: remove failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	return stats, nil
}

// RebuildFrom loads every note from disk and rebuilds the index from them.
// Notes that fail to load are logged and left out.
func RebuildFrom(ctx context.Context, db *DB, notes *storage.Notes, logger *slog.Logger) (int, error) {
	all, err := notes.LoadAll(ctx, func(path string, err error) {
		logger.Warn("rebuild: load failed", slog.String("path", path), slog.String("error", err.Error()))
	})
	if err != nil {
		return 0, err
	}
	if err := db.Rebuild(all); err != nil {
		return 0, err
	}
	logger.Info("rebuild: done", slog.Int("notes", len(all)))
	return len(all), nil
}

// indexFile loads the note at abs and re-indexes it.
func indexFile(ctx context.Context, db *DB, notes *storage.Notes, abs string) error {
	note, err := notes.Load(ctx, abs)
	if err != nil {
		return err
	}
	return db.IndexNote(note)
}
