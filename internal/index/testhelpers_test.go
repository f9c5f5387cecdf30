package index

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/models"
)

func testDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.db"), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// mkNote builds a plain note with a deterministic id and path. n offsets the
// id and modified time by n minutes.
func mkNote(n int, title, content string, tags ...string) *models.Note {
	ts := baseTime.Add(time.Duration(n) * time.Minute)
	id := ts.Format("20060102150405")
	return &models.Note{
		ID:       id,
		Title:    title,
		Content:  content,
		Tags:     tags,
		Created:  ts,
		Modified: ts,
		FilePath: filepath.Join("/notes", id[:4], id[4:6], id+".md"),
		IsPlain:  true,
	}
}

func mustIndex(t *testing.T, db *DB, notes ...*models.Note) {
	t.Helper()
	for _, n := range notes {
		if err := db.IndexNote(n); err != nil {
			t.Fatalf("IndexNote(%s): %v", n.Title, err)
		}
	}
}
