// Package testutil provides shared test helpers for setting up notes
// directories and index databases.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/storage"
)

// TestDB creates a temporary SQLite index that is closed on cleanup.
func TestDB(t *testing.T, opts ...index.Option) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestNotes creates a temporary notes directory with a plain-text loader.
func TestNotes(t *testing.T) *storage.Notes {
	t.Helper()
	fsys, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return storage.NewNotes(fsys, nil)
}

// Base is the creation time of the first note made by SaveNote.
var Base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// SaveNote writes a plain note created n minutes after Base and returns it.
func SaveNote(t *testing.T, notes *storage.Notes, n int, title, content string, tags ...string) *models.Note {
	t.Helper()
	ts := Base.Add(time.Duration(n) * time.Minute)
	note := &models.Note{
		Title:    title,
		Content:  content,
		Tags:     tags,
		Created:  ts,
		Modified: ts,
		IsPlain:  true,
	}
	if err := notes.Save(context.Background(), note); err != nil {
		t.Fatal(err)
	}
	return note
}
