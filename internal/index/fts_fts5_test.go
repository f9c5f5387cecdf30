//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, mkNote(0, "FTS Note", "The index provides powerful full-text search capabilities.", "search"))

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !strings.Contains(results[0].Snippet, "<b>powerful</b>") {
		t.Errorf("snippet missing highlight: %q", results[0].Snippet)
	}
	if results[0].Modified.IsZero() {
		t.Error("modified not joined from notes")
	}
}

func TestFTS5_RemoveAndRebuildClearRows(t *testing.T) {
	db := testDB(t)
	n := mkNote(0, "Gone", "ephemeral words")
	mustIndex(t, db, n)
	if err := db.RemoveNote(n.FilePath); err != nil {
		t.Fatal(err)
	}
	if res, _ := db.Search("ephemeral", 10); len(res) != 0 {
		t.Errorf("removed note still searchable: %+v", res)
	}

	mustIndex(t, db, n)
	if err := db.Rebuild(nil); err != nil {
		t.Fatal(err)
	}
	var count int
	_ = db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count)
	if count != 0 {
		t.Errorf("fts rows after empty rebuild = %d", count)
	}
}
