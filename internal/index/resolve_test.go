package index

import (
	"testing"
	"time"
)

type mapLocator map[string]string

func (m mapLocator) Locate(id string) (string, bool) {
	p, ok := m[id]
	return p, ok
}

func TestResolve_ByID(t *testing.T) {
	db := testDB(t)
	n := mkNote(0, "Dated", "")
	mustIndex(t, db, n)

	ref, ok, err := db.Resolve(n.ID, false)
	if err != nil || !ok || ref.Title != "Dated" || ref.Path != n.FilePath {
		t.Errorf("Resolve(id) = %+v, %v, %v", ref, ok, err)
	}
}

func TestResolve_ByIDWithLocator(t *testing.T) {
	n := mkNote(0, "Indexed", "")
	db := testDB(t, WithLocator(mapLocator{
		n.ID:             n.FilePath,
		"20231231235959": "/notes/2023/12/20231231235959.md.gpg",
	}))
	mustIndex(t, db, n)

	ref, ok, _ := db.Resolve(n.ID, false)
	if !ok || ref.Title != "Indexed" {
		t.Errorf("indexed = %+v, %v", ref, ok)
	}

	ref, ok, _ = db.Resolve("20231231235959", false)
	if !ok || ref.Title != "20231231235959" || ref.Path != "/notes/2023/12/20231231235959.md.gpg" {
		t.Errorf("on disk only = %+v, %v", ref, ok)
	}

	if _, ok, _ := db.Resolve("20000101000000", false); ok {
		t.Error("unknown id resolved")
	}
}

func TestResolve_TitleCaseInsensitiveLatestWins(t *testing.T) {
	db := testDB(t)
	first := mkNote(0, "Meeting", "")
	second := mkNote(1, "meeting", "")
	mustIndex(t, db, first, second)

	ref, ok, _ := db.Resolve("MEETING", false)
	if !ok || ref.ID != second.ID {
		t.Errorf("Resolve = %+v, want most recently indexed %s", ref, second.ID)
	}

	// Re-indexing the first note makes it the most recent.
	mustIndex(t, db, first)
	if ref, _, _ := db.Resolve("meeting", false); ref.ID != first.ID {
		t.Errorf("after re-index = %+v", ref)
	}
}

func TestResolve_FuzzyPrefersLatestModified(t *testing.T) {
	db := testDB(t)
	older := mkNote(0, "Quarterly planning", "")
	newer := mkNote(1, "Budget", "the quarterly review")
	newer.Modified = newer.Modified.Add(24 * time.Hour)
	mustIndex(t, db, newer, older)

	if _, ok, _ := db.Resolve("quarterly", false); ok {
		t.Error("exact resolution should not use full-text search")
	}
	ref, ok, err := db.Resolve("quarterly", true)
	if err != nil || !ok || ref.ID != newer.ID {
		t.Errorf("fuzzy = %+v, %v, %v", ref, ok, err)
	}
}

func TestResolve_Unresolved(t *testing.T) {
	db := testDB(t)
	for _, target := range []string{"", "Nothing", "12345"} {
		if _, ok, err := db.Resolve(target, true); ok || err != nil {
			t.Errorf("Resolve(%q) = %v, %v", target, ok, err)
		}
	}
}
