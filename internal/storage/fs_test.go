package storage

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func tempNotesDir(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempNotesDir(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("2024/05/20240512093000.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("2024/05/20240512093000.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestDeleteAndMove(t *testing.T) {
	s := tempNotesDir(t)
	_ = s.Write("a.md", []byte("x"))
	if err := s.Move("a.md", "2024/01/a.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := s.Read("a.md"); err == nil {
		t.Error("old path still readable")
	}
	if err := s.Delete("2024/01/a.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("2024/01/a.md"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestListSkipsHiddenAndForeignFiles(t *testing.T) {
	s := tempNotesDir(t)
	_ = s.Write("2024/01/20240101000000.md", []byte("a"))
	_ = s.Write("2024/01/20240102000000.md.gpg", []byte("b"))
	_ = s.Write("2024/01/image.png", []byte("c"))
	_ = s.Write(".git/objects/x.md", []byte("d"))

	metas, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var paths []string
	for _, m := range metas {
		paths = append(paths, filepath.ToSlash(m.Path))
		if m.Checksum == "" {
			t.Errorf("missing checksum for %s", m.Path)
		}
	}
	sort.Strings(paths)
	want := []string{"2024/01/20240101000000.md", "2024/01/20240102000000.md.gpg"}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	s := tempNotesDir(t)
	if _, err := s.Read("../../etc/passwd"); err == nil {
		t.Error("expected traversal error")
	}
	if err := s.Write("../escape.md", []byte("x")); err == nil {
		t.Error("expected traversal error")
	}
	if _, err := s.Rel("/somewhere/else.md"); err == nil {
		t.Error("expected outside-root error")
	}
}

func TestLocatePrefersEncrypted(t *testing.T) {
	s := tempNotesDir(t)
	if _, ok := s.Locate("20240512093000"); ok {
		t.Fatal("located a missing note")
	}

	_ = s.Write("2024/05/20240512093000.md", []byte("plain"))
	p, ok := s.Locate("20240512093000")
	if !ok || filepath.Base(p) != "20240512093000.md" {
		t.Fatalf("Locate = %q, %v", p, ok)
	}

	_ = s.Write("2024/05/20240512093000.md.gpg", []byte("enc"))
	p, _ = s.Locate("20240512093000")
	if filepath.Base(p) != "20240512093000.md.gpg" || !filepath.IsAbs(p) {
		t.Errorf("Locate = %q", p)
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	s := tempNotesDir(t)
	_ = s.Write("2024/01/n.md", []byte("x"))
	entries, _ := os.ReadDir(filepath.Join(s.Root(), "2024", "01"))
	if len(entries) != 1 {
		t.Errorf("expected 1 file, got %d", len(entries))
	}
}
