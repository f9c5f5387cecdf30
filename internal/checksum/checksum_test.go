package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSum_Known(t *testing.T) {
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := Sum([]byte("hello")); got != want {
		t.Errorf("Sum = %s, want %s", got, want)
	}
}

func TestFile_MatchesSum(t *testing.T) {
	data := []byte("---\ntitle: Note\n---\nbody with [[Link]]\n")
	path := filepath.Join(t.TempDir(), "20240501120000.md")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := File(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != Sum(data) {
		t.Errorf("File = %s, want %s", got, Sum(data))
	}

	if _, err := File(filepath.Join(t.TempDir(), "missing.md")); !os.IsNotExist(err) {
		t.Errorf("missing file err = %v", err)
	}
}
