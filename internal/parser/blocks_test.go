package parser

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/starford/notegraph/internal/apperr"
)

func TestExtractBlockRefs(t *testing.T) {
	content := "first line\nImportant decision made here. ^dec1a1  \nnot ^a1 anchor here\nlast ^abc123"
	refs := ExtractBlockRefs(content)
	if len(refs) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(refs), refs)
	}
	if refs[0].ID != "dec1a1" || refs[0].Line != 1 || refs[0].Content != "Important decision made here." {
		t.Errorf("first = %+v", refs[0])
	}
	if refs[1].ID != "abc123" || refs[1].Line != 3 || refs[1].Content != "last" {
		t.Errorf("second = %+v", refs[1])
	}
}

func TestExtractBlockRefs_HexOnly(t *testing.T) {
	refs := ExtractBlockRefs("a ^zzz\nb ^beef\nc ^BEEF")
	if len(refs) != 1 || refs[0].ID != "beef" || refs[0].Line != 1 {
		t.Errorf("got %+v", refs)
	}
}

func TestGenerateBlockID_Unique(t *testing.T) {
	hexRe := regexp.MustCompile(`^[a-f0-9]{6}$`)
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id, err := GenerateBlockID()
		if err != nil {
			t.Fatal(err)
		}
		if !hexRe.MatchString(id) {
			t.Fatalf("malformed id %q", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != 100 {
		t.Errorf("expected 100 distinct ids, got %d", len(seen))
	}
}

func TestAddBlockID_Idempotent(t *testing.T) {
	content := "one\ntwo\nthree"
	updated, id, err := AddBlockID(content, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(updated, "two ^"+id) {
		t.Fatalf("anchor not appended: %q", updated)
	}

	again, id2, err := AddBlockID(updated, 1)
	if err != nil {
		t.Fatal(err)
	}
	if id2 != id || again != updated {
		t.Errorf("second call changed things: id %q -> %q, content %q", id, id2, again)
	}

	if line, ok := FindBlock(updated, id); !ok || line != 1 {
		t.Errorf("FindBlock = %d, %v", line, ok)
	}
}

func TestAddBlockID_OutOfRange(t *testing.T) {
	for _, line := range []int{-1, 3, 10} {
		_, _, err := AddBlockID("a\nb\nc", line)
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("line %d: err = %v, want ErrInvalidArgument", line, err)
		}
	}
}

func TestBlockContext(t *testing.T) {
	content := "l0\nl1\nl2\nl3 ^cafe01\nl4\nl5\nl6"
	if got := BlockContext(content, "cafe01", 2); got != "l1\nl2\nl3 ^cafe01\nl4\nl5" {
		t.Errorf("centered = %q", got)
	}
	if got := BlockContext("top ^aa\nnext", "aa", 2); got != "top ^aa\nnext" {
		t.Errorf("clamped = %q", got)
	}
	if got := BlockContext(content, "ffffff", 2); got != "" {
		t.Errorf("missing = %q", got)
	}
}

func TestValidBlock(t *testing.T) {
	if !ValidBlock("x ^abc", "abc") || ValidBlock("x ^abc", "abd") {
		t.Error("ValidBlock mismatch")
	}
}
