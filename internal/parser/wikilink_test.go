package parser

import (
	"strings"
	"testing"
)

func TestExtractWikiLinks_Variants(t *testing.T) {
	tests := []struct {
		in   string
		want WikiLink
		typ  string
	}{
		{"[[Note]]", WikiLink{Target: "Note"}, "note"},
		{"[[Note#Timeline]]", WikiLink{Target: "Note", Section: "Timeline"}, "section"},
		{"[[Note^abc123]]", WikiLink{Target: "Note", BlockID: "abc123"}, "block"},
		{"[[Note|shown]]", WikiLink{Target: "Note", Alias: "shown"}, "note"},
		{"[[Note#Timeline^abc123|shown]]", WikiLink{Target: "Note", Section: "Timeline", BlockID: "abc123", Alias: "shown"}, "block"},
		{"[[20240512093000]]", WikiLink{Target: "20240512093000"}, "note"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			links := ExtractWikiLinks("x " + tt.in + " y")
			if len(links) != 1 {
				t.Fatalf("len = %d, want 1", len(links))
			}
			got := links[0]
			if got.Target != tt.want.Target || got.Section != tt.want.Section ||
				got.BlockID != tt.want.BlockID || got.Alias != tt.want.Alias {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if got.Type() != tt.typ {
				t.Errorf("type = %q, want %q", got.Type(), tt.typ)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
			if got.Position != 2 || got.End != 2+len(tt.in) {
				t.Errorf("span = [%d,%d)", got.Position, got.End)
			}
		})
	}
}

func TestExtractWikiLinks_TrimsAndOrders(t *testing.T) {
	links := ExtractWikiLinks("See [[ Team Members ]] and [[Budget 2025 # Costs | money ]].\n[[Team Members]] again")
	if len(links) != 3 {
		t.Fatalf("len = %d, want 3", len(links))
	}
	if links[0].Target != "Team Members" {
		t.Errorf("target = %q", links[0].Target)
	}
	if links[1].Target != "Budget 2025" || links[1].Section != "Costs" || links[1].Alias != "money" {
		t.Errorf("second = %+v", links[1])
	}
	if !(links[0].Position < links[1].Position && links[1].Position < links[2].Position) {
		t.Errorf("links out of document order: %+v", links)
	}
}

func TestExtractWikiLinks_RejectsMalformed(t *testing.T) {
	for _, in := range []string{"[[ ]]", "[[|alias]]", "[[Note^XYZ]]", "[Note]", "[[unclosed"} {
		if links := ExtractWikiLinks(in); len(links) != 0 {
			t.Errorf("%q: expected no links, got %+v", in, links)
		}
	}
}

func TestParseLinkText(t *testing.T) {
	l, ok := ParseLinkText("Project Alpha#Timeline")
	if !ok || l.Target != "Project Alpha" || l.Section != "Timeline" {
		t.Errorf("bare form = %+v, %v", l, ok)
	}
	l, ok = ParseLinkText("[[Project Alpha^decafe|x]]")
	if !ok || l.BlockID != "decafe" || l.Alias != "x" {
		t.Errorf("bracket form = %+v, %v", l, ok)
	}
	if _, ok := ParseLinkText("[[a]] and [[b]]"); ok {
		t.Error("two links should not parse as one")
	}
}

func TestExtractContext(t *testing.T) {
	content := "start " + strings.Repeat("a", 100) + " [[Link]] " + strings.Repeat("b", 100) + " end"
	pos := strings.Index(content, "[[Link]]")

	got := ExtractContext(content, pos, 20)
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis on both sides: %q", got)
	}
	if !strings.Contains(got, "[[Link]]") {
		t.Errorf("context misses link: %q", got)
	}
}

func TestExtractContext_NoTruncation(t *testing.T) {
	got := ExtractContext("see\n\n  [[B]]   now", 8, 50)
	if got != "see [[B]] now" {
		t.Errorf("got %q", got)
	}
}

func TestExtractContext_OnlyLeadingTruncation(t *testing.T) {
	content := strings.Repeat("x", 60) + " [[End]]"
	got := ExtractContext(content, strings.Index(content, "[[End]]"), 50)
	if !strings.HasPrefix(got, "...") || strings.HasSuffix(got, "...") {
		t.Errorf("got %q", got)
	}
}

func TestExtractContext_CountsCharacters(t *testing.T) {
	content := "ааааа [[Б]] ббббб"
	pos := strings.Index(content, "[[Б]]")

	got := ExtractContext(content, pos, 3)
	if got != "...аа [[Б..." {
		t.Errorf("got %q", got)
	}
	if got := ExtractContext(content, pos, 6); got != "ааааа [[Б]]..." {
		t.Errorf("radius 6: got %q", got)
	}
}
