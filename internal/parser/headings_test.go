package parser

import "testing"

const planDoc = `# Project Alpha

## Overview
This is a major project.

## Timeline
- Phase 1
### Details
More detail.

## Resources
See [[Team Members]].
Final line.`

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"API Design (v2.0) - Final": "api-design-v20-final",
		"## Timeline":               "timeline",
		"  Hello   World  ":         "hello-world",
		"snake_case stays":          "snake_case-stays",
		"--dashes--":                "dashes",
		"Café déjà vu":              "café-déjà-vu",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractHeadings(t *testing.T) {
	hs := ExtractHeadings(planDoc)
	if len(hs) != 5 {
		t.Fatalf("len = %d, want 5", len(hs))
	}
	if hs[0].Level != 1 || hs[0].Text != "Project Alpha" || hs[0].Line != 0 {
		t.Errorf("first = %+v", hs[0])
	}
	if hs[3].Level != 3 || hs[3].Slug != "details" || hs[3].Line != 7 {
		t.Errorf("fourth = %+v", hs[3])
	}
}

func TestExtractHeadings_RequiresSpace(t *testing.T) {
	if hs := ExtractHeadings("#tag\n####### seven\n  ## indented"); len(hs) != 1 || hs[0].Text != "indented" {
		t.Errorf("got %+v", hs)
	}
}

func TestFindHeading(t *testing.T) {
	if line, ok := FindHeading(planDoc, "Timeline"); !ok || line != 5 {
		t.Errorf("FindHeading = %d, %v", line, ok)
	}
	if _, ok := FindHeading(planDoc, "missing"); ok {
		t.Error("expected not found")
	}
	dup := "# Same\none\n# Same\ntwo"
	if line, _ := FindHeading(dup, "same"); line != 0 {
		t.Errorf("duplicate slug should resolve to first, got %d", line)
	}
}

func TestSectionContent_Middle(t *testing.T) {
	got, ok := SectionContent(planDoc, "timeline")
	if !ok {
		t.Fatal("section not found")
	}
	want := "## Timeline\n- Phase 1\n### Details\nMore detail.\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSectionContent_LastRunsToEOF(t *testing.T) {
	got, ok := SectionContent(planDoc, "Resources")
	if !ok {
		t.Fatal("section not found")
	}
	if got != "## Resources\nSee [[Team Members]].\nFinal line." {
		t.Errorf("got %q", got)
	}
}

func TestSectionContent_Missing(t *testing.T) {
	if _, ok := SectionContent(planDoc, "nope"); ok {
		t.Error("expected not found")
	}
}

func TestTableOfContents(t *testing.T) {
	want := "1. Project Alpha\n  2. Overview\n  2. Timeline\n    3. Details\n  2. Resources"
	if got := TableOfContents(planDoc); got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
	if got := TableOfContents("no headings"); got != "No headings found." {
		t.Errorf("empty toc = %q", got)
	}
}

func TestValidSection(t *testing.T) {
	if !ValidSection(planDoc, "Overview") || ValidSection(planDoc, "Budget") {
		t.Error("ValidSection mismatch")
	}
}
