package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Heading is a Markdown ATX heading.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Line  int    `json:"line"`
	Slug  string `json:"slug"`
}

func (h Heading) String() string {
	return strings.Repeat("#", h.Level) + " " + h.Text
}

// Slugify turns heading text into a lowercase, hyphen-joined anchor.
func Slugify(text string) string {
	text = strings.TrimSpace(strings.TrimLeft(text, "#"))

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r == '-' || unicode.IsSpace(r):
			pendingSep = true
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExtractHeadings returns the headings of content in document order.
func ExtractHeadings(content string) []Heading {
	var out []Heading
	for i, line := range strings.Split(content, "\n") {
		m := headingRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[2])
		out = append(out, Heading{
			Level: len(m[1]),
			Text:  text,
			Line:  i,
			Slug:  Slugify(text),
		})
	}
	return out
}

// FindHeading returns the line of the first heading whose slug matches the
// slugified section argument.
func FindHeading(content, section string) (int, bool) {
	h, ok := findHeading(ExtractHeadings(content), section)
	if !ok {
		return 0, false
	}
	return h.Line, true
}

func findHeading(headings []Heading, section string) (Heading, bool) {
	slug := Slugify(section)
	for _, h := range headings {
		if h.Slug == slug {
			return h, true
		}
	}
	return Heading{}, false
}

// SectionContent returns the lines from the matched heading up to, but not
// including, the next heading of the same or a higher level.
func SectionContent(content, section string) (string, bool) {
	headings := ExtractHeadings(content)
	target, ok := findHeading(headings, section)
	if !ok {
		return "", false
	}

	lines := strings.Split(content, "\n")
	end := len(lines)
	for _, h := range headings {
		if h.Line > target.Line && h.Level <= target.Level {
			end = h.Line
			break
		}
	}
	return strings.Join(lines[target.Line:end], "\n"), true
}

// TableOfContents renders one indented line per heading. The item number is
// the heading level itself, so siblings share a number.
func TableOfContents(content string) string {
	headings := ExtractHeadings(content)
	if len(headings) == 0 {
		return "No headings found."
	}
	lines := make([]string, 0, len(headings))
	for _, h := range headings {
		lines = append(lines, fmt.Sprintf("%s%d. %s", strings.Repeat("  ", h.Level-1), h.Level, h.Text))
	}
	return strings.Join(lines, "\n")
}

// ValidSection reports whether content has a heading matching section.
func ValidSection(content, section string) bool {
	_, ok := FindHeading(content, section)
	return ok
}
