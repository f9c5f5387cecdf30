package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starford/notegraph/internal/models"
)

// DefaultContextRadius is the number of characters kept on each side of a
// link when building a context snippet.
const DefaultContextRadius = 50

// wikiLinkRe matches [[target#section^blockid|alias]]; every part but the
// target is optional and the parts appear in that order.
var wikiLinkRe = regexp.MustCompile(
	`\[\[` +
		`([^\]#^|]+)` +
		`(?:#([^\]^|]+))?` +
		`(?:\^([a-f0-9]+))?` +
		`(?:\|([^\]]+))?` +
		`\]\]`)

// WikiLink is one inline reference found in note content.
type WikiLink struct {
	Target   string `json:"target"`
	Section  string `json:"section,omitempty"`
	BlockID  string `json:"block_id,omitempty"`
	Alias    string `json:"alias,omitempty"`
	Position int    `json:"position"`
	End      int    `json:"end"`
}

// Type returns the link type: block, section or note.
func (l WikiLink) Type() string {
	switch {
	case l.BlockID != "":
		return models.LinkBlock
	case l.Section != "":
		return models.LinkSection
	default:
		return models.LinkNote
	}
}

// String renders the link back to bracket syntax.
func (l WikiLink) String() string {
	var b strings.Builder
	b.WriteString("[[")
	b.WriteString(l.Target)
	if l.Section != "" {
		b.WriteString("#")
		b.WriteString(l.Section)
	}
	if l.BlockID != "" {
		b.WriteString("^")
		b.WriteString(l.BlockID)
	}
	if l.Alias != "" {
		b.WriteString("|")
		b.WriteString(l.Alias)
	}
	b.WriteString("]]")
	return b.String()
}

// Contains reports whether the byte range [start, end) lies inside the link.
func (l WikiLink) Contains(start, end int) bool {
	return start >= l.Position && end <= l.End
}

// ExtractWikiLinks returns every wiki link in content in document order.
func ExtractWikiLinks(content string) []WikiLink {
	matches := wikiLinkRe.FindAllStringSubmatchIndex(content, -1)
	out := make([]WikiLink, 0, len(matches))
	for _, m := range matches {
		link, ok := linkFromMatch(content, m)
		if !ok {
			continue
		}
		out = append(out, link)
	}
	return out
}

// ParseLinkText parses a single link. Both "[[Target#sec|alias]]" and the bare
// "Target#sec|alias" forms are accepted.
func ParseLinkText(s string) (WikiLink, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[[") {
		s = "[[" + s + "]]"
	}
	m := wikiLinkRe.FindStringSubmatchIndex(s)
	if m == nil || m[0] != 0 || m[1] != len(s) {
		return WikiLink{}, false
	}
	return linkFromMatch(s, m)
}

func linkFromMatch(content string, m []int) (WikiLink, bool) {
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return content[m[2*i]:m[2*i+1]]
	}

	target := strings.TrimSpace(group(1))
	if target == "" {
		return WikiLink{}, false
	}
	return WikiLink{
		Target:   target,
		Section:  strings.TrimSpace(group(2)),
		BlockID:  group(3),
		Alias:    strings.TrimSpace(group(4)),
		Position: m[0],
		End:      m[1],
	}, true
}

// ExtractContext returns up to radius characters on each side of the byte
// offset position, with whitespace collapsed and "..." added where the window
// was cut.
func ExtractContext(content string, position, radius int) string {
	position = runeStart(content, min(max(0, position), len(content)))

	start := position
	for n := 0; n < radius && start > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(content[:start])
		start -= size
	}
	end := position
	for n := 0; n < radius && end < len(content); n++ {
		_, size := utf8.DecodeRuneInString(content[end:])
		end += size
	}

	snippet := strings.Join(strings.Fields(content[start:end]), " ")
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}

// runeStart moves i back to the first byte of the UTF-8 sequence it points into.
func runeStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
