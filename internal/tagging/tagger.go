// Package tagging suggests tags for a note from its most frequent keywords.
package tagging

import (
	"sort"
	"strings"
	"unicode"

	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
)

// DefaultMaxTags is used when Tagger.MaxTags is not positive.
const DefaultMaxTags = 5

const minWordLen = 4

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		about above after again against also among because been before being below between both
		could does doing down during each even every from further have having here into itself
		just last many more most much must need next only other over same should some such than
		that their them then there these they this those through under until very want were what
		when where which while will with within without would your yours todo done note notes`) {
		stopWords[w] = struct{}{}
	}
}

// Tagger extracts keyword tags.
type Tagger struct {
	MaxTags int
}

// Suggest returns up to MaxTags lowercase keywords from the title and body,
// most frequent first (title words count double). Wiki-link syntax, block
// anchors and words shorter than four letters are ignored.
func (t Tagger) Suggest(title, content string) []string {
	max := t.MaxTags
	if max <= 0 {
		max = DefaultMaxTags
	}

	counts := make(map[string]int)
	first := make(map[string]int)
	order := 0
	add := func(text string, weight int) {
		for _, w := range words(text) {
			if _, ok := first[w]; !ok {
				first[w] = order
				order++
			}
			counts[w] += weight
		}
	}
	add(title, 2)
	add(stripLinks(content), 1)

	keys := make([]string, 0, len(counts))
	for w := range counts {
		keys = append(keys, w)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return first[keys[i]] < first[keys[j]]
	})
	if len(keys) > max {
		keys = keys[:max]
	}
	return keys
}

// Apply merges suggested tags into note.Tags, keeping existing tags first.
// It reports whether anything was added.
func (t Tagger) Apply(note *models.Note) bool {
	have := make(map[string]struct{}, len(note.Tags))
	for _, tag := range note.Tags {
		have[strings.ToLower(tag)] = struct{}{}
	}
	added := false
	for _, tag := range t.Suggest(note.Title, note.Content) {
		if _, ok := have[tag]; ok {
			continue
		}
		note.Tags = append(note.Tags, tag)
		added = true
	}
	return added
}

func words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if len([]rune(f)) < minWordLen {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// stripLinks replaces every wiki link with its display text.
func stripLinks(content string) string {
	links := parser.ExtractWikiLinks(content)
	if len(links) == 0 {
		return content
	}
	var b strings.Builder
	prev := 0
	for _, l := range links {
		b.WriteString(content[prev:l.Position])
		if l.Alias != "" {
			b.WriteString(l.Alias)
		} else {
			b.WriteString(l.Target)
		}
		prev = l.End
	}
	b.WriteString(content[prev:])
	return b.String()
}
