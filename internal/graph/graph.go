// Package graph answers questions about the link graph that need note
// bodies: unlinked mentions, link following and anchor validation.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
)

// BlockContextLines is how many lines around a followed block are returned.
const BlockContextLines = 2

// Index is the subset of the note index the graph layer reads.
type Index interface {
	GetRecord(path string) (index.Record, bool, error)
	GetRecordByID(id string) (index.Record, bool, error)
	RecordsContaining(text string) ([]index.Record, error)
	Resolve(target string, fuzzy bool) (models.NoteRef, bool, error)
	OutgoingLinks(noteID string) ([]models.LinkEdge, error)
}

// Loader reads a note that is on disk but not (yet) indexed.
type Loader interface {
	Load(ctx context.Context, path string) (*models.Note, error)
}

// Graph runs body-aware link queries.
type Graph struct {
	idx    Index
	loader Loader
	radius int
}

// New creates a Graph. loader may be nil; notes that are not indexed then
// cannot be followed.
func New(idx Index, loader Loader, contextRadius int) *Graph {
	if contextRadius <= 0 {
		contextRadius = parser.DefaultContextRadius
	}
	return &Graph{idx: idx, loader: loader, radius: contextRadius}
}

// Mention is one plain-text occurrence of a note title in another note.
type Mention struct {
	SourceID    string `json:"source_id"`
	SourceTitle string `json:"source_title"`
	Path        string `json:"path"`
	Position    int    `json:"position"`
	Context     string `json:"context"`
}

// UnlinkedMentions finds every literal occurrence of the note's title in the
// bodies of other notes, skipping occurrences that sit inside a wiki link
// to the note itself.
func (g *Graph) UnlinkedMentions(noteID string) ([]Mention, error) {
	rec, ok, err := g.idx.GetRecordByID(noteID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("graph: unlinked mentions %s: %w", noteID, apperr.ErrNotFound)
	}
	title := rec.Title
	if title == "" {
		return nil, nil
	}

	candidates, err := g.idx.RecordsContaining(title)
	if err != nil {
		return nil, err
	}

	var out []Mention
	for _, c := range candidates {
		if c.NoteID == rec.NoteID {
			continue
		}
		links := parser.ExtractWikiLinks(c.Body)
		for start := 0; ; {
			i := strings.Index(c.Body[start:], title)
			if i < 0 {
				break
			}
			pos := start + i
			end := pos + len(title)
			start = end

			if linkedTo(links, pos, end, title, rec.NoteID) {
				continue
			}
			out = append(out, Mention{
				SourceID:    c.NoteID,
				SourceTitle: c.Title,
				Path:        c.Path,
				Position:    pos,
				Context:     parser.ExtractContext(c.Body, pos, g.radius),
			})
		}
	}
	return out, nil
}

// linkedTo reports whether [start, end) lies inside a wiki link that points
// at the note by title or id.
func linkedTo(links []parser.WikiLink, start, end int, title, id string) bool {
	for _, l := range links {
		if !l.Contains(start, end) {
			continue
		}
		if strings.EqualFold(l.Target, title) || l.Target == id {
			return true
		}
	}
	return false
}

// Followed is the result of following a link.
type Followed struct {
	Link    parser.WikiLink `json:"link"`
	Target  models.NoteRef  `json:"target"`
	Content string          `json:"content"`
}

// Follow parses link text, resolves its target (fuzzily) and returns the
// addressed section, the block with surrounding lines, or the whole body.
func (g *Graph) Follow(ctx context.Context, text string) (Followed, error) {
	link, ok := parser.ParseLinkText(text)
	if !ok {
		return Followed{}, fmt.Errorf("graph: follow: malformed link %q: %w", text, apperr.ErrInvalidArgument)
	}
	ref, ok, err := g.idx.Resolve(link.Target, true)
	if err != nil {
		return Followed{}, err
	}
	if !ok {
		return Followed{}, fmt.Errorf("graph: follow: %q: %w", link.Target, apperr.ErrNotFound)
	}

	body, err := g.body(ctx, ref)
	if err != nil {
		return Followed{}, err
	}

	res := Followed{Link: link, Target: ref, Content: body}
	switch link.Type() {
	case models.LinkBlock:
		c := parser.BlockContext(body, link.BlockID, BlockContextLines)
		if c == "" {
			return Followed{}, fmt.Errorf("graph: follow: block ^%s in %q: %w", link.BlockID, ref.Title, apperr.ErrNotFound)
		}
		res.Content = c
	case models.LinkSection:
		c, found := parser.SectionContent(body, link.Section)
		if !found {
			return Followed{}, fmt.Errorf("graph: follow: section %q in %q: %w", link.Section, ref.Title, apperr.ErrNotFound)
		}
		res.Content = c
	}
	return res, nil
}

func (g *Graph) body(ctx context.Context, ref models.NoteRef) (string, error) {
	rec, ok, err := g.idx.GetRecord(ref.Path)
	if err != nil {
		return "", err
	}
	if ok {
		return rec.Body, nil
	}
	if g.loader == nil {
		return "", fmt.Errorf("graph: %s is not indexed: %w", ref.Path, apperr.ErrNotFound)
	}
	note, err := g.loader.Load(ctx, ref.Path)
	if err != nil {
		return "", err
	}
	return note.Content, nil
}

// AnchorProblem is a section or block link whose anchor is missing in the
// target note.
type AnchorProblem struct {
	Edge   models.LinkEdge `json:"edge"`
	Reason string          `json:"reason"`
}

// AnchorProblems checks every resolved section and block link leaving the
// note. Links to unknown notes are reported by the broken-link audit instead.
func (g *Graph) AnchorProblems(noteID string) ([]AnchorProblem, error) {
	edges, err := g.idx.OutgoingLinks(noteID)
	if err != nil {
		return nil, err
	}

	var out []AnchorProblem
	for _, e := range edges {
		if e.LinkType == models.LinkNote {
			continue
		}
		target, ok, err := g.idx.GetRecordByID(e.TargetID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		switch e.LinkType {
		case models.LinkSection:
			if !parser.ValidSection(target.Body, e.Section) {
				out = append(out, AnchorProblem{Edge: e, Reason: fmt.Sprintf("no heading %q", e.Section)})
			}
		case models.LinkBlock:
			if !parser.ValidBlock(target.Body, e.BlockID) {
				out = append(out, AnchorProblem{Edge: e, Reason: "no block ^" + e.BlockID})
			}
		}
	}
	return out, nil
}

// IsNotFound reports whether err means a note, section or block is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
