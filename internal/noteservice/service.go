// Package noteservice coordinates storage, the index and the graph layer for
// the CLI, HTTP API and MCP server.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/storage"
	"github.com/starford/notegraph/internal/tagging"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Path      string            `json:"path"`
	Content   string            `json:"content"`
	Tags      []string          `json:"tags"`
	Created   time.Time         `json:"created"`
	Modified  time.Time         `json:"modified"`
	IsPlain   bool              `json:"is_plain"`
	Headings  []parser.Heading  `json:"headings"`
	Backlinks []models.LinkEdge `json:"backlinks"`
	Outgoing  []models.LinkEdge `json:"outgoing"`
}

// Service coordinates storage and index operations.
type Service struct {
	notes  *storage.Notes
	db     *index.DB
	graph  *graph.Graph
	tagger tagging.Tagger
	logger *slog.Logger
}

// NewService creates a new note service. notes may be nil for read-only use
// against an index without a notes directory.
func NewService(notes *storage.Notes, db *index.DB, tagger tagging.Tagger, contextRadius int, logger *slog.Logger) *Service {
	var loader graph.Loader
	if notes != nil {
		loader = notes
	}
	return &Service{
		notes:  notes,
		db:     db,
		graph:  graph.New(db, loader, contextRadius),
		tagger: tagger,
		logger: logger,
	}
}

// Index returns the underlying index handle.
func (s *Service) Index() *index.DB { return s.db }

// Lookup finds an indexed note by file path, id or exact title.
func (s *Service) Lookup(_ context.Context, ref string) (index.Record, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return index.Record{}, fmt.Errorf("noteservice: empty note reference: %w", apperr.ErrInvalidArgument)
	}
	if models.IsNoteFile(ref) {
		rec, ok, err := s.db.GetRecord(ref)
		if err != nil {
			return index.Record{}, err
		}
		if ok {
			return rec, nil
		}
	}

	noteRef, ok, err := s.db.Resolve(ref, false)
	if err != nil {
		return index.Record{}, err
	}
	if ok {
		rec, found, err := s.db.GetRecord(noteRef.Path)
		if err != nil {
			return index.Record{}, err
		}
		if found {
			return rec, nil
		}
	}
	return index.Record{}, fmt.Errorf("noteservice: note %q: %w", ref, apperr.ErrNotFound)
}

// GetNote returns a note with its headings and links in both directions.
func (s *Service) GetNote(ctx context.Context, ref string) (*NoteDetail, error) {
	rec, err := s.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	back, err := s.db.Backlinks(rec.NoteID)
	if err != nil {
		return nil, err
	}
	out, err := s.db.OutgoingLinks(rec.NoteID)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		ID:        rec.NoteID,
		Title:     rec.Title,
		Path:      rec.Path,
		Content:   rec.Body,
		Tags:      nonNilSlice(rec.Tags),
		Created:   rec.Created,
		Modified:  rec.Modified,
		IsPlain:   rec.IsPlain,
		Headings:  nonNilSlice(parser.ExtractHeadings(rec.Body)),
		Backlinks: nonNilSlice(back),
		Outgoing:  nonNilSlice(out),
	}, nil
}

// ListNotes returns note metadata matching opts and the total match count.
func (s *Service) ListNotes(_ context.Context, opts index.ListOptions) ([]index.NoteMeta, int, error) {
	items, total, err := s.db.ListMetadata(opts)
	return nonNilSlice(items), total, err
}

// Folders returns folder names with note counts.
func (s *Service) Folders(_ context.Context) ([]index.FolderCount, error) {
	return s.db.Folders()
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	res, err := s.db.Search(query, limit)
	return nonNilSlice(res), err
}

// Graph returns all nodes and links for graph visualization.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	nodes, links, err := s.db.Graph()
	return nonNilSlice(nodes), nonNilSlice(links), err
}

// Backlinks returns the edges pointing at the referenced note.
func (s *Service) Backlinks(ctx context.Context, ref string) ([]models.LinkEdge, error) {
	rec, err := s.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	out, err := s.db.Backlinks(rec.NoteID)
	return nonNilSlice(out), err
}

// OutgoingLinks returns the edges leaving the referenced note.
func (s *Service) OutgoingLinks(ctx context.Context, ref string) ([]models.LinkEdge, error) {
	rec, err := s.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	out, err := s.db.OutgoingLinks(rec.NoteID)
	return nonNilSlice(out), err
}

// BrokenLinks returns every edge whose target is not indexed.
func (s *Service) BrokenLinks(_ context.Context) ([]models.LinkEdge, error) {
	out, err := s.db.BrokenLinks()
	return nonNilSlice(out), err
}

// UnlinkedMentions returns plain-text mentions of the referenced note.
func (s *Service) UnlinkedMentions(ctx context.Context, ref string) ([]graph.Mention, error) {
	rec, err := s.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	out, err := s.graph.UnlinkedMentions(rec.NoteID)
	return nonNilSlice(out), err
}

// AnchorProblems returns section/block links of the note whose anchors are missing.
func (s *Service) AnchorProblems(ctx context.Context, ref string) ([]graph.AnchorProblem, error) {
	rec, err := s.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	out, err := s.graph.AnchorProblems(rec.NoteID)
	return nonNilSlice(out), err
}

// Follow resolves link text and returns the addressed content.
func (s *Service) Follow(ctx context.Context, link string) (graph.Followed, error) {
	return s.graph.Follow(ctx, link)
}

// Resolve maps a link target to a note.
func (s *Service) Resolve(_ context.Context, target string, fuzzy bool) (models.NoteRef, bool, error) {
	return s.db.Resolve(target, fuzzy)
}

// TableOfContents renders the heading outline of the referenced note.
func (s *Service) TableOfContents(ctx context.Context, ref string) (string, error) {
	rec, err := s.Lookup(ctx, ref)
	if err != nil {
		return "", err
	}
	return parser.TableOfContents(rec.Body), nil
}

// Section returns one section of the referenced note.
func (s *Service) Section(ctx context.Context, ref, section string) (string, error) {
	rec, err := s.Lookup(ctx, ref)
	if err != nil {
		return "", err
	}
	content, ok := parser.SectionContent(rec.Body, section)
	if !ok {
		return "", fmt.Errorf("noteservice: section %q in %q: %w", section, rec.Title, apperr.ErrNotFound)
	}
	return content, nil
}

// Blocks lists the block anchors of the referenced note.
func (s *Service) Blocks(ctx context.Context, ref string) ([]parser.BlockRef, error) {
	rec, err := s.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(parser.ExtractBlockRefs(rec.Body)), nil
}

// AddBlockID anchors a line of the referenced note, saving and re-indexing
// it when the line had no anchor yet. The line's id is returned either way.
func (s *Service) AddBlockID(ctx context.Context, ref string, line int) (string, error) {
	if s.notes == nil {
		return "", fmt.Errorf("noteservice: add block id: no notes directory: %w", apperr.ErrInvalidArgument)
	}
	rec, err := s.Lookup(ctx, ref)
	if err != nil {
		return "", err
	}
	note, err := s.notes.Load(ctx, rec.Path)
	if err != nil {
		return "", err
	}
	updated, id, err := parser.AddBlockID(note.Content, line)
	if err != nil {
		return "", err
	}
	if updated == note.Content {
		return id, nil
	}

	note.Content = updated
	note.Modified = time.Now()
	if err := s.notes.Save(ctx, note); err != nil {
		return "", err
	}
	if err := s.db.IndexNote(note); err != nil {
		return "", err
	}
	s.logger.Info("block anchor added", slog.String("note", note.ID), slog.Int("line", line), slog.String("block", id))
	return id, nil
}

// Todos returns task items matching f.
func (s *Service) Todos(_ context.Context, f index.TodoFilter) ([]models.TodoItem, error) {
	out, err := s.db.Todos(f)
	return nonNilSlice(out), err
}

// TodoCounts returns open and completed task counts.
func (s *Service) TodoCounts(_ context.Context, folder string) (open, done int, err error) {
	return s.db.TodoCounts(folder)
}

// Reindex brings the index up to date with the notes directory.
func (s *Service) Reindex(ctx context.Context) (index.SyncStats, error) {
	if s.notes == nil {
		return index.SyncStats{}, fmt.Errorf("noteservice: reindex: no notes directory: %w", apperr.ErrInvalidArgument)
	}
	return index.Sync(ctx, s.db, s.notes, s.logger)
}

// Rebuild discards the index and rebuilds it from every note on disk.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	if s.notes == nil {
		return 0, fmt.Errorf("noteservice: rebuild: no notes directory: %w", apperr.ErrInvalidArgument)
	}
	return index.RebuildFrom(ctx, s.db, s.notes, s.logger)
}

// Auto-tagging only touches recently edited notes that are still sparsely
// tagged.
const (
	autoTagWindow   = time.Hour
	autoTagScan     = 10
	autoTagMaxExist = 3
)

// AutoTagRecent adds keyword tags to notes modified within the last hour
// that carry fewer than three tags. It returns how many notes changed.
func (s *Service) AutoTagRecent(ctx context.Context) (int, error) {
	if s.notes == nil {
		return 0, nil
	}
	recent, _, err := s.db.ListMetadata(index.ListOptions{Sort: "modified", Limit: autoTagScan})
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-autoTagWindow)
	changed := 0
	for _, m := range recent {
		if m.Modified.Before(cutoff) || len(m.Tags) >= autoTagMaxExist {
			continue
		}
		note, err := s.notes.Load(ctx, m.Path)
		if err != nil {
			s.logger.Warn("auto-tag: load failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if !s.tagger.Apply(note) {
			continue
		}
		if err := s.notes.Save(ctx, note); err != nil {
			return changed, err
		}
		if err := s.db.IndexNote(note); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
