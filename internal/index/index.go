package index

import "github.com/starford/notegraph/internal/models"

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type NoteIndex interface {
	IndexNote(note *models.Note) error
	RemoveNote(path string) error
	Rebuild(notes []*models.Note) error

	GetRecord(path string) (Record, bool, error)
	GetRecordByID(id string) (Record, bool, error)
	RecordsContaining(text string) ([]Record, error)
	ListMetadata(opts ListOptions) ([]NoteMeta, int, error)
	Folders() ([]FolderCount, error)
	Search(query string, limit int) ([]SearchResult, error)
	SearchTitles(title string, exact bool) ([]NoteMeta, error)
	SearchTag(tag string, limit int) ([]NoteMeta, error)
	Resolve(target string, fuzzy bool) (models.NoteRef, bool, error)

	Backlinks(noteID string) ([]models.LinkEdge, error)
	BacklinkCount(noteID string) (int, error)
	OutgoingLinks(noteID string) ([]models.LinkEdge, error)
	BrokenLinks() ([]models.LinkEdge, error)
	Graph() ([]GraphNode, []GraphLink, error)

	Todos(f TodoFilter) ([]models.TodoItem, error)
	TodoCounts(folder string) (open, done int, err error)

	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
