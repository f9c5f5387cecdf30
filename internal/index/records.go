package index

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/notegraph/internal/models"
)

// Record is one row of the notes table.
type Record struct {
	Seq       int64
	Path      string
	NoteID    string
	Title     string
	Body      string
	Tags      []string
	Created   time.Time
	Modified  time.Time
	IsPlain   bool
	Checksum  string
	IndexedAt time.Time
}

// Ref returns the resolved-note view of the record.
func (r Record) Ref() models.NoteRef {
	return models.NoteRef{ID: r.NoteID, Title: r.Title, Path: r.Path, Modified: r.Modified}
}

// Meta returns the listing view of the record.
func (r Record) Meta() NoteMeta {
	return NoteMeta{
		ID:       r.NoteID,
		Title:    r.Title,
		Path:     r.Path,
		Tags:     r.Tags,
		Created:  r.Created,
		Modified: r.Modified,
		IsPlain:  r.IsPlain,
	}
}

// NoteMeta is the metadata returned by listings.
type NoteMeta struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Path     string    `json:"path"`
	Tags     []string  `json:"tags"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	IsPlain  bool      `json:"is_plain"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	Modified time.Time `json:"modified"`
	Snippet  string    `json:"snippet"`
}

// FolderCount is a folder name with the number of notes tagged into it.
type FolderCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

const recordColumns = `id, path, note_id, title, body, tags, created, modified, is_plain, checksum, indexed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (Record, error) {
	var r Record
	var tags string
	err := s.Scan(&r.Seq, &r.Path, &r.NoteID, &r.Title, &r.Body, &tags,
		&r.Created, &r.Modified, &r.IsPlain, &r.Checksum, &r.IndexedAt)
	if err != nil {
		return Record{}, err
	}
	r.Tags = splitTags(tags)
	return r, nil
}

// queryRecord returns the single record matched by where, or ok=false.
func queryRecord(q querier, where string, args ...any) (Record, bool, error) {
	row := q.QueryRow(`SELECT `+recordColumns+` FROM notes WHERE `+where+` ORDER BY id DESC LIMIT 1`, args...)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("index: get record: %w", err)
	}
	return r, true, nil
}

func joinTags(tags []string) string {
	return strings.Join(tags, " ")
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Fields(s)
}

// tagClause matches a whole tag inside the space-joined tags column.
const tagClause = `(' ' || tags || ' ') LIKE ? ESCAPE '\'`

func tagPattern(tag string) string {
	return "% " + escapeLike(tag) + " %"
}

func likePattern(s string) string {
	return "%" + escapeLike(s) + "%"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// absPath returns the absolute form of p, or p itself if it cannot be resolved.
func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

// GetRecord returns the record stored for path (absolute or as given).
func (db *DB) GetRecord(path string) (Record, bool, error) {
	return queryRecord(db.conn, `path IN (?, ?)`, absPath(path), path)
}

// GetRecordByID returns the most recently indexed record carrying note id.
func (db *DB) GetRecordByID(id string) (Record, bool, error) {
	return queryRecord(db.conn, `note_id = ?`, id)
}

// ListOptions filters and orders ListMetadata.
type ListOptions struct {
	Tag    string
	Folder string
	Plain  *bool // nil: both
	Inbox  bool  // only notes without a folder tag
	Sort   string
	Limit  int
	Offset int
}

var sortColumns = map[string]string{
	"":         "modified DESC",
	"modified": "modified DESC",
	"created":  "created DESC",
	"title":    "title COLLATE NOCASE ASC",
}

// ListMetadata returns matching note metadata and the total match count.
func (db *DB) ListMetadata(opts ListOptions) ([]NoteMeta, int, error) {
	order, ok := sortColumns[opts.Sort]
	if !ok {
		return nil, 0, fmt.Errorf("index: list: unknown sort %q", opts.Sort)
	}

	var where []string
	var args []any
	if opts.Tag != "" {
		where = append(where, tagClause)
		args = append(args, tagPattern(opts.Tag))
	}
	if opts.Folder != "" {
		where = append(where, tagClause)
		args = append(args, tagPattern(models.FolderTagPrefix+opts.Folder))
	}
	if opts.Plain != nil {
		where = append(where, `is_plain = ?`)
		args = append(args, *opts.Plain)
	}
	if opts.Inbox {
		where = append(where, `(' ' || tags || ' ') NOT LIKE ?`)
		args = append(args, "% "+models.FolderTagPrefix+"%")
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: list count: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(`SELECT `+recordColumns+` FROM notes`+cond+
		` ORDER BY `+order+`, id DESC LIMIT ? OFFSET ?`, append(args, limit, opts.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list: %w", err)
	}
	defer rows.Close()

	var out []NoteMeta
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r.Meta())
	}
	return out, total, rows.Err()
}

// SearchTag returns notes carrying tag, most recently modified first.
func (db *DB) SearchTag(tag string, limit int) ([]NoteMeta, error) {
	out, _, err := db.ListMetadata(ListOptions{Tag: tag, Limit: limit})
	return out, err
}

// SearchTitles matches titles case-insensitively, exactly or by substring.
func (db *DB) SearchTitles(title string, exact bool) ([]NoteMeta, error) {
	cond, arg := `title = ? COLLATE NOCASE`, title
	if !exact {
		cond, arg = `title LIKE ? ESCAPE '\'`, likePattern(title)
	}
	rows, err := db.conn.Query(`SELECT `+recordColumns+` FROM notes WHERE `+cond+` ORDER BY id DESC`, arg)
	if err != nil {
		return nil, fmt.Errorf("index: search titles: %w", err)
	}
	defer rows.Close()

	var out []NoteMeta
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r.Meta())
	}
	return out, rows.Err()
}

// Search runs a full-text query. Queries are matched as a literal phrase.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return search(db.conn, query, limit)
}

// Folders returns every folder name with its note count, sorted by name.
func (db *DB) Folders() ([]FolderCount, error) {
	rows, err := db.conn.Query(`SELECT tags FROM notes WHERE (' ' || tags) LIKE ?`, "% "+models.FolderTagPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("index: folders: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tags string
		if err := rows.Scan(&tags); err != nil {
			return nil, err
		}
		seen := make(map[string]struct{})
		for _, t := range splitTags(tags) {
			name, ok := strings.CutPrefix(t, models.FolderTagPrefix)
			if !ok || name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			counts[name]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]FolderCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, FolderCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// AllPaths returns every indexed note path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// RecordsContaining returns every record whose body contains text
// (case-sensitive), ordered by title.
func (db *DB) RecordsContaining(text string) ([]Record, error) {
	rows, err := db.conn.Query(`SELECT `+recordColumns+` FROM notes
		WHERE instr(body, ?) > 0
		ORDER BY title COLLATE NOCASE, id`, text)
	if err != nil {
		return nil, fmt.Errorf("index: records containing: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
