//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/notegraph/internal/parser"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE on the notes table.
	return nil
}

func ftsUpsert(_ querier, _, _, _ string, _ []string) error { return nil }

func ftsDelete(_ querier, _ ...string) error { return nil }

func ftsClear(_ querier) error { return nil }

const snippetRadius = 60

// search performs a LIKE-based search. Title hits rank first, then the most
// recently modified notes.
func search(q querier, query string, limit int) ([]SearchResult, error) {
	like := likePattern(query)
	rows, err := q.Query(`
		SELECT path, title, modified, body
		FROM notes
		WHERE title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\'
		ORDER BY (title LIKE ? ESCAPE '\') DESC, modified DESC, id DESC
		LIMIT ?
	`, like, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var body string
		if err := rows.Scan(&r.Path, &r.Title, &r.Modified, &body); err != nil {
			return nil, err
		}
		r.Snippet = likeSnippet(body, query)
		out = append(out, r)
	}
	return out, rows.Err()
}

func likeSnippet(body, query string) string {
	pos := strings.Index(strings.ToLower(body), strings.ToLower(query))
	if pos < 0 {
		return parser.ExtractContext(body, 0, snippetRadius)
	}
	return parser.ExtractContext(body, pos, snippetRadius)
}
