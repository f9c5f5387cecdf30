package index

import (
	"fmt"

	"github.com/starford/notegraph/internal/models"
)

const edgeColumns = `source_id, source_title, target_id, target_title, link_type, section, block_id, context, created_at`

func (db *DB) queryEdges(query string, args ...any) ([]models.LinkEdge, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LinkEdge
	for rows.Next() {
		var e models.LinkEdge
		if err := rows.Scan(&e.SourceID, &e.SourceTitle, &e.TargetID, &e.TargetTitle,
			&e.LinkType, &e.Section, &e.BlockID, &e.Context, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Backlinks returns the edges pointing at noteID, ordered by source title.
func (db *DB) Backlinks(noteID string) ([]models.LinkEdge, error) {
	out, err := db.queryEdges(`SELECT `+edgeColumns+` FROM links WHERE target_id = ?
		ORDER BY source_title COLLATE NOCASE, source_id`, noteID)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	return out, nil
}

// BacklinkCount returns the number of distinct notes linking to noteID.
func (db *DB) BacklinkCount(noteID string) (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT count(DISTINCT source_id) FROM links WHERE target_id = ?`, noteID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("index: backlink count: %w", err)
	}
	return n, nil
}

// OutgoingLinks returns the edges leaving noteID, ordered by target title.
func (db *DB) OutgoingLinks(noteID string) ([]models.LinkEdge, error) {
	out, err := db.queryEdges(`SELECT `+edgeColumns+` FROM links WHERE source_id = ?
		ORDER BY target_title COLLATE NOCASE, section, block_id`, noteID)
	if err != nil {
		return nil, fmt.Errorf("index: outgoing links: %w", err)
	}
	return out, nil
}

// BrokenLinks returns every edge whose target is not an indexed note.
func (db *DB) BrokenLinks() ([]models.LinkEdge, error) {
	out, err := db.queryEdges(`SELECT `+edgeColumns+` FROM links
		WHERE target_id NOT IN (SELECT note_id FROM notes)
		ORDER BY source_title COLLATE NOCASE, target_title COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("index: broken links: %w", err)
	}
	return out, nil
}

// GraphNode is one note in the link graph.
type GraphNode struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

// GraphLink is one resolved edge in the link graph.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Graph returns every note and every edge between two indexed notes.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`SELECT note_id, title, path FROM notes ORDER BY title COLLATE NOCASE`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer rows.Close()

	var nodes []GraphNode
	for rows.Next() {
		var n GraphNode
		if err := rows.Scan(&n.ID, &n.Title, &n.Path); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	lrows, err := db.conn.Query(`SELECT DISTINCT source_id, target_id, link_type FROM links
		WHERE target_id IN (SELECT note_id FROM notes)
		ORDER BY source_id, target_id, link_type`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer lrows.Close()

	var links []GraphLink
	for lrows.Next() {
		var l GraphLink
		if err := lrows.Scan(&l.Source, &l.Target, &l.Type); err != nil {
			return nil, nil, err
		}
		links = append(links, l)
	}
	return nodes, links, lrows.Err()
}
