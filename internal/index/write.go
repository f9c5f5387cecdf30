package index

import (
	"fmt"
	"time"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
)

// IndexNote replaces everything the index knows about note: its record,
// full-text entry, outgoing edges and todos. Edges left dangling by other
// notes that name this note are pointed at it. All of it happens in one
// transaction.
func (db *DB) IndexNote(note *models.Note) error {
	if note == nil || note.FilePath == "" {
		return fmt.Errorf("index: index note: missing file path: %w", apperr.ErrInvalidArgument)
	}
	return db.writeTx(func(tx querier) error {
		abs := absPath(note.FilePath)
		if err := deleteRecord(tx, abs, note.FilePath); err != nil {
			return err
		}
		if err := insertRecord(tx, note, abs); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM links WHERE source_id = ?`, note.ID); err != nil {
			return fmt.Errorf("index: clear edges: %w", err)
		}
		if err := db.insertEdges(tx, note); err != nil {
			return err
		}
		return relinkDangling(tx, note)
	})
}

// RemoveNote drops a note and every edge touching it. Paths that were never
// indexed are ignored.
func (db *DB) RemoveNote(path string) error {
	rec, ok, err := db.GetRecord(path)
	if err != nil || !ok {
		return err
	}
	return db.writeTx(func(tx querier) error {
		if _, err := tx.Exec(`DELETE FROM links WHERE source_id = ? OR target_id = ?`, rec.NoteID, rec.NoteID); err != nil {
			return fmt.Errorf("index: delete edges: %w", err)
		}
		return deleteRecord(tx, rec.Path, path)
	})
}

// Rebuild discards the index and reloads it from notes. Records go in
// before any edge so resolution does not depend on slice order.
func (db *DB) Rebuild(notes []*models.Note) error {
	for _, n := range notes {
		if n == nil || n.FilePath == "" {
			return fmt.Errorf("index: rebuild: missing file path: %w", apperr.ErrInvalidArgument)
		}
	}
	return db.writeTx(func(tx querier) error {
		for _, stmt := range []string{`DELETE FROM links`, `DELETE FROM todos`, `DELETE FROM notes`} {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("index: rebuild clear: %w", err)
			}
		}
		if err := ftsClear(tx); err != nil {
			return err
		}
		for _, n := range notes {
			abs := absPath(n.FilePath)
			if err := deleteRecord(tx, abs, n.FilePath); err != nil {
				return err
			}
			if err := insertRecord(tx, n, abs); err != nil {
				return err
			}
		}
		for _, n := range notes {
			if err := db.insertEdges(tx, n); err != nil {
				return err
			}
		}
		return nil
	})
}

// deleteRecord removes the note row, its FTS entry and its todos for every
// given path form.
func deleteRecord(tx querier, paths ...string) error {
	for _, p := range paths {
		if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, p); err != nil {
			return fmt.Errorf("index: delete note: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM todos WHERE note_path = ?`, p); err != nil {
			return fmt.Errorf("index: delete todos: %w", err)
		}
	}
	return ftsDelete(tx, paths...)
}

func insertRecord(tx querier, n *models.Note, abs string) error {
	_, err := tx.Exec(`
		INSERT INTO notes (path, note_id, title, body, tags, created, modified, is_plain, checksum, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, abs, n.ID, n.Title, n.Content, joinTags(n.Tags),
		n.Created.UTC(), n.Modified.UTC(), n.IsPlain, n.Checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: insert note: %w", err)
	}
	if err := ftsUpsert(tx, abs, n.Title, n.Content, n.Tags); err != nil {
		return err
	}

	for _, t := range parser.ExtractTodos(n.Content, abs) {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO todos (note_path, line_number, task, completed, due_date)
			VALUES (?, ?, ?, ?, ?)
		`, t.NotePath, t.Line, t.Task, t.Completed, t.DueDate)
		if err != nil {
			return fmt.Errorf("index: insert todo: %w", err)
		}
	}
	return nil
}

// insertEdges resolves every wiki link in the note (exact matches only) and
// stores one edge per distinct target/anchor.
func (db *DB) insertEdges(tx querier, n *models.Note) error {
	links := parser.ExtractWikiLinks(n.Content)
	if len(links) == 0 {
		return nil
	}
	r := resolver{q: tx, locator: db.locator}
	now := time.Now().UTC()
	for _, l := range links {
		targetID, targetTitle := l.Target, l.Target
		ref, ok, err := r.resolve(l.Target, false)
		if err != nil {
			return err
		}
		if ok {
			targetID, targetTitle = ref.ID, ref.Title
		}
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO links
				(source_id, source_title, target_id, target_title, link_type, section, block_id, context, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, n.ID, n.Title, targetID, targetTitle, l.Type(), l.Section, l.BlockID,
			parser.ExtractContext(n.Content, l.Position, db.radius), now)
		if err != nil {
			return fmt.Errorf("index: insert edge: %w", err)
		}
	}
	return nil
}

// relinkDangling points edges whose raw target names this note (by id or
// case-insensitive title) at it, the same result a full rebuild would give.
// The two matches run as separate statements: OR-ed together, SQLite turns
// them into an exact lookup on idx_links_target and drops the NOCASE match.
func relinkDangling(tx querier, n *models.Note) error {
	for _, match := range []struct{ cond, arg string }{
		{"target_id = ?", n.ID},
		{"target_id = ? COLLATE NOCASE", n.Title},
	} {
		if match.arg == "" {
			continue
		}
		_, err := tx.Exec(`
			UPDATE OR REPLACE links
			SET target_id = ?, target_title = ?
			WHERE target_id NOT IN (SELECT note_id FROM notes)
			  AND `+match.cond, n.ID, n.Title, match.arg)
		if err != nil {
			return fmt.Errorf("index: relink edges: %w", err)
		}
	}
	return nil
}
