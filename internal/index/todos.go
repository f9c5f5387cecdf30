package index

import (
	"fmt"
	"strings"

	"github.com/starford/notegraph/internal/models"
)

// TodoFilter narrows Todos.
type TodoFilter struct {
	Completed *bool // nil: both
	NotePath  string
	Folder    string
}

func (f TodoFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.Completed != nil {
		conds = append(conds, `t.completed = ?`)
		args = append(args, *f.Completed)
	}
	if f.NotePath != "" {
		conds = append(conds, `t.note_path IN (?, ?)`)
		args = append(args, absPath(f.NotePath), f.NotePath)
	}
	if f.Folder != "" {
		conds = append(conds, `(' ' || n.tags || ' ') LIKE ? ESCAPE '\'`)
		args = append(args, tagPattern(models.FolderTagPrefix+f.Folder))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Todos returns task items, most recently modified notes first and in line
// order within a note.
func (db *DB) Todos(f TodoFilter) ([]models.TodoItem, error) {
	cond, args := f.where()
	rows, err := db.conn.Query(`
		SELECT t.note_path, t.line_number, t.task, t.completed, t.due_date
		FROM todos t
		JOIN notes n ON n.path = t.note_path`+cond+`
		ORDER BY n.modified DESC, t.note_path, t.line_number`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: todos: %w", err)
	}
	defer rows.Close()

	var out []models.TodoItem
	for rows.Next() {
		var t models.TodoItem
		if err := rows.Scan(&t.NotePath, &t.Line, &t.Task, &t.Completed, &t.DueDate); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TodoCounts returns the number of open and completed todos, optionally
// restricted to a folder.
func (db *DB) TodoCounts(folder string) (open, done int, err error) {
	cond, args := TodoFilter{Folder: folder}.where()
	err = db.conn.QueryRow(`
		SELECT coalesce(sum(CASE WHEN t.completed = 0 THEN 1 ELSE 0 END), 0),
		       coalesce(sum(t.completed), 0)
		FROM todos t
		JOIN notes n ON n.path = t.note_path`+cond, args...).Scan(&open, &done)
	if err != nil {
		return 0, 0, fmt.Errorf("index: todo counts: %w", err)
	}
	return open, done, nil
}
