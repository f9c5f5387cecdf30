// Package index provides the SQLite-backed note index: records, optional FTS5
// full-text search, the wiki-link graph and extracted todos.
package index

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/notegraph/internal/parser"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	path       TEXT NOT NULL UNIQUE,
	note_id    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '',
	created    DATETIME NOT NULL,
	modified   DATETIME NOT NULL,
	is_plain   INTEGER NOT NULL DEFAULT 1,
	checksum   TEXT NOT NULL DEFAULT '',
	indexed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notes_note_id ON notes(note_id);
CREATE INDEX IF NOT EXISTS idx_notes_title ON notes(title COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS links (
	source_id    TEXT NOT NULL,
	source_title TEXT NOT NULL DEFAULT '',
	target_id    TEXT NOT NULL,
	target_title TEXT NOT NULL DEFAULT '',
	link_type    TEXT NOT NULL,
	section      TEXT NOT NULL DEFAULT '',
	block_id     TEXT NOT NULL DEFAULT '',
	context      TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (source_id, target_id, link_type, section, block_id)
);

CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_id);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id);

CREATE TABLE IF NOT EXISTS todos (
	note_path   TEXT NOT NULL,
	line_number INTEGER NOT NULL,
	task        TEXT NOT NULL,
	completed   INTEGER NOT NULL DEFAULT 0,
	due_date    TEXT NOT NULL DEFAULT '',
	UNIQUE(note_path, line_number)
);
`

const defaultLockTimeout = 5 * time.Second

// Locator finds the file of a note by id without consulting the index.
type Locator interface {
	Locate(id string) (string, bool)
}

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn    *sql.DB
	locator Locator
	logger  *slog.Logger
	radius  int

	mu          sync.Mutex // serializes writers in this process
	lock        *os.File   // flock target shared with other processes
	lockTimeout time.Duration
}

// Option configures a DB.
type Option func(*DB)

// WithLocator sets the id locator used by link resolution.
func WithLocator(l Locator) Option {
	return func(db *DB) { db.locator = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// WithContextRadius sets how many bytes around a link are kept as its context.
func WithContextRadius(n int) Option {
	return func(db *DB) {
		if n > 0 {
			db.radius = n
		}
	}
}

// WithLockTimeout bounds how long a writer waits for another process.
func WithLockTimeout(d time.Duration) Option {
	return func(db *DB) {
		if d > 0 {
			db.lockTimeout = d
		}
	}
}

// MemoryDSN opens a private in-memory index that lives until Close.
const MemoryDSN = ":memory:"

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, opts ...Option) (*DB, error) {
	db := &DB{
		logger:      slog.Default(),
		radius:      parser.DefaultContextRadius,
		lockTimeout: defaultLockTimeout,
	}
	for _, o := range opts {
		o(db)
	}

	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if dsn == MemoryDSN {
		// Every pooled connection would get its own empty database.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	db.conn = conn

	if dsn != MemoryDSN {
		f, err := os.OpenFile(dsn+".lock", os.O_RDWR|os.O_CREATE, 0o600)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("index: open lock file: %w", err)
		}
		db.lock = f
	}
	return db, nil
}

// Close closes the lock file and the underlying database connection.
func (db *DB) Close() error {
	if db.lock != nil {
		_ = db.lock.Close()
	}
	return db.conn.Close()
}

// writeTx runs fn inside a write transaction while holding the process
// mutex and the cross-process file lock.
func (db *DB) writeTx(fn func(tx querier) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.lock != nil {
		if err := lockFile(db.lock, db.lockTimeout); err != nil {
			return fmt.Errorf("index: acquire lock: %w", err)
		}
		defer unlockFile(db.lock) //nolint:errcheck
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside a write transaction.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}
