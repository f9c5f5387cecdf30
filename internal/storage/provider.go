// Package storage owns the notes directory: the YYYY/MM/<id>.md[.gpg] file
// layout, frontmatter, and decryption of encrypted notes.
package storage

import "time"

// FileMeta describes one note file on disk.
type FileMeta struct {
	Path     string    `json:"path"` // relative to the notes root
	Checksum string    `json:"checksum"`
	ModTime  time.Time `json:"mod_time"`
}

// Provider is the interface for notes directory file operations.
type Provider interface {
	// Root returns the absolute notes root.
	Root() string
	// Abs maps a root-relative path to an absolute one inside the root.
	Abs(rel string) (string, error)
	// Rel maps an absolute or relative path to a clean root-relative one.
	Rel(path string) (string, error)
	// List returns metadata for every note file under dir (relative to root).
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to root).
	Move(oldPath, newPath string) error
	// Locate finds the file for a note id, preferring the encrypted form.
	Locate(id string) (string, bool)
}
