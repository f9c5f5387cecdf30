// Package models defines the domain types for notegraph.
package models

import (
	"path/filepath"
	"strings"
	"time"
)

// File suffixes used by the notes directory.
const (
	PlainExt     = ".md"
	EncryptedExt = ".md.gpg"
)

// FolderTagPrefix marks tags that place a note in a folder.
const FolderTagPrefix = "folder:"

// Note is a decrypted note as handed to the index by the storage layer.
type Note struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Tags     []string  `json:"tags"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	FilePath string    `json:"file_path"`
	IsPlain  bool      `json:"is_plain"`
	Checksum string    `json:"checksum,omitempty"`
}

// Folders returns the folder names carried by the note's tags.
func (n *Note) Folders() []string {
	var out []string
	for _, t := range n.Tags {
		if name, ok := strings.CutPrefix(t, FolderTagPrefix); ok && name != "" {
			out = append(out, name)
		}
	}
	return out
}

// NoteRef identifies a note resolved from the index.
type NoteRef struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Path     string    `json:"path"`
	Modified time.Time `json:"modified"`
}

// Link types.
const (
	LinkNote    = "note"
	LinkSection = "section"
	LinkBlock   = "block"
)

// LinkEdge is a persisted directed edge between two notes.
// TargetID holds the raw link target when resolution failed.
type LinkEdge struct {
	SourceID    string    `json:"source_id"`
	SourceTitle string    `json:"source_title"`
	TargetID    string    `json:"target_id"`
	TargetTitle string    `json:"target_title"`
	LinkType    string    `json:"link_type"`
	Section     string    `json:"section,omitempty"`
	BlockID     string    `json:"block_id,omitempty"`
	Context     string    `json:"context,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TodoItem is a task list entry extracted from a note body.
type TodoItem struct {
	NotePath  string `json:"note_path"`
	Line      int    `json:"line"`
	Task      string `json:"task"`
	Completed bool   `json:"completed"`
	DueDate   string `json:"due_date,omitempty"`
}

// IDFromPath derives the note id from its file name
// (".../2024/05/20240512093000.md.gpg" -> "20240512093000").
func IDFromPath(path string) string {
	base := filepath.Base(path)
	if s, ok := strings.CutSuffix(base, EncryptedExt); ok {
		return s
	}
	return strings.TrimSuffix(base, PlainExt)
}

// IsNoteFile reports whether name carries a note suffix.
func IsNoteFile(name string) bool {
	return strings.HasSuffix(name, PlainExt) || strings.HasSuffix(name, EncryptedExt)
}
