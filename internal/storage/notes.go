package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
)

// DefaultTitle is used when a note has neither a frontmatter title nor an H1.
const DefaultTitle = "Untitled"

// IDLayout is the timestamp layout of note ids.
const IDLayout = "20060102150405"

// Notes loads and saves decrypted notes on top of an FS.
type Notes struct {
	fs     Provider
	cipher Cipher
}

// NewNotes creates a note loader. cipher may be nil, in which case encrypted
// notes fail to load with ErrNoCipher.
func NewNotes(fsys Provider, cipher Cipher) *Notes {
	return &Notes{fs: fsys, cipher: cipher}
}

// FS returns the underlying file provider.
func (n *Notes) FS() Provider { return n.fs }

// Load reads one note. path may be absolute (under the notes root) or
// relative to it. The returned note carries its absolute FilePath.
func (n *Notes) Load(ctx context.Context, path string) (*models.Note, error) {
	rel, err := n.fs.Rel(path)
	if err != nil {
		return nil, err
	}
	raw, err := n.fs.Read(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: load %s: %w", rel, apperr.ErrNotFound)
		}
		return nil, err
	}
	sum := checksum.Sum(raw)

	plain := !strings.HasSuffix(rel, models.EncryptedExt)
	data := raw
	if !plain {
		if n.cipher == nil {
			return nil, ErrNoCipher
		}
		if data, err = n.cipher.Decrypt(ctx, raw); err != nil {
			return nil, err
		}
	}

	res, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("storage: parse %s: %w", rel, err)
	}
	abs, err := n.fs.Abs(rel)
	if err != nil {
		return nil, err
	}

	note := &models.Note{
		ID:       models.IDFromPath(rel),
		Title:    res.Title,
		Content:  res.Body,
		Tags:     res.Tags,
		Created:  res.Created,
		Modified: res.Modified,
		FilePath: abs,
		IsPlain:  plain,
		Checksum: sum,
	}
	if note.Title == "" {
		note.Title = DefaultTitle
	}
	if note.Created.IsZero() {
		if t, err := time.ParseInLocation(IDLayout, note.ID, time.Local); err == nil {
			note.Created = t
		}
	}
	if note.Modified.IsZero() {
		note.Modified = note.Created
	}
	return note, nil
}

// LoadAll reads every note under the root. Files that fail to load are
// reported through onError and skipped.
func (n *Notes) LoadAll(ctx context.Context, onError func(path string, err error)) ([]*models.Note, error) {
	metas, err := n.fs.List("")
	if err != nil {
		return nil, err
	}
	out := make([]*models.Note, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		note, err := n.Load(ctx, m.Path)
		if err != nil {
			if onError != nil {
				onError(m.Path, err)
			}
			continue
		}
		out = append(out, note)
	}
	return out, nil
}

// Save renders note and writes it atomically, encrypting .md.gpg notes. An
// empty ID is assigned from Created (or now); an empty FilePath is derived
// from the ID. The note is updated in place with its path and checksum.
func (n *Notes) Save(ctx context.Context, note *models.Note) error {
	if note.Created.IsZero() {
		note.Created = time.Now()
	}
	if note.Modified.IsZero() {
		note.Modified = note.Created
	}
	if note.ID == "" {
		note.ID = note.Created.Format(IDLayout)
	}
	if note.Title == "" {
		note.Title = DefaultTitle
	}

	rel := RelPathFor(note.ID, !note.IsPlain)
	if note.FilePath != "" {
		var err error
		if rel, err = n.fs.Rel(note.FilePath); err != nil {
			return err
		}
	}
	note.IsPlain = !strings.HasSuffix(rel, models.EncryptedExt)

	data, err := parser.Render(note.Title, note.Tags, note.Created, note.Modified, note.Content)
	if err != nil {
		return err
	}
	if !note.IsPlain {
		if n.cipher == nil {
			return ErrNoCipher
		}
		if data, err = n.cipher.Encrypt(ctx, data); err != nil {
			return err
		}
	}
	if err := n.fs.Write(rel, data); err != nil {
		return err
	}

	abs, err := n.fs.Abs(rel)
	if err != nil {
		return err
	}
	note.FilePath = abs
	note.Checksum = checksum.Sum(data)
	return nil
}

// Locate implements the index's id locator.
func (n *Notes) Locate(id string) (string, bool) {
	return n.fs.Locate(id)
}
