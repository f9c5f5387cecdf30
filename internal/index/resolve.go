package index

import (
	"regexp"

	"github.com/starford/notegraph/internal/models"
)

var noteIDRe = regexp.MustCompile(`^\d{14}$`)

// fuzzyCandidates caps how many full-text hits fuzzy resolution considers.
const fuzzyCandidates = 20

// resolver turns a raw link target into a note. It runs against either the
// DB handle or an open transaction and never writes.
type resolver struct {
	q       querier
	locator Locator
}

// Resolve maps a link target to a note. Order: exact 14-digit id, exact
// title (case-insensitive, most recently indexed wins), then, when fuzzy is
// set, full-text search where the most recently modified hit wins.
// An unresolvable target returns ok=false and a nil error.
func (db *DB) Resolve(target string, fuzzy bool) (models.NoteRef, bool, error) {
	return resolver{q: db.conn, locator: db.locator}.resolve(target, fuzzy)
}

func (r resolver) resolve(target string, fuzzy bool) (models.NoteRef, bool, error) {
	if target == "" {
		return models.NoteRef{}, false, nil
	}

	if noteIDRe.MatchString(target) {
		ref, ok, err := r.byID(target)
		if err != nil || ok {
			return ref, ok, err
		}
	}

	rec, ok, err := queryRecord(r.q, `title = ? COLLATE NOCASE`, target)
	if err != nil || ok {
		return rec.Ref(), ok, err
	}

	if !fuzzy {
		return models.NoteRef{}, false, nil
	}
	return r.fuzzy(target)
}

func (r resolver) byID(id string) (models.NoteRef, bool, error) {
	if r.locator == nil {
		rec, ok, err := queryRecord(r.q, `note_id = ?`, id)
		return rec.Ref(), ok, err
	}

	path, found := r.locator.Locate(id)
	if !found {
		return models.NoteRef{}, false, nil
	}
	rec, ok, err := queryRecord(r.q, `path = ?`, path)
	if err != nil {
		return models.NoteRef{}, false, err
	}
	if !ok {
		// On disk but not indexed yet.
		return models.NoteRef{ID: id, Title: id, Path: path}, true, nil
	}
	return rec.Ref(), true, nil
}

func (r resolver) fuzzy(target string) (models.NoteRef, bool, error) {
	hits, err := search(r.q, target, fuzzyCandidates)
	if err != nil || len(hits) == 0 {
		return models.NoteRef{}, false, err
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if h.Modified.After(best.Modified) {
			best = h
		}
	}
	rec, ok, err := queryRecord(r.q, `path = ?`, best.Path)
	if err != nil || !ok {
		return models.NoteRef{}, false, err
	}
	return rec.Ref(), true, nil
}
