package parser

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/notegraph/internal/apperr"
)

// blockIDBytes is the amount of randomness in a generated block id (6 hex chars).
const blockIDBytes = 3

var blockAnchorRe = regexp.MustCompile(`\^([a-f0-9]+)\s*$`)

// BlockRef is a line carrying a ^blockid anchor.
type BlockRef struct {
	ID      string `json:"id"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

func (b BlockRef) String() string { return "^" + b.ID }

// ExtractBlockRefs returns every anchored line in content.
func ExtractBlockRefs(content string) []BlockRef {
	var out []BlockRef
	for i, line := range strings.Split(content, "\n") {
		m := blockAnchorRe.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		out = append(out, BlockRef{
			ID:      line[m[2]:m[3]],
			Line:    i,
			Content: strings.TrimSpace(line[:m[0]]),
		})
	}
	return out
}

// FindBlock returns the line carrying the given block id.
func FindBlock(content, id string) (int, bool) {
	for _, b := range ExtractBlockRefs(content) {
		if b.ID == id {
			return b.Line, true
		}
	}
	return 0, false
}

// GenerateBlockID returns a random 6 character hex id.
func GenerateBlockID() (string, error) {
	buf := make([]byte, blockIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("parser: generate block id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AddBlockID anchors the given 0-indexed line. A line that already ends with
// an anchor keeps it and the content is returned unchanged.
func AddBlockID(content string, line int) (string, string, error) {
	lines := strings.Split(content, "\n")
	if line < 0 || line >= len(lines) {
		return "", "", fmt.Errorf("parser: line %d out of range [0, %d): %w", line, len(lines), apperr.ErrInvalidArgument)
	}

	if m := blockAnchorRe.FindStringSubmatch(lines[line]); m != nil {
		return content, m[1], nil
	}

	id, err := GenerateBlockID()
	if err != nil {
		return "", "", err
	}
	lines[line] = lines[line] + " ^" + id
	return strings.Join(lines, "\n"), id, nil
}

// BlockContext returns the block line with contextLines lines on each side,
// clamped to the document. Empty when the block does not exist.
func BlockContext(content, id string, contextLines int) string {
	n, ok := FindBlock(content, id)
	if !ok {
		return ""
	}
	lines := strings.Split(content, "\n")
	start := max(0, n-contextLines)
	end := min(len(lines), n+contextLines+1)
	return strings.Join(lines[start:end], "\n")
}

// ValidBlock reports whether content carries the block id.
func ValidBlock(content, id string) bool {
	_, ok := FindBlock(content, id)
	return ok
}
