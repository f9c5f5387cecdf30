package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/parser"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []index.NoteMeta `json:"notes" validate:"required"`
	Total int              `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the link graph.
type GraphResponse struct {
	Nodes []index.GraphNode `json:"nodes" validate:"required"`
	Links []index.GraphLink `json:"links" validate:"required"`
}

// LinksResponse wraps a list of link edges.
type LinksResponse struct {
	Links []models.LinkEdge `json:"links" validate:"required"`
}

// MentionsResponse wraps unlinked mentions of a note.
type MentionsResponse struct {
	Mentions []graph.Mention `json:"mentions" validate:"required"`
}

// AnchorsResponse wraps links whose section or block anchor is missing.
type AnchorsResponse struct {
	Problems []graph.AnchorProblem `json:"problems" validate:"required"`
}

// BlocksResponse wraps the block anchors of a note.
type BlocksResponse struct {
	Blocks []parser.BlockRef `json:"blocks" validate:"required"`
}

// TextResponse carries a rendered text fragment.
type TextResponse struct {
	Text string `json:"text" validate:"required"`
}

// ResolveResponse reports where a link target points.
type ResolveResponse struct {
	Found bool            `json:"found" validate:"required"`
	Note  *models.NoteRef `json:"note,omitempty"`
}

// TodosResponse wraps task items.
type TodosResponse struct {
	Todos []models.TodoItem `json:"todos" validate:"required"`
}

// TodoCountsResponse holds open and completed task totals.
type TodoCountsResponse struct {
	Open int `json:"open" example:"3"`
	Done int `json:"done" example:"7"`
}

// FoldersResponse wraps per-month note counts.
type FoldersResponse struct {
	Folders []index.FolderCount `json:"folders" validate:"required"`
}

// AddBlockRequest is the request body for anchoring a note line.
type AddBlockRequest struct {
	Line *int `json:"line" example:"4"`
}

// Validate checks that a zero-based line number was supplied.
func (r AddBlockRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Line, validation.NotNil, validation.Min(0)),
	)
}

// AddBlockResponse returns the anchor id of the requested line.
type AddBlockResponse struct {
	BlockID string `json:"block_id" example:"a1b2c3" validate:"required"`
}

// TaskResponse is returned when work was handed to the background runner.
type TaskResponse struct {
	TaskID string `json:"task_id" validate:"required"`
}
