package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/background"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *noteservice.Service
	runner *background.Runner
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, runner *background.Runner) *Handler {
	return &Handler{svc: svc, runner: runner}
}

// noteRef extracts the {ref} URL parameter: a note id, an exact title or a
// file path.
func noteRef(r *http.Request) string {
	return urlParam(r, "ref")
}

// urlParam decodes a chi URL parameter. Encoded slashes from clients
// (e.g. %2Fnotes%2F2024...) are unescaped.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func boolQuery(r *http.Request, key string) (*bool, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, false
	}
	return &b, true
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with optional pagination and filtering
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			folder	query		string	false	"Filter by folder tag"
//	@Param			plain	query		bool	false	"Only plain (true) or encrypted (false) notes"
//	@Param			inbox	query		bool	false	"Only notes without a folder tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(modified, created, title)
//	@Success		200		{object}	NoteListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	plain, ok := boolQuery(r, "plain")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("plain must be a boolean"))
		return
	}
	inbox, _ := strconv.ParseBool(q.Get("inbox"))

	items, total, err := h.svc.ListNotes(r.Context(), index.ListOptions{
		Tag:    q.Get("tag"),
		Folder: q.Get("folder"),
		Plain:  plain,
		Inbox:  inbox,
		Sort:   q.Get("sort"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/{ref}.
//
//	@Summary		Get a note with its headings and links
//	@Tags			notes
//	@Produce		json
//	@Param			ref	path		string	true	"Note id, title or path"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{ref} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.GetNote(r.Context(), noteRef(r))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Backlinks handles GET /api/notes/{ref}/backlinks.
//
//	@Summary		Links pointing at a note
//	@Tags			links
//	@Produce		json
//	@Param			ref	path		string	true	"Note id, title or path"
//	@Success		200	{object}	LinksResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{ref}/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.Backlinks(r.Context(), noteRef(r))
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Links: links})
}

// OutgoingLinks handles GET /api/notes/{ref}/links.
//
//	@Summary		Links leaving a note
//	@Tags			links
//	@Produce		json
//	@Param			ref	path		string	true	"Note id, title or path"
//	@Success		200	{object}	LinksResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{ref}/links [get]
func (h *Handler) OutgoingLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.OutgoingLinks(r.Context(), noteRef(r))
	if err != nil {
		writeError(w, "outgoing links", err)
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Links: links})
}

// UnlinkedMentions handles GET /api/notes/{ref}/mentions.
//
//	@Summary		Plain-text mentions of a note's title
//	@Tags			links
//	@Produce		json
//	@Param			ref	path		string	true	"Note id, title or path"
//	@Success		200	{object}	MentionsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{ref}/mentions [get]
func (h *Handler) UnlinkedMentions(w http.ResponseWriter, r *http.Request) {
	mentions, err := h.svc.UnlinkedMentions(r.Context(), noteRef(r))
	if err != nil {
		writeError(w, "unlinked mentions", err)
		return
	}
	writeJSON(w, http.StatusOK, MentionsResponse{Mentions: mentions})
}

// AnchorProblems handles GET /api/notes/{ref}/anchors.
//
//	@Summary		Outgoing links whose section or block is missing
//	@Tags			links
//	@Produce		json
//	@Param			ref	path		string	true	"Note id, title or path"
//	@Success		200	{object}	AnchorsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{ref}/anchors [get]
func (h *Handler) AnchorProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.svc.AnchorProblems(r.Context(), noteRef(r))
	if err != nil {
		writeError(w, "anchor problems", err)
		return
	}
	writeJSON(w, http.StatusOK, AnchorsResponse{Problems: problems})
}

// TableOfContents handles GET /api/notes/{ref}/toc.
//
//	@Summary		Heading outline of a note
//	@Tags			structure
//	@Produce		json
//	@Param			ref	path		string	true	"Note id, title or path"
//	@Success		200	{object}	TextResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{ref}/toc [get]
func (h *Handler) TableOfContents(w http.ResponseWriter, r *http.Request) {
	toc, err := h.svc.TableOfContents(r.Context(), noteRef(r))
	if err != nil {
		writeError(w, "table of contents", err)
		return
	}
	writeJSON(w, http.StatusOK, TextResponse{Text: toc})
}

// Section handles GET /api/notes/{ref}/sections/{section}.
//
//	@Summary		One section of a note
//	@Tags			structure
//	@Produce		json
//	@Param			ref		path		string	true	"Note id, title or path"
//	@Param			section	path		string	true	"Heading text or slug"
//	@Success		200		{object}	TextResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{ref}/sections/{section} [get]
func (h *Handler) Section(w http.ResponseWriter, r *http.Request) {
	text, err := h.svc.Section(r.Context(), noteRef(r), urlParam(r, "section"))
	if err != nil {
		writeError(w, "section", err)
		return
	}
	writeJSON(w, http.StatusOK, TextResponse{Text: text})
}

// Blocks handles GET /api/notes/{ref}/blocks.
//
//	@Summary		Block anchors of a note
//	@Tags			structure
//	@Produce		json
//	@Param			ref	path		string	true	"Note id, title or path"
//	@Success		200	{object}	BlocksResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{ref}/blocks [get]
func (h *Handler) Blocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.svc.Blocks(r.Context(), noteRef(r))
	if err != nil {
		writeError(w, "blocks", err)
		return
	}
	writeJSON(w, http.StatusOK, BlocksResponse{Blocks: blocks})
}

// AddBlock handles POST /api/notes/{ref}/blocks.
//
//	@Summary		Anchor a line of a note with a block id
//	@Tags			structure
//	@Accept			json
//	@Produce		json
//	@Param			ref		path		string			true	"Note id, title or path"
//	@Param			body	body		AddBlockRequest	true	"Zero-based line number"
//	@Success		200		{object}	AddBlockResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{ref}/blocks [post]
func (h *Handler) AddBlock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req AddBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	id, err := h.svc.AddBlockID(r.Context(), noteRef(r), *req.Line)
	if err != nil {
		writeError(w, "add block", err)
		return
	}
	writeJSON(w, http.StatusOK, AddBlockResponse{BlockID: id})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the link graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}

// BrokenLinks handles GET /api/broken.
//
//	@Summary		Links whose target is not indexed
//	@Tags			links
//	@Produce		json
//	@Success		200	{object}	LinksResponse
//	@Security		BearerAuth
//	@Router			/broken [get]
func (h *Handler) BrokenLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.BrokenLinks(r.Context())
	if err != nil {
		writeError(w, "broken links", err)
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Links: links})
}

// Folders handles GET /api/folders.
//
//	@Summary		Notes per folder tag
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	FoldersResponse
//	@Security		BearerAuth
//	@Router			/folders [get]
func (h *Handler) Folders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.svc.Folders(r.Context())
	if err != nil {
		writeError(w, "folders", err)
		return
	}
	if folders == nil {
		folders = []index.FolderCount{}
	}
	writeJSON(w, http.StatusOK, FoldersResponse{Folders: folders})
}

// Resolve handles GET /api/resolve.
//
//	@Summary		Resolve a link target to a note
//	@Tags			links
//	@Produce		json
//	@Param			target	query		string	true	"Note id or title"
//	@Param			fuzzy	query		bool	false	"Fall back to full-text search"
//	@Success		200		{object}	ResolveResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'target' is required"))
		return
	}
	fuzzy, _ := strconv.ParseBool(r.URL.Query().Get("fuzzy"))
	ref, ok, err := h.svc.Resolve(r.Context(), target, fuzzy)
	if err != nil {
		writeError(w, "resolve", err)
		return
	}
	resp := ResolveResponse{Found: ok}
	if ok {
		resp.Note = &ref
	}
	writeJSON(w, http.StatusOK, resp)
}

// Follow handles GET /api/follow.
//
//	@Summary		Follow a wiki link to the content it addresses
//	@Tags			links
//	@Produce		json
//	@Param			link	query		string	true	"Link text, e.g. [[Note#Section]]"
//	@Success		200		{object}	graph.Followed
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/follow [get]
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	link := r.URL.Query().Get("link")
	if link == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'link' is required"))
		return
	}
	followed, err := h.svc.Follow(r.Context(), link)
	if err != nil {
		writeError(w, "follow", err)
		return
	}
	writeJSON(w, http.StatusOK, followed)
}

// Todos handles GET /api/todos.
//
//	@Summary		Task items across notes
//	@Tags			todos
//	@Produce		json
//	@Param			completed	query		bool	false	"Only open (false) or done (true) items"
//	@Param			note		query		string	false	"Restrict to one note path"
//	@Param			folder		query		string	false	"Restrict to a folder tag"
//	@Success		200			{object}	TodosResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/todos [get]
func (h *Handler) Todos(w http.ResponseWriter, r *http.Request) {
	completed, ok := boolQuery(r, "completed")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("completed must be a boolean"))
		return
	}
	todos, err := h.svc.Todos(r.Context(), index.TodoFilter{
		Completed: completed,
		NotePath:  r.URL.Query().Get("note"),
		Folder:    r.URL.Query().Get("folder"),
	})
	if err != nil {
		writeError(w, "todos", err)
		return
	}
	writeJSON(w, http.StatusOK, TodosResponse{Todos: todos})
}

// TodoCounts handles GET /api/todos/counts.
//
//	@Summary		Open and completed task totals
//	@Tags			todos
//	@Produce		json
//	@Param			folder	query		string	false	"Restrict to a folder tag"
//	@Success		200		{object}	TodoCountsResponse
//	@Security		BearerAuth
//	@Router			/todos/counts [get]
func (h *Handler) TodoCounts(w http.ResponseWriter, r *http.Request) {
	open, done, err := h.svc.TodoCounts(r.Context(), r.URL.Query().Get("folder"))
	if err != nil {
		writeError(w, "todo counts", err)
		return
	}
	writeJSON(w, http.StatusOK, TodoCountsResponse{Open: open, Done: done})
}

// Reindex handles POST /api/reindex.
//
//	@Summary		Index new and changed note files
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	index.SyncStats
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reindex [post]
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Reindex(r.Context())
	if err != nil {
		writeError(w, "reindex", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Rebuild handles POST /api/rebuild.
//
//	@Summary		Discard and rebuild the whole index in the background
//	@Tags			index
//	@Produce		json
//	@Success		202	{object}	TaskResponse
//	@Security		BearerAuth
//	@Router			/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		n, err := h.svc.Rebuild(r.Context())
		if err != nil {
			writeError(w, "rebuild", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"indexed": n})
		return
	}
	id := h.runner.Go("rebuild", func(ctx context.Context) error {
		n, err := h.svc.Rebuild(ctx)
		if err != nil {
			return err
		}
		slog.Info("index rebuilt", slog.Int("notes", n))
		return nil
	})
	writeJSON(w, http.StatusAccepted, TaskResponse{TaskID: id})
}
