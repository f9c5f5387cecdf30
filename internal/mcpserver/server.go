// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the notegraph index and link graph over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/noteservice"
)

// ContractURI is the resource URI of the note format contract.
const ContractURI = "notegraph://note-format"

// Server wraps the MCP server with notegraph tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all notegraph tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"notegraph",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles, bodies and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List indexed notes, newest first, optionally filtered by tag or folder tag."),
		mcp.WithString("tag", mcp.Description("Only notes carrying this tag")),
		mcp.WithString("folder", mcp.Description("Only notes filed under this folder tag")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of notes (default 50)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Read a note with its headings, backlinks and outgoing links."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Note id (YYYYMMDDHHMMSS), exact title or file path")),
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find every link that points at the specified note, with surrounding context."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Note id, exact title or file path")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_outgoing_links",
		mcp.WithDescription("List the links leaving the specified note, including unresolved ones."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Note id, exact title or file path")),
	), s.getOutgoingLinks)

	s.mcp.AddTool(mcp.NewTool("broken_links",
		mcp.WithDescription("List links whose target does not match any indexed note."),
	), s.brokenLinks)

	s.mcp.AddTool(mcp.NewTool("unlinked_mentions",
		mcp.WithDescription("Find places where the note's title appears in other notes without a link."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Note id, exact title or file path")),
	), s.unlinkedMentions)

	s.mcp.AddTool(mcp.NewTool("resolve_link",
		mcp.WithDescription("Resolve a link target (note id or title) to a note."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Note id or title")),
		mcp.WithBoolean("fuzzy", mcp.Description("Fall back to full-text search when no exact match exists")),
	), s.resolveLink)

	s.mcp.AddTool(mcp.NewTool("follow_link",
		mcp.WithDescription("Follow a wiki link and return the section, block or note it addresses."),
		mcp.WithString("link", mcp.Required(), mcp.Description("Link text, e.g. [[Title#Section]] or [[Title^a1b2c3]]")),
	), s.followLink)

	s.mcp.AddTool(mcp.NewTool("get_toc",
		mcp.WithDescription("Return the heading outline of a note."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Note id, exact title or file path")),
	), s.getTOC)

	s.mcp.AddTool(mcp.NewTool("get_section",
		mcp.WithDescription("Return one section of a note, from its heading up to the next heading of the same or higher level."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Note id, exact title or file path")),
		mcp.WithString("section", mcp.Required(), mcp.Description("Heading text or slug")),
	), s.getSection)

	s.mcp.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List the block anchors (^id) of a note."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Note id, exact title or file path")),
	), s.listBlocks)

	s.mcp.AddTool(mcp.NewTool("add_block_id",
		mcp.WithDescription("Anchor a line of a note with a block id so it can be linked as [[Title^id]]. "+
			"Returns the existing id if the line is already anchored."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Note id, exact title or file path")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("Zero-based line number in the note body")),
	), s.addBlockID)

	s.mcp.AddTool(mcp.NewTool("list_todos",
		mcp.WithDescription("List task items (- [ ] / - [x]) across notes."),
		mcp.WithBoolean("completed", mcp.Description("Only completed (true) or open (false) items; omit for both")),
		mcp.WithString("folder", mcp.Description("Only tasks in notes under this folder tag")),
	), s.listTodos)

	s.mcp.AddTool(mcp.NewTool("reindex",
		mcp.WithDescription("Index new and changed note files and drop entries for deleted ones."),
	), s.reindex)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the notegraph note format contract: file layout, frontmatter and link syntax."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Note Format Contract",
			mcp.WithResourceDescription("File layout, frontmatter and link syntax understood by the index."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	return jsonResult(results)
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListNotes(ctx, index.ListOptions{
		Tag:    req.GetString("tag", ""),
		Folder: req.GetString("folder", ""),
		Limit:  req.GetInt("limit", 50),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d notes\n", total)
	for _, m := range items {
		fmt.Fprintf(&b, "%s  %s", m.ID, m.Title)
		if len(m.Tags) > 0 {
			fmt.Fprintf(&b, "  #%s", strings.Join(m.Tags, " #"))
		}
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.svc.Backlinks(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return jsonResult(links)
}

func (s *Server) getOutgoingLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.svc.OutgoingLinks(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no outgoing links"), nil
	}
	return jsonResult(links)
}

func (s *Server) brokenLinks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	links, err := s.svc.BrokenLinks(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no broken links"), nil
	}
	return jsonResult(links)
}

func (s *Server) unlinkedMentions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mentions, err := s.svc.UnlinkedMentions(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(mentions) == 0 {
		return mcp.NewToolResultText("no unlinked mentions"), nil
	}
	return jsonResult(mentions)
}

func (s *Server) resolveLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ref, ok, err := s.svc.Resolve(ctx, target, req.GetBool("fuzzy", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unresolved: %s", target)), nil
	}
	return jsonResult(ref)
}

func (s *Server) followLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	link, err := req.RequireString("link")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	followed, err := s.svc.Follow(ctx, link)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("# %s (%s)\n\n%s", followed.Target.Title, followed.Target.ID, followed.Content)), nil
}

func (s *Server) getTOC(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	toc, err := s.svc.TableOfContents(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(toc), nil
}

func (s *Server) getSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	section, err := req.RequireString("section")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := s.svc.Section(ctx, ref, section)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) listBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	blocks, err := s.svc.Blocks(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(blocks) == 0 {
		return mcp.NewToolResultText("no block anchors"), nil
	}
	var b strings.Builder
	for _, blk := range blocks {
		fmt.Fprintf(&b, "^%s  line %d: %s\n", blk.ID, blk.Line, blk.Content)
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) addBlockID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	line, err := req.RequireInt("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.svc.AddBlockID(ctx, ref, line)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("^" + id), nil
}

func (s *Server) listTodos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := index.TodoFilter{Folder: req.GetString("folder", "")}
	if v, ok := req.GetArguments()["completed"].(bool); ok {
		f.Completed = &v
	}
	todos, err := s.svc.Todos(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(todos) == 0 {
		return mcp.NewToolResultText("no tasks"), nil
	}

	var b strings.Builder
	for _, td := range todos {
		mark := " "
		if td.Completed {
			mark = "x"
		}
		fmt.Fprintf(&b, "- [%s] %s", mark, td.Task)
		if td.DueDate != "" {
			fmt.Fprintf(&b, " (due %s)", td.DueDate)
		}
		fmt.Fprintf(&b, "  %s:%d\n", td.NotePath, td.Line)
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) reindex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Reindex(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("indexed %d, removed %d, failed %d", stats.Indexed, stats.Removed, stats.Failed)), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
