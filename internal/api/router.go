package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/background"
	"github.com/starford/notegraph/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// runner runs POST /rebuild in the background; a nil runner rebuilds inline.
// events, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, runner *background.Runner, authEnabled bool, token string, events http.Handler) chi.Router {
	h := NewHandler(svc, runner)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/notes", h.ListNotes)
	r.Route("/notes/{ref}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Get("/backlinks", h.Backlinks)
		r.Get("/links", h.OutgoingLinks)
		r.Get("/mentions", h.UnlinkedMentions)
		r.Get("/anchors", h.AnchorProblems)
		r.Get("/toc", h.TableOfContents)
		r.Get("/sections/{section}", h.Section)
		r.Get("/blocks", h.Blocks)
		r.Post("/blocks", h.AddBlock)
	})

	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)
	r.Get("/broken", h.BrokenLinks)
	r.Get("/folders", h.Folders)
	r.Get("/resolve", h.Resolve)
	r.Get("/follow", h.Follow)
	r.Get("/todos", h.Todos)
	r.Get("/todos/counts", h.TodoCounts)

	r.Post("/reindex", h.Reindex)
	r.Post("/rebuild", h.Rebuild)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
