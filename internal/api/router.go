package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/wikipress/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Rewritten previews of source documents.
	r.Get("/documents/*", h.GetDocument)

	// Ad-hoc rewriting.
	r.Post("/rewrite", h.Rewrite)
	r.Get("/resolve", h.Resolve)
	r.Post("/tags", h.NormalizeTags)

	// Build report.
	r.Get("/references", h.References)
	r.Get("/index", h.Index)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
