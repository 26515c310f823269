package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/wikipress/internal/apperr"
	"github.com/starford/wikipress/internal/docservice"
	"github.com/starford/wikipress/internal/report"
	"github.com/starford/wikipress/internal/wikilink"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// documentPath extracts the document path from the URL (everything after /api/documents/).
// Supports encoded slashes from OpenAPI clients (e.g. notes%2Ftoday.md).
func documentPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Preview a source document with wiki-links rewritten
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := documentPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.Preview(r.Context(), path)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrInvalidPath):
			writeJSON(w, http.StatusBadRequest, errorBody("invalid path"))
		default:
			slog.Error("preview document failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Rewrite handles POST /api/rewrite.
//
//	@Summary		Rewrite wiki-links in ad-hoc Markdown
//	@Tags			rewrite
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RewriteRequest	true	"Markdown to rewrite"
//	@Success		200		{object}	RewriteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rewrite [post]
func (h *Handler) Rewrite(w http.ResponseWriter, r *http.Request) {
	var req RewriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.Rewrite(r.Context(), req.Text)
	if err != nil {
		slog.Error("rewrite failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, RewriteResponse{Text: res.Text, References: res.References})
}

// Resolve handles GET /api/resolve.
//
//	@Summary		Resolve a single wiki-link against the current index
//	@Tags			rewrite
//	@Produce		json
//	@Param			ref	query		string	true	"Wiki-link, e.g. [[today]] or ![[chart.png]]"
//	@Success		200	{object}	ResolvedReference
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("ref is required"))
		return
	}
	res, err := h.svc.ResolveReference(r.Context(), ref)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// NormalizeTags handles POST /api/tags.
//
//	@Summary		Normalize front-matter tags
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TagsRequest	true	"Tags value or raw front matter"
//	@Success		200		{object}	TagsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags [post]
func (h *Handler) NormalizeTags(w http.ResponseWriter, r *http.Request) {
	var req TagsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: h.svc.NormalizeTags(req.Tags, req.FrontMatter)})
}

// References handles GET /api/references.
//
//	@Summary		List references recorded by the latest build
//	@Tags			report
//	@Produce		json
//	@Param			outcome	query		string	false	"unresolved or an exact outcome"	Enums(unresolved, document_link, document_unresolved, asset_image, asset_document, asset_unresolved)
//	@Param			source	query		string	false	"Source document path"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	ReferenceReport
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/references [get]
func (h *Handler) References(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f report.Filter
	switch outcome := q.Get("outcome"); outcome {
	case "":
	case "unresolved":
		f.UnresolvedOnly = true
	default:
		if _, ok := wikilink.ParseOutcome(outcome); !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("unknown outcome"))
			return
		}
		f.Outcome = outcome
	}
	f.Source = q.Get("source")
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid limit"))
			return
		}
		f.Limit = n
	}

	rep, err := h.svc.References(r.Context(), f)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("no build recorded"))
		} else {
			slog.Error("list references failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Index handles GET /api/index.
//
//	@Summary		Current index snapshot size and last build
//	@Tags			report
//	@Produce		json
//	@Success		200	{object}	IndexStats
//	@Security		BearerAuth
//	@Router			/index [get]
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		slog.Error("index stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
