package api

import (
	"github.com/starford/wikipress/internal/docservice"
	"github.com/starford/wikipress/internal/models"
	"github.com/starford/wikipress/internal/wikilink"
)

// RewriteRequest is the request body for rewriting ad-hoc Markdown.
type RewriteRequest struct {
	Text string `json:"text" example:"See [[today]] and ![[chart.png]]" validate:"required"`
}

// RewriteResponse carries rewritten text and the references substituted in it.
type RewriteResponse struct {
	Text       string               `json:"text" example:"See [today]({filename}/notes/today.md)" validate:"required"`
	References []wikilink.Reference `json:"references" validate:"required"`
}

// TagsRequest accepts either a decoded tags value or raw front-matter text.
type TagsRequest struct {
	Tags        any    `json:"tags,omitempty"`
	FrontMatter string `json:"front_matter,omitempty" example:"tags: #work, #home"`
}

// TagsResponse holds normalized tags.
type TagsResponse struct {
	Tags []string `json:"tags" example:"work,home" validate:"required"`
}

// DocumentDetail is the rewritten preview of a source document.
type DocumentDetail = models.Document

// ResolvedReference describes a single resolved wiki-link.
type ResolvedReference = docservice.ResolvedReference

// ReferenceReport lists references of the latest build.
type ReferenceReport = docservice.ReferenceReport

// IndexStats summarises the current index snapshot.
type IndexStats = docservice.IndexStats
