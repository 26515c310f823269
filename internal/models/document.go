// Package models defines the domain types shared by the build pipeline and its front ends.
package models

import (
	"time"

	"github.com/starford/wikipress/internal/wikilink"
)

// FileMeta is a lightweight representation returned by storage listings.
type FileMeta struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is a source document after wiki-links have been rewritten.
type Document struct {
	Path        string               `json:"path"`
	Title       string               `json:"title,omitempty"`
	Tags        []string             `json:"tags"`
	FrontMatter map[string]any       `json:"front_matter,omitempty"`
	Markdown    string               `json:"markdown"`
	HTML        string               `json:"html,omitempty"`
	References  []wikilink.Reference `json:"references"`
	Checksum    string               `json:"checksum"`
}

// Unresolved returns the references of d whose target was not indexed.
func (d *Document) Unresolved() []wikilink.Reference {
	return wikilink.Result{References: d.References}.Unresolved()
}
