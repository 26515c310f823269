// Package docservice exposes the rewrite engine to the HTTP and MCP front ends.
package docservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/wikipress/internal/apperr"
	"github.com/starford/wikipress/internal/models"
	"github.com/starford/wikipress/internal/pipeline"
	"github.com/starford/wikipress/internal/report"
	"github.com/starford/wikipress/internal/tags"
	"github.com/starford/wikipress/internal/wikilink"
)

// ResolvedReference describes how a single wiki-link resolves against the
// current index.
type ResolvedReference struct {
	Kind     wikilink.Kind    `json:"kind"`
	Target   string           `json:"target"`
	Display  string           `json:"display"`
	Outcome  wikilink.Outcome `json:"outcome"`
	Dir      string           `json:"dir,omitempty"`
	Rendered string           `json:"rendered"`
}

// ReferenceReport lists references recorded for one build.
type ReferenceReport struct {
	BuildID    string             `json:"build_id"`
	References []report.SourceRef `json:"references"`
}

// IndexStats summarises the current index snapshot.
type IndexStats struct {
	Documents int               `json:"documents"`
	Assets    int               `json:"assets"`
	LastBuild *pipeline.Summary `json:"last_build,omitempty"`
}

// Service answers preview and rewrite queries against the builder's current
// snapshot.
type Service struct {
	builder *pipeline.Builder
	report  *report.DB
}

// NewService creates a new document service. db may be nil, in which case
// reference queries fall back to the builder's last in-memory build.
func NewService(builder *pipeline.Builder, db *report.DB) *Service {
	return &Service{builder: builder, report: db}
}

// Preview rewrites the source document at path without writing output.
func (s *Service) Preview(_ context.Context, path string) (*models.Document, error) {
	return s.builder.Preview(path)
}

// Rewrite rewrites arbitrary Markdown text.
func (s *Service) Rewrite(_ context.Context, text string) (*wikilink.Result, error) {
	rw, err := s.builder.Rewriter()
	if err != nil {
		return nil, err
	}
	res := rw.Rewrite(text)
	if res.References == nil {
		res.References = []wikilink.Reference{}
	}
	return &res, nil
}

// ResolveReference resolves a single wiki-link written as "[[target|alias]]"
// or "![[file]]". A bare name is treated as a document link.
func (s *Service) ResolveReference(_ context.Context, raw string) (*ResolvedReference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("docservice: empty reference")
	}
	if !strings.Contains(raw, "[[") {
		raw = "[[" + raw + "]]"
	}

	tok, ok := firstToken(raw)
	if !ok {
		return nil, fmt.Errorf("docservice: %q is not a wiki-link", raw)
	}

	rw, err := s.builder.Rewriter()
	if err != nil {
		return nil, err
	}
	res := rw.Resolve(tok)
	return &ResolvedReference{
		Kind:     tok.Kind,
		Target:   tok.Target,
		Display:  tok.Display,
		Outcome:  res.Outcome,
		Dir:      res.Dir,
		Rendered: rw.Render(tok),
	}, nil
}

func firstToken(raw string) (wikilink.Token, bool) {
	for _, kind := range []wikilink.Kind{wikilink.KindAsset, wikilink.KindDocument} {
		for tok := range wikilink.Scan(raw, kind) {
			return tok, true
		}
	}
	return wikilink.Token{}, false
}

// NormalizeTags normalizes tags from raw front-matter text when given,
// otherwise from an already decoded value.
func (s *Service) NormalizeTags(value any, frontMatter string) []string {
	var out []string
	if frontMatter != "" {
		out = tags.FromFrontMatter(frontMatter)
	} else {
		out = tags.FromValue(value)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// References returns the references recorded for the latest build.
// apperr.ErrNotFound is returned when no build has been recorded yet.
func (s *Service) References(_ context.Context, f report.Filter) (*ReferenceReport, error) {
	if s.report == nil {
		return s.lastBuildReferences(f)
	}
	b, err := s.report.LatestBuild()
	if err != nil {
		return nil, err
	}
	refs, err := s.report.References(b.ID, f)
	if err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []report.SourceRef{}
	}
	return &ReferenceReport{BuildID: b.ID, References: refs}, nil
}

func (s *Service) lastBuildReferences(f report.Filter) (*ReferenceReport, error) {
	last := s.builder.LastBuild()
	if last == nil {
		return nil, apperr.ErrNotFound
	}
	refs := []report.SourceRef{}
	for _, r := range last.References {
		switch {
		case f.UnresolvedOnly && r.Outcome.Resolved():
			continue
		case f.Outcome != "" && r.Outcome.String() != f.Outcome:
			continue
		case f.Source != "" && r.Source != f.Source:
			continue
		}
		refs = append(refs, r)
		if f.Limit > 0 && len(refs) == f.Limit {
			break
		}
	}
	return &ReferenceReport{BuildID: last.ID, References: refs}, nil
}

// Stats reports the size of the current index, building it if necessary.
func (s *Service) Stats(_ context.Context) (*IndexStats, error) {
	idx := s.builder.Index()
	if idx == nil {
		var err error
		if idx, err = s.builder.Refresh(); err != nil {
			return nil, err
		}
	}
	return &IndexStats{
		Documents: idx.DocumentCount(),
		Assets:    idx.AssetCount(),
		LastBuild: s.builder.LastBuild(),
	}, nil
}
