// Package pipeline builds the content index and rewrites every document
// against it, writing the results to an output tree.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/wikipress/internal/apperr"
	"github.com/starford/wikipress/internal/checksum"
	"github.com/starford/wikipress/internal/contentindex"
	"github.com/starford/wikipress/internal/models"
	"github.com/starford/wikipress/internal/parser"
	"github.com/starford/wikipress/internal/report"
	"github.com/starford/wikipress/internal/storage"
	"github.com/starford/wikipress/internal/wikilink"
)

const defaultWorkers = 4

// Summary describes a finished build.
type Summary struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Documents        int       `json:"documents"`
	Written          int       `json:"written"`
	Unchanged        int       `json:"unchanged"`
	Failed           int       `json:"failed"`
	Assets           int       `json:"assets"`
	IndexedDocuments int       `json:"indexed_documents"`
	IndexedAssets    int       `json:"indexed_assets"`
	Unresolved       int       `json:"unresolved"`

	References []report.SourceRef `json:"-"`
}

// Option configures a Builder.
type Option func(*Builder)

// WithIndexOptions sets how the content index is collected.
func WithIndexOptions(opts contentindex.Options) Option {
	return func(b *Builder) { b.indexOpts = opts }
}

// WithMarkup sets the placeholders used for rewritten links.
func WithMarkup(m wikilink.Markup) Option {
	return func(b *Builder) { b.markup = m }
}

// WithHTML switches output to rendered HTML pages.
func WithHTML(r *HTMLRenderer) Option {
	return func(b *Builder) { b.html = r }
}

// WithWorkers bounds the number of documents rewritten concurrently.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithReport records every build in db, keeping the newest keep builds.
// keep <= 0 disables pruning.
func WithReport(db *report.DB, keep int) Option {
	return func(b *Builder) {
		b.report = db
		b.keepBuilds = keep
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// Builder runs builds from a source tree into an output tree. The index of
// the latest build is published atomically so concurrent readers always
// see a complete snapshot.
type Builder struct {
	source storage.Provider
	output storage.Provider

	indexOpts  contentindex.Options
	markup     wikilink.Markup
	html       *HTMLRenderer
	workers    int
	report     *report.DB
	keepBuilds int
	logger     *slog.Logger

	index atomic.Pointer[contentindex.Index]
	last  atomic.Pointer[Summary]
}

// New creates a Builder reading from source and writing to output.
func New(source, output storage.Provider, opts ...Option) *Builder {
	b := &Builder{
		source:  source,
		output:  output,
		markup:  wikilink.DefaultMarkup(),
		workers: defaultWorkers,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.indexOpts.Logger == nil {
		b.indexOpts.Logger = b.logger
	}
	if b.indexOpts.DocumentExt == "" {
		b.indexOpts.DocumentExt = contentindex.DefaultDocumentExt
	}
	return b
}

// Index returns the snapshot published by the latest build, or nil.
func (b *Builder) Index() *contentindex.Index {
	return b.index.Load()
}

// LastBuild returns the summary of the latest completed build, or nil.
func (b *Builder) LastBuild() *Summary {
	return b.last.Load()
}

// Refresh rebuilds the index from the source tree and publishes it without
// rewriting any document.
func (b *Builder) Refresh() (*contentindex.Index, error) {
	idx, err := contentindex.Build(b.source.Root(), b.indexOpts)
	if err != nil {
		return nil, err
	}
	b.index.Store(idx)
	return idx, nil
}

// Rewriter returns a rewriter over the current snapshot, building one first
// if no build has run yet.
func (b *Builder) Rewriter() (*wikilink.Rewriter, error) {
	idx := b.index.Load()
	if idx == nil {
		var err error
		if idx, err = b.Refresh(); err != nil {
			return nil, err
		}
	}
	return wikilink.NewRewriter(idx, wikilink.WithMarkup(b.markup)), nil
}

type docResult struct {
	doc       *models.Document
	unchanged bool
	err       error
}

// Build indexes the source tree, rewrites every document and writes the
// results. Per-document failures do not stop the build; they are joined
// into the returned error alongside a non-nil Summary. A cancelled ctx
// stops the build between documents.
func (b *Builder) Build(ctx context.Context) (*Summary, error) {
	started := time.Now()

	idx, err := b.Refresh()
	if err != nil {
		return nil, err
	}
	rw := wikilink.NewRewriter(idx, wikilink.WithMarkup(b.markup))

	metas, err := b.source.List("")
	if err != nil {
		return nil, fmt.Errorf("pipeline: list documents: %w", err)
	}

	results := make([]docResult, len(metas))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, m := range metas {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = b.processDocument(rw, m.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline: build: %w", err)
	}

	s := &Summary{
		ID:               uuid.NewString(),
		StartedAt:        started,
		Documents:        len(metas),
		IndexedDocuments: idx.DocumentCount(),
		IndexedAssets:    idx.AssetCount(),
	}

	var errs []error
	for _, r := range results {
		switch {
		case r.err != nil:
			s.Failed++
			errs = append(errs, r.err)
			continue
		case r.unchanged:
			s.Unchanged++
		default:
			s.Written++
		}
		for _, ref := range r.doc.References {
			s.References = append(s.References, report.SourceRef{Source: r.doc.Path, Reference: ref})
			if !ref.Outcome.Resolved() {
				s.Unresolved++
				b.logger.Debug("pipeline: unresolved reference",
					slog.String("source", r.doc.Path),
					slog.String("kind", ref.Kind.String()),
					slog.String("target", ref.Target))
			}
		}
	}

	copied, copyErrs := b.copyAssets(ctx, idx)
	s.Assets = copied
	errs = append(errs, copyErrs...)

	s.FinishedAt = time.Now()
	if err := b.record(s); err != nil {
		errs = append(errs, err)
	}
	b.last.Store(s)

	b.logger.Info("pipeline: build finished",
		slog.String("id", s.ID),
		slog.Int("documents", s.Documents),
		slog.Int("written", s.Written),
		slog.Int("unchanged", s.Unchanged),
		slog.Int("failed", s.Failed),
		slog.Int("unresolved", s.Unresolved),
		slog.Duration("took", s.FinishedAt.Sub(s.StartedAt)))

	return s, errors.Join(errs...)
}

// Preview rewrites a single source document against the current snapshot
// without writing anything.
func (b *Builder) Preview(path string) (*models.Document, error) {
	rw, err := b.Rewriter()
	if err != nil {
		return nil, err
	}
	data, err := b.source.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("pipeline: preview %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: preview %s: %w", path, err)
	}
	return b.render(rw, path, data)
}

func (b *Builder) render(rw *wikilink.Rewriter, path string, data []byte) (*models.Document, error) {
	parsed, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("pipeline: parse %s: %w", path, err)
	}
	res := rw.Rewrite(parsed.Body)

	doc := &models.Document{
		Path:        path,
		Title:       parsed.Title,
		Tags:        parsed.Tags,
		FrontMatter: parsed.FrontMatter,
		Markdown:    res.Text,
		References:  res.References,
		Checksum:    checksum.Sum(data),
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if doc.References == nil {
		doc.References = []wikilink.Reference{}
	}
	if b.html != nil {
		if doc.HTML, err = b.html.Render(res.Text); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (b *Builder) processDocument(rw *wikilink.Rewriter, path string) docResult {
	data, err := b.source.Read(path)
	if err != nil {
		return docResult{err: fmt.Errorf("pipeline: read %s: %w", path, err)}
	}
	doc, err := b.render(rw, path, data)
	if err != nil {
		return docResult{err: err}
	}

	outPath := path
	var content []byte
	if b.html != nil {
		outPath = OutputPath(path, b.indexOpts.DocumentExt)
		content = []byte(doc.HTML)
	} else {
		if content, err = parser.Compose(doc.FrontMatter, doc.Tags, doc.Markdown); err != nil {
			return docResult{err: fmt.Errorf("pipeline: compose %s: %w", path, err)}
		}
	}

	unchanged, err := b.writeIfChanged(outPath, content)
	if err != nil {
		return docResult{err: err}
	}
	return docResult{doc: doc, unchanged: unchanged}
}

func (b *Builder) writeIfChanged(path string, content []byte) (bool, error) {
	if existing, err := b.output.Read(path); err == nil && checksum.Matches(existing, checksum.Sum(content)) {
		return true, nil
	}
	if err := b.output.Write(path, content); err != nil {
		return false, fmt.Errorf("pipeline: write %s: %w", path, err)
	}
	return false, nil
}

// copyAssets mirrors every indexed asset into the output tree so the
// rewritten static links resolve.
func (b *Builder) copyAssets(ctx context.Context, idx *contentindex.Index) (int, []error) {
	var (
		copied int
		errs   []error
	)
	for _, e := range idx.Assets() {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		rel := strings.TrimPrefix(e.Path(), "/")
		data, err := b.source.Read(rel)
		if err != nil {
			errs = append(errs, fmt.Errorf("pipeline: read asset %s: %w", rel, err))
			continue
		}
		if _, err := b.writeIfChanged(rel, data); err != nil {
			errs = append(errs, err)
			continue
		}
		copied++
	}
	return copied, errs
}

func (b *Builder) record(s *Summary) error {
	if b.report == nil {
		return nil
	}
	err := b.report.RecordBuild(report.Build{
		ID:               s.ID,
		Root:             b.source.Root(),
		StartedAt:        s.StartedAt,
		FinishedAt:       s.FinishedAt,
		Documents:        s.Documents,
		IndexedDocuments: s.IndexedDocuments,
		IndexedAssets:    s.IndexedAssets,
		Unresolved:       s.Unresolved,
	}, s.References)
	if err != nil {
		return fmt.Errorf("pipeline: record build: %w", err)
	}
	if b.keepBuilds > 0 {
		n, err := b.report.Prune(b.keepBuilds)
		if err != nil {
			return fmt.Errorf("pipeline: prune builds: %w", err)
		}
		if n > 0 {
			b.logger.Debug("pipeline: pruned builds", slog.Int64("removed", n))
		}
	}
	return nil
}
