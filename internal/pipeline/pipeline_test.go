package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/wikipress/internal/apperr"
	"github.com/starford/wikipress/internal/report"
	"github.com/starford/wikipress/internal/storage"
	"github.com/starford/wikipress/internal/testutil"
	"github.com/starford/wikipress/internal/wikilink"
)

const todayDoc = `---
title: Today
tags: #work, #home
---
See ![[chart.png]] and [[index]].
`

func scenarioTree(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		"notes/today.md":  todayDoc,
		"index.md":        "Go to [[today]] or [[missing|Elsewhere]].",
		"files/chart.png": "PNG",
	}
}

func newBuilder(t *testing.T, files map[string]string, opts ...Option) (*Builder, string) {
	t.Helper()
	src, err := storage.NewFS(testutil.ContentTree(t, files))
	require.NoError(t, err)
	outDir := t.TempDir()
	out, err := storage.NewFS(outDir)
	require.NoError(t, err)
	return New(src, out, opts...), outDir
}

func readOutput(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestBuild_ScenarioTree(t *testing.T) {
	b, out := newBuilder(t, scenarioTree(t))

	s, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Documents)
	assert.Equal(t, 2, s.Written)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, 1, s.Assets)
	assert.Equal(t, 2, s.IndexedDocuments)
	assert.Equal(t, 1, s.IndexedAssets)
	assert.Equal(t, 1, s.Unresolved)
	assert.NotEmpty(t, s.ID)
	assert.Same(t, s, b.LastBuild())

	assert.Equal(t, "Go to [today]({filename}/notes/today.md) or Elsewhere.", readOutput(t, out, "index.md"))

	today := readOutput(t, out, "notes/today.md")
	assert.Contains(t, today, "See ![chart.png]({static}/files/chart.png) and [index]({filename}/index.md).")
	assert.Contains(t, today, "title: Today")
	assert.Contains(t, today, "- work")
	assert.Contains(t, today, "- home")
	assert.NotContains(t, today, "#work")

	assert.Equal(t, "PNG", readOutput(t, out, "files/chart.png"))

	dir, ok := b.Index().Document("today")
	require.True(t, ok)
	assert.Equal(t, "/notes/", dir)
}

func TestBuild_UnchangedOutputIsSkipped(t *testing.T) {
	b, _ := newBuilder(t, scenarioTree(t))

	_, err := b.Build(context.Background())
	require.NoError(t, err)
	s, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Written)
	assert.Equal(t, 2, s.Unchanged)
}

func TestBuild_ReferencesInSourceOrder(t *testing.T) {
	b, _ := newBuilder(t, scenarioTree(t))

	s, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, s.References, 4)

	// Documents are visited in lexical order; within a document embeds come first.
	assert.Equal(t, "index.md", s.References[0].Source)
	assert.Equal(t, "today", s.References[0].Target)
	assert.Equal(t, wikilink.DocumentUnresolved, s.References[1].Outcome)
	assert.Equal(t, "notes/today.md", s.References[2].Source)
	assert.Equal(t, wikilink.AssetImage, s.References[2].Outcome)
	assert.Equal(t, wikilink.DocumentLink, s.References[3].Outcome)
}

func TestBuild_HTML(t *testing.T) {
	files := scenarioTree(t)
	files["files/report.pdf"] = "%PDF"
	files["docs.md"] = "![[report.pdf]]\n\n[external](https://example.com/a.md)"
	b, out := newBuilder(t, files, WithHTML(NewHTMLRenderer(SiteURLs{
		DocumentPlaceholder: wikilink.DefaultDocumentBase,
		StaticPlaceholder:   wikilink.DefaultStaticBase,
		StaticURL:           "/static",
		DocumentExt:         ".md",
	})))

	_, err := b.Build(context.Background())
	require.NoError(t, err)

	index := readOutput(t, out, "index.html")
	assert.Contains(t, index, `<a href="/notes/today.html">today</a>`)
	assert.NotContains(t, index, "{filename}")

	today := readOutput(t, out, "notes/today.html")
	assert.Contains(t, today, `<img src="/static/files/chart.png" alt="chart.png">`)

	docs := readOutput(t, out, "docs.html")
	assert.Contains(t, docs, `<iframe src="/static/files/report.pdf"`)
	assert.Contains(t, docs, `href="https://example.com/a.md"`)

	_, err = os.Stat(filepath.Join(out, "index.md"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "%PDF", readOutput(t, out, "files/report.pdf"))
}

func TestBuild_HTMLAbsoluteDocumentURL(t *testing.T) {
	b, out := newBuilder(t, scenarioTree(t), WithHTML(NewHTMLRenderer(SiteURLs{
		DocumentPlaceholder: wikilink.DefaultDocumentBase,
		StaticPlaceholder:   wikilink.DefaultStaticBase,
		DocumentURL:         "https://example.org",
		StaticURL:           "https://example.org/static",
	})))

	_, err := b.Build(context.Background())
	require.NoError(t, err)

	index := readOutput(t, out, "index.html")
	assert.Contains(t, index, `<a href="https://example.org/notes/today.html">today</a>`)
	// the link target is a page this build wrote
	readOutput(t, out, "notes/today.html")
}

func TestBuild_RecordsReport(t *testing.T) {
	db := testutil.ReportDB(t)
	b, _ := newBuilder(t, scenarioTree(t), WithReport(db, 0))

	s, err := b.Build(context.Background())
	require.NoError(t, err)

	latest, err := db.LatestBuild()
	require.NoError(t, err)
	assert.Equal(t, s.ID, latest.ID)
	assert.Equal(t, 2, latest.Documents)
	assert.Equal(t, 1, latest.Unresolved)

	refs, err := db.References(s.ID, report.Filter{UnresolvedOnly: true})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "missing", refs[0].Target)
	assert.Equal(t, "index.md", refs[0].Source)
}

func TestBuild_CancelledContext(t *testing.T) {
	b, _ := newBuilder(t, scenarioTree(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := b.Build(ctx)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_MissingRoot(t *testing.T) {
	root := t.TempDir()
	src, err := storage.NewFS(root)
	require.NoError(t, err)
	out, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(root))

	_, err = New(src, out).Build(context.Background())
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

type failingSource struct {
	storage.Provider
	fail string
}

func (f failingSource) Read(path string) ([]byte, error) {
	if path == f.fail {
		return nil, errors.New("disk on fire")
	}
	return f.Provider.Read(path)
}

func TestBuild_DocumentFailuresAreJoined(t *testing.T) {
	src, err := storage.NewFS(testutil.ContentTree(t, scenarioTree(t)))
	require.NoError(t, err)
	out, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)

	b := New(failingSource{Provider: src, fail: "index.md"}, out, WithWorkers(1))
	s, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	require.NotNil(t, s)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Written)
}

func TestPreview(t *testing.T) {
	b, out := newBuilder(t, scenarioTree(t))

	doc, err := b.Preview("notes/today.md")
	require.NoError(t, err)
	assert.Equal(t, "Today", doc.Title)
	assert.Equal(t, []string{"work", "home"}, doc.Tags)
	assert.Contains(t, doc.Markdown, "[index]({filename}/index.md)")
	assert.Len(t, doc.References, 2)
	assert.Empty(t, doc.Unresolved())
	assert.NotNil(t, b.Index())

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPreview_NotFound(t *testing.T) {
	b, _ := newBuilder(t, scenarioTree(t))

	_, err := b.Preview("nope.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRewriter_UsesPublishedSnapshot(t *testing.T) {
	b, _ := newBuilder(t, scenarioTree(t), WithMarkup(wikilink.Markup{
		DocumentBase: "/site",
		StaticBase:   "/static",
		DocumentExt:  ".html",
	}))

	rw, err := b.Rewriter()
	require.NoError(t, err)
	assert.Equal(t, "[today](/site/notes/today.html)", rw.Rewrite("[[today]]").Text)
}
