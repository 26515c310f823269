package pipeline

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// SiteURLs maps the placeholders emitted by the rewriter to real URL
// prefixes for HTML output.
type SiteURLs struct {
	DocumentPlaceholder string
	StaticPlaceholder   string
	DocumentURL         string
	StaticURL           string
	// DocumentExt is replaced by ".html" in relative link destinations.
	DocumentExt string
}

// HTMLRenderer turns rewritten Markdown into an HTML fragment.
type HTMLRenderer struct {
	md goldmark.Markdown
	// static replaces the static placeholder before parsing.
	static *strings.Replacer
	// document replaces the document placeholder left in raw HTML.
	document *strings.Replacer
}

// NewHTMLRenderer creates a renderer with GFM enabled and raw HTML passed
// through, which the PDF embed relies on.
func NewHTMLRenderer(site SiteURLs) *HTMLRenderer {
	ext := site.DocumentExt
	if ext == "" {
		ext = ".md"
	}
	var static, document []string
	if site.StaticPlaceholder != "" {
		static = []string{site.StaticPlaceholder, site.StaticURL}
	}
	if site.DocumentPlaceholder != "" {
		document = []string{site.DocumentPlaceholder, site.DocumentURL}
	}
	links := &linkTransformer{
		ext:         ext,
		placeholder: site.DocumentPlaceholder,
		base:        site.DocumentURL,
	}
	return &HTMLRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
				parser.WithASTTransformers(util.Prioritized(links, 100)),
			),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		static:   strings.NewReplacer(static...),
		document: strings.NewReplacer(document...),
	}
}

// Render substitutes the site placeholders in markdown and converts it.
// Document links are resolved by the link transformer while they still
// carry the placeholder, so an absolute document URL keeps working.
func (r *HTMLRenderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(r.static.Replace(markdown)), &buf); err != nil {
		return "", fmt.Errorf("pipeline: render html: %w", err)
	}
	return r.document.Replace(buf.String()), nil
}

// OutputPath maps a source document path to its HTML output path.
func OutputPath(path, documentExt string) string {
	return strings.TrimSuffix(path, documentExt) + ".html"
}

// linkTransformer points links at rendered pages instead of Markdown
// sources. Destinations starting with the document placeholder get the site
// document URL; other relative destinations are only renamed.
type linkTransformer struct {
	ext         string
	placeholder string
	base        string
}

func (t *linkTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if link, ok := n.(*ast.Link); ok {
			link.Destination = t.rewrite(link.Destination)
		}
		return ast.WalkContinue, nil
	})
}

func (t *linkTransformer) rewrite(dest []byte) []byte {
	if t.placeholder != "" {
		if rest, ok := bytes.CutPrefix(dest, []byte(t.placeholder)); ok {
			return append([]byte(t.base), t.toHTML(rest)...)
		}
	}
	return t.toHTML(dest)
}

func (t *linkTransformer) toHTML(dest []byte) []byte {
	u, err := url.Parse(string(dest))
	if err != nil || u.Scheme != "" || u.Host != "" {
		return dest
	}
	if !strings.HasSuffix(u.Path, t.ext) {
		return dest
	}
	u.Path = strings.TrimSuffix(u.Path, t.ext) + ".html"
	return []byte(u.String())
}
