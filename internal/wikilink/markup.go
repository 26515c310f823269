package wikilink

import (
	"net/url"
	"strings"
)

// Default placeholders understood by the host site generator.
const (
	DefaultDocumentBase = "{filename}"
	DefaultStaticBase   = "{static}"
	DefaultDocumentExt  = ".md"
)

// Markup renders resolutions as Markdown. DocumentBase and StaticBase are
// prepended verbatim to document and asset paths; the host later replaces
// them with the site's document and static URLs.
type Markup struct {
	DocumentBase string
	StaticBase   string
	DocumentExt  string
	// EscapePaths percent-encodes each path segment so that names with
	// spaces survive a strict CommonMark parser. Off by default: the host
	// site generator expects raw paths.
	EscapePaths bool
}

// DefaultMarkup returns the placeholder set used when none is configured.
func DefaultMarkup() Markup {
	return Markup{
		DocumentBase: DefaultDocumentBase,
		StaticBase:   DefaultStaticBase,
		DocumentExt:  DefaultDocumentExt,
	}
}

// Render returns the replacement text for res.
func (m Markup) Render(res Resolution) string {
	tok := res.Token
	switch res.Outcome {
	case DocumentLink:
		return "[" + tok.Display + "](" + m.DocumentBase + m.path(res.Dir, tok.Target+m.DocumentExt) + ")"
	case DocumentUnresolved:
		return tok.Display
	case AssetImage:
		return "![" + tok.Display + "](" + m.StaticBase + m.path(res.Dir, tok.Target) + ")"
	case AssetDocument:
		return m.pdfEmbed(m.StaticBase + m.path(res.Dir, tok.Target))
	default:
		return ""
	}
}

func (m Markup) path(dir, name string) string {
	p := dir + name
	if !m.EscapePaths {
		return p
	}
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// pdfEmbed renders an inline viewer followed by a download link for viewers
// that cannot display the frame.
func (m Markup) pdfEmbed(src string) string {
	var b strings.Builder
	b.WriteString(`<iframe src="`)
	b.WriteString(src)
	b.WriteString(`" width="100%" height="800px" style="border: none;"></iframe>`)
	b.WriteString(`<p><!-- browser fall back --> Click here to download. <a href="`)
	b.WriteString(src)
	b.WriteString(`" target="_blank" rel="noopener">Download the PDF</a></p>`)
	return b.String()
}
