// Package wikilink finds wiki-style references in Markdown text, resolves them
// against a content index and rewrites them into plain Markdown links and images.
//
// Two reference forms are recognised:
//
//	[[target]]  [[target|alias]]     document links
//	![[file]]   ![[file|alias]]      asset embeds
//
// Embeds are rewritten first so that the leading "!" is consumed together
// with its brackets and never survives in front of a document link.
package wikilink

import (
	"fmt"
	"iter"
	"regexp"
	"strings"
)

// Kind distinguishes document links from asset embeds.
type Kind int

const (
	KindDocument Kind = iota
	KindAsset
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindAsset:
		return "asset"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "document":
		return KindDocument, true
	case "asset":
		return KindAsset, true
	}
	return 0, false
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	v, ok := ParseKind(string(text))
	if !ok {
		return fmt.Errorf("wikilink: unknown kind %q", text)
	}
	*k = v
	return nil
}

// The target may not contain '|' or ']'. The alias runs to the first "]]".
const linkPattern = `\[\[\s*([^|\]]+)(?:\|(.+?))?\]\]`

var (
	documentRe = regexp.MustCompile(linkPattern)
	assetRe    = regexp.MustCompile(`!` + linkPattern)
)

// Token is a single reference found in a text.
type Token struct {
	Kind Kind
	// Target is the referenced name, trimmed. For assets it includes the extension.
	Target string
	// Display is the trimmed alias, or Target when no alias was given.
	Display string
	// Raw is the matched source text; Start and End delimit it in the scanned text.
	Raw   string
	Start int
	End   int
}

func pattern(kind Kind) *regexp.Regexp {
	if kind == KindAsset {
		return assetRe
	}
	return documentRe
}

// Scan yields the tokens of the given kind in text, left to right and
// without overlap. Scanning is lazy; stopping the iteration early stops the
// search.
func Scan(text string, kind Kind) iter.Seq[Token] {
	re := pattern(kind)
	return func(yield func(Token) bool) {
		offset := 0
		for offset <= len(text) {
			loc := re.FindStringSubmatchIndex(text[offset:])
			if loc == nil {
				return
			}
			tok := newToken(kind, text, offset, loc)
			if !yield(tok) {
				return
			}
			// Matches are never empty, so End always advances.
			offset = tok.End
		}
	}
}

// ScanAll collects every token of the given kind.
func ScanAll(text string, kind Kind) []Token {
	var out []Token
	for tok := range Scan(text, kind) {
		out = append(out, tok)
	}
	return out
}

func newToken(kind Kind, text string, offset int, loc []int) Token {
	start, end := offset+loc[0], offset+loc[1]
	target := strings.TrimSpace(text[offset+loc[2] : offset+loc[3]])
	display := target
	if loc[4] >= 0 {
		display = strings.TrimSpace(text[offset+loc[4] : offset+loc[5]])
	}
	return Token{
		Kind:    kind,
		Target:  target,
		Display: display,
		Raw:     text[start:end],
		Start:   start,
		End:     end,
	}
}
