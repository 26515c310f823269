package wikilink

import "strings"

// Reference records how one token was rewritten.
type Reference struct {
	Kind    Kind    `json:"kind"`
	Target  string  `json:"target"`
	Display string  `json:"display"`
	Outcome Outcome `json:"outcome"`
	Dir     string  `json:"dir,omitempty"`
}

// Result is the output of a rewrite.
type Result struct {
	Text string `json:"text"`
	// References lists every substituted token, embeds first, in text order
	// within each pass.
	References []Reference `json:"references"`
}

// Unresolved returns the references whose target was not in the index.
func (r Result) Unresolved() []Reference {
	var out []Reference
	for _, ref := range r.References {
		if !ref.Outcome.Resolved() {
			out = append(out, ref)
		}
	}
	return out
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithMarkup sets the placeholders and document extension used for output.
func WithMarkup(m Markup) Option {
	return func(r *Rewriter) {
		r.markup = m
	}
}

// Rewriter substitutes wiki-links in text. It holds no mutable state and is
// safe for concurrent use as long as its Lookup is.
type Rewriter struct {
	index  Lookup
	markup Markup
}

// NewRewriter returns a Rewriter resolving against idx.
func NewRewriter(idx Lookup, opts ...Option) *Rewriter {
	r := &Rewriter{index: idx, markup: DefaultMarkup()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite replaces every embed, then every document link, in text. Text
// outside matched tokens is copied unchanged. Output of the embed pass is
// not rescanned for embeds, but the document pass runs over all of it.
func (r *Rewriter) Rewrite(text string) Result {
	var refs []Reference
	text = r.pass(text, KindAsset, &refs)
	text = r.pass(text, KindDocument, &refs)
	return Result{Text: text, References: refs}
}

// Resolve resolves a single token against the Rewriter's index.
func (r *Rewriter) Resolve(tok Token) Resolution {
	return Resolve(tok, r.index)
}

// Render resolves and renders a single token.
func (r *Rewriter) Render(tok Token) string {
	return r.markup.Render(r.Resolve(tok))
}

func (r *Rewriter) pass(text string, kind Kind, refs *[]Reference) string {
	var b strings.Builder
	matched := false
	last := 0
	for tok := range Scan(text, kind) {
		if !matched {
			b.Grow(len(text))
			matched = true
		}
		res := Resolve(tok, r.index)
		b.WriteString(text[last:tok.Start])
		b.WriteString(r.markup.Render(res))
		last = tok.End
		*refs = append(*refs, Reference{
			Kind:    tok.Kind,
			Target:  tok.Target,
			Display: tok.Display,
			Outcome: res.Outcome,
			Dir:     res.Dir,
		})
	}
	if !matched {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// RewriteText rewrites text against idx with the default markup.
func RewriteText(text string, idx Lookup) string {
	return NewRewriter(idx).Rewrite(text).Text
}
