package wikilink

import (
	"fmt"
	"strings"
)

// Lookup is the read-only view of a content index used during resolution.
// *contentindex.Index satisfies it.
type Lookup interface {
	Document(name string) (dir string, ok bool)
	Asset(filename string) (dir string, ok bool)
}

// Outcome is the kind of a Resolution.
type Outcome int

const (
	DocumentLink Outcome = iota
	DocumentUnresolved
	AssetImage
	AssetDocument
	AssetUnresolved
)

var outcomeNames = [...]string{
	DocumentLink:       "document_link",
	DocumentUnresolved: "document_unresolved",
	AssetImage:         "asset_image",
	AssetDocument:      "asset_document",
	AssetUnresolved:    "asset_unresolved",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an outcome name.
func (o *Outcome) UnmarshalText(text []byte) error {
	v, ok := ParseOutcome(string(text))
	if !ok {
		return fmt.Errorf("wikilink: unknown outcome %q", text)
	}
	*o = v
	return nil
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, bool) {
	for i, name := range outcomeNames {
		if name == s {
			return Outcome(i), true
		}
	}
	return 0, false
}

// Resolved reports whether the outcome found its target in the index.
func (o Outcome) Resolved() bool {
	return o != DocumentUnresolved && o != AssetUnresolved
}

// Resolution is the decision taken for one token.
type Resolution struct {
	Outcome Outcome
	Token   Token
	// Dir is the directory of the indexed target; empty when unresolved.
	Dir string
}

// Resolve looks tok up in idx. It depends on nothing but its arguments.
func Resolve(tok Token, idx Lookup) Resolution {
	res := Resolution{Token: tok}
	switch tok.Kind {
	case KindAsset:
		dir, ok := idx.Asset(tok.Target)
		switch {
		case !ok:
			res.Outcome = AssetUnresolved
		case isPDF(tok.Target):
			res.Outcome, res.Dir = AssetDocument, dir
		default:
			res.Outcome, res.Dir = AssetImage, dir
		}
	default:
		if dir, ok := idx.Document(tok.Target); ok {
			res.Outcome, res.Dir = DocumentLink, dir
		} else {
			res.Outcome = DocumentUnresolved
		}
	}
	return res
}

func isPDF(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}
