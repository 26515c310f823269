// Package parser splits Markdown documents into YAML front matter and body.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/wikipress/internal/tags"
)

const delim = "---"

// Result holds the output of parsing a Markdown file.
type Result struct {
	FrontMatter map[string]any
	// RawFrontMatter is the text between the delimiters, undecoded.
	RawFrontMatter string
	Body           string
	Tags           []string
	Title          string
}

// Parse extracts front matter, body, normalized tags and title from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	raw, fm, body := splitFrontmatter(data)

	return &Result{
		FrontMatter:    fm,
		RawFrontMatter: raw,
		Body:           body,
		Tags:           extractTags(raw, fm),
		Title:          deriveTitle(fm, body),
	}, nil
}

// splitFrontmatter separates YAML front matter (between leading --- delimiters)
// from the Markdown body. Without front matter, or when it is not valid YAML,
// the entire content is body.
func splitFrontmatter(data []byte) (string, map[string]any, string) {
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return "", nil, string(data)
	}

	rest := trimmed[len(delim):]
	if !lineEnds(rest) {
		return "", nil, string(data)
	}
	idx := closingDelim(rest)
	if idx < 0 {
		return "", nil, string(data)
	}

	block := rest[:idx]
	afterDelim := bytes.TrimLeft(rest[idx+1+len(delim):], " \t")
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return "", nil, string(data)
	}
	if fm == nil {
		fm = map[string]any{}
	}

	return strings.Trim(string(block), "\r\n"), fm, body
}

// closingDelim returns the offset of the newline that starts the closing
// delimiter line, or -1. The delimiter must fill its line, so "----" or
// "--- x" do not close the block.
func closingDelim(rest []byte) int {
	for off := 0; ; {
		i := bytes.Index(rest[off:], []byte("\n"+delim))
		if i < 0 {
			return -1
		}
		start := off + i
		end := start + 1 + len(delim)
		if lineEnds(rest[end:]) {
			return start
		}
		off = end
	}
}

// lineEnds reports whether b is empty or starts with a line break, ignoring
// trailing blanks.
func lineEnds(b []byte) bool {
	b = bytes.TrimLeft(b, " \t")
	return len(b) == 0 || b[0] == '\n' || bytes.HasPrefix(b, []byte("\r\n"))
}

// extractTags prefers the raw text, where "#work" survives; the decoded
// value covers multi-line flow sequences the line reader does not handle.
func extractTags(raw string, fm map[string]any) []string {
	if raw == "" {
		return nil
	}
	if out := tags.FromFrontMatter(raw); len(out) > 0 {
		return out
	}
	return tags.FromValue(fm["tags"])
}

// deriveTitle returns the front-matter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// Compose writes front matter and body back into a Markdown document. The
// "tags" entry is replaced by tagList when fm is non-nil. A nil fm produces
// the body alone.
func Compose(fm map[string]any, tagList []string, body string) ([]byte, error) {
	if fm == nil {
		return []byte(body), nil
	}
	out := make(map[string]any, len(fm)+1)
	for k, v := range fm {
		out[k] = v
	}
	if len(tagList) > 0 {
		out["tags"] = tagList
	} else {
		delete(out, "tags")
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	if len(out) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return nil, fmt.Errorf("parser: encode front matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("parser: encode front matter: %w", err)
		}
	}
	buf.WriteString(delim + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}
