// Package tags normalizes front-matter tag declarations.
//
// Authors write tags in several shapes: a YAML list, a single comma-joined
// string, or values prefixed with the "#" marker. All of them are flattened
// into one ordered list. Duplicates are kept.
package tags

import (
	"fmt"
	"strings"
)

const (
	// Marker is removed wherever it occurs in a tag.
	Marker = "#"
	// Separator splits one raw value into several tags.
	Separator = ","
)

// Normalize splits every raw value on Separator, removes Marker and trims
// each piece. Empty pieces are dropped.
func Normalize(raw []string) []string {
	var out []string
	for _, value := range raw {
		for _, part := range strings.Split(value, Separator) {
			tag := strings.TrimSpace(strings.ReplaceAll(part, Marker, ""))
			if tag != "" {
				out = append(out, tag)
			}
		}
	}
	return out
}

// FromValue normalizes an already decoded front-matter value: a string, a
// list of strings, or a YAML sequence of scalars.
func FromValue(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return Normalize([]string{val})
	case []string:
		return Normalize(val)
	case []any:
		raw := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			raw = append(raw, fmt.Sprint(item))
		}
		return Normalize(raw)
	default:
		return Normalize([]string{fmt.Sprint(val)})
	}
}

// FromFrontMatter reads the "tags" key from raw front-matter text without a
// YAML decoder, because "#" would start a YAML comment and drop the value.
//
// Both the inline form and the bullet-list form are accepted:
//
//	tags: #work,#home
//	tags: [work, "home"]
//	tags:
//	  - work
//	  - "#home"
func FromFrontMatter(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		key, value, ok := topLevelKey(line)
		if !ok || !strings.EqualFold(key, "tags") {
			continue
		}
		value = stripComment(value)
		if value != "" {
			return Normalize(inlineValues(value))
		}
		return Normalize(bulletValues(lines[i+1:]))
	}
	return nil
}

func topLevelKey(line string) (string, string, bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return "", "", false
	}
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), true
}

func inlineValues(value string) []string {
	if strings.HasPrefix(value, "[") && !strings.HasSuffix(value, "]") {
		// A flow sequence spanning several lines needs a real YAML decoder.
		return nil
	}
	if strings.HasPrefix(value, "[") {
		parts := strings.Split(value[1:len(value)-1], Separator)
		for i, p := range parts {
			parts[i] = strings.Trim(strings.TrimSpace(p), `"'`)
		}
		return parts
	}
	return []string{unquote(value)}
}

// bulletValues collects list items until the first line that is not one.
func bulletValues(lines []string) []string {
	var out []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		item, ok := bulletItem(trimmed)
		if !ok {
			break
		}
		out = append(out, unquote(stripComment(item)))
	}
	return out
}

// stripComment drops a YAML trailing comment: a "#" preceded by a blank,
// outside quotes. A "#" that opens a value, at the start or after a comma or
// "[", is a tag marker and stays unless a blank follows it.
func stripComment(s string) string {
	var quote byte
	last := byte(0) // last non-blank byte outside quotes
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
				last = c
			}
			continue
		case (c == '"' || c == '\'') && opensValue(last):
			quote = c
		case c == '#' && (i == 0 || blank(s[i-1])) && (!opensValue(last) || i+1 == len(s) || blank(s[i+1])):
			return strings.TrimRight(s[:i], " \t")
		}
		if !blank(c) {
			last = c
		}
	}
	return s
}

func blank(c byte) bool {
	return c == ' ' || c == '\t'
}

func opensValue(c byte) bool {
	return c == 0 || c == ',' || c == '['
}

func bulletItem(line string) (string, bool) {
	for _, marker := range []string{"-", "*", "+"} {
		if line == marker {
			return "", true
		}
		if rest, ok := strings.CutPrefix(line, marker+" "); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
