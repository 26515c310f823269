// Package contentindex builds the lookup tables that wiki-link resolution runs against.
//
// An Index maps document names (file stems) and asset filenames to the
// directory that contains them. It is built once per build by Build and is
// never mutated afterwards, so a single *Index may be shared by any number of
// concurrent readers.
package contentindex

import (
	"maps"
	"slices"
)

// Entry is one row of an index table.
type Entry struct {
	Name string `json:"name"`
	Dir  string `json:"dir"`
}

// Path returns the root-relative path of the entry without the document
// extension for documents.
func (e Entry) Path() string {
	return e.Dir + e.Name
}

// Index is an immutable snapshot of the content tree.
// The zero value and a nil *Index are both valid empty indexes.
type Index struct {
	documents map[string]string
	assets    map[string]string
}

// New returns an Index over copies of the given tables.
// Keys are document stems and asset filenames; values are directory paths
// of the form "/dir/sub/" ("/" for the root).
func New(documents, assets map[string]string) *Index {
	idx := &Index{
		documents: make(map[string]string, len(documents)),
		assets:    make(map[string]string, len(assets)),
	}
	maps.Copy(idx.documents, documents)
	maps.Copy(idx.assets, assets)
	return idx
}

// Document returns the directory holding the document with the given stem.
func (i *Index) Document(name string) (string, bool) {
	if i == nil {
		return "", false
	}
	dir, ok := i.documents[name]
	return dir, ok
}

// Asset returns the directory holding the asset with the given filename.
func (i *Index) Asset(filename string) (string, bool) {
	if i == nil {
		return "", false
	}
	dir, ok := i.assets[filename]
	return dir, ok
}

// DocumentCount returns the number of indexed document names.
func (i *Index) DocumentCount() int {
	if i == nil {
		return 0
	}
	return len(i.documents)
}

// AssetCount returns the number of indexed asset filenames.
func (i *Index) AssetCount() int {
	if i == nil {
		return 0
	}
	return len(i.assets)
}

// Documents returns the document table sorted by name.
func (i *Index) Documents() []Entry {
	if i == nil {
		return nil
	}
	return entries(i.documents)
}

// Assets returns the asset table sorted by filename.
func (i *Index) Assets() []Entry {
	if i == nil {
		return nil
	}
	return entries(i.assets)
}

func entries(m map[string]string) []Entry {
	out := make([]Entry, 0, len(m))
	for _, name := range slices.Sorted(maps.Keys(m)) {
		out = append(out, Entry{Name: name, Dir: m[name]})
	}
	return out
}
