// Package storage defines the content-tree file-system abstraction.
package storage

import "github.com/starford/wikipress/internal/models"

// Provider is the interface for content-tree file operations. All paths are
// slash-separated and relative to the provider root.
type Provider interface {
	// List returns metadata for every document under dir.
	List(dir string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Root returns the absolute root directory.
	Root() string
}
