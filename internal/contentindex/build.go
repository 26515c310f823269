package contentindex

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/wikipress/internal/apperr"
)

// DefaultDocumentExt is the canonical document extension.
const DefaultDocumentExt = ".md"

// DefaultAssetExts lists the asset extensions recognised when none are configured.
var DefaultAssetExts = []string{"png", "jpg", "jpeg", "svg", "apkg", "gif", "webp", "avif", "pdf"}

// Options controls what Build collects.
type Options struct {
	// DocumentExt is matched as an exact, case-sensitive filename suffix.
	DocumentExt string
	// AssetExts are extensions with or without the leading dot.
	AssetExts []string
	// Exclude holds doublestar patterns matched against root-relative slash
	// paths. A matching directory is not descended into.
	Exclude []string
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.DocumentExt == "" {
		o.DocumentExt = DefaultDocumentExt
	}
	if !strings.HasPrefix(o.DocumentExt, ".") {
		o.DocumentExt = "." + o.DocumentExt
	}
	if len(o.AssetExts) == 0 {
		o.AssetExts = DefaultAssetExts
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Build walks root recursively and returns the document and asset tables.
//
// Directories are recorded relative to root with a leading and trailing
// slash ("/notes/", or "/" for files at the root) and forward slashes on
// every platform. When two files share a key the one visited later in
// lexical walk order wins.
//
// A root that is missing, not a directory, or cannot be traversed yields an
// error wrapping apperr.ErrConfiguration.
func Build(root string, opts Options) (*Index, error) {
	opts = opts.withDefaults()

	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("contentindex: invalid exclude pattern %q: %w", p, apperr.ErrConfiguration)
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("contentindex: resolve root: %w: %w", apperr.ErrConfiguration, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("contentindex: stat root: %w: %w", apperr.ErrConfiguration, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("contentindex: root is not a directory: %s: %w", abs, apperr.ErrConfiguration)
	}

	assetExts := make(map[string]struct{}, len(opts.AssetExts))
	for _, ext := range opts.AssetExts {
		assetExts[strings.TrimPrefix(ext, ".")] = struct{}{}
	}

	idx := &Index{
		documents: make(map[string]string),
		assets:    make(map[string]string),
	}
	logger := opts.Logger

	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return skipUnreadable(logger, abs, p, d, walkErr)
		}
		if p == abs {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if excluded(opts.Exclude, rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		dir := dirKey(path.Dir(rel))

		if stem, ok := strings.CutSuffix(name, opts.DocumentExt); ok {
			if stem != "" {
				record(logger, "document", idx.documents, stem, dir)
			}
			return nil
		}
		if _, ok := assetExts[strings.TrimPrefix(path.Ext(name), ".")]; ok && path.Ext(name) != "" {
			record(logger, "asset", idx.assets, name, dir)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("contentindex: walk %s: %w: %w", abs, apperr.ErrConfiguration, err)
	}

	logger.Debug("contentindex: built",
		slog.String("root", abs),
		slog.Int("documents", len(idx.documents)),
		slog.Int("assets", len(idx.assets)))

	return idx, nil
}

func record(logger *slog.Logger, kind string, table map[string]string, key, dir string) {
	if prev, dup := table[key]; dup && prev != dir {
		logger.Debug("contentindex: duplicate name, last one wins",
			slog.String("kind", kind),
			slog.String("name", key),
			slog.String("previous", prev),
			slog.String("dir", dir))
	}
	table[key] = dir
}

func dirKey(relDir string) string {
	if relDir == "." || relDir == "" {
		return "/"
	}
	return "/" + relDir + "/"
}

func excluded(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// skipUnreadable keeps one unreadable entry below root from failing the
// whole build. Errors on root itself are returned.
func skipUnreadable(logger *slog.Logger, root, p string, d fs.DirEntry, err error) error {
	if p == root {
		return err
	}
	logger.Warn("contentindex: skipping unreadable path",
		slog.String("path", p),
		slog.String("error", err.Error()))
	if d != nil && d.IsDir() {
		return filepath.SkipDir
	}
	return nil
}
