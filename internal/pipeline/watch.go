package pipeline

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/wikipress/internal/contentindex"
)

// DebounceInterval is how long the watcher waits after the last change
// before rebuilding.
const DebounceInterval = 200 * time.Millisecond

// BuildCallback receives the outcome of every watcher-driven build.
type BuildCallback func(*Summary, error)

// Watch runs an initial build, then watches the source tree and rebuilds
// the whole snapshot after each burst of relevant changes, until ctx is
// cancelled. cb, if non-nil, is called after every build.
//
// New directories are added to the watch list as they appear. Changes
// under the output tree are ignored so that an output directory nested in
// the source tree does not retrigger builds.
func (b *Builder) Watch(ctx context.Context, cb BuildCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := b.source.Root()
	if err := b.addDirsRecursive(w, root); err != nil {
		return err
	}
	b.logger.Info("watcher: started", slog.String("root", root))

	rebuild := func() {
		s, err := b.Build(ctx)
		if err != nil {
			b.logger.Error("watcher: build failed", slog.String("error", err.Error()))
		}
		if cb != nil {
			cb(s, err)
		}
	}
	rebuild()

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(DebounceInterval)
			timerCh = timer.C
		} else {
			timer.Reset(DebounceInterval)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			b.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			rebuild()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if b.ignored(ev.Name) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := b.addDirsRecursive(w, ev.Name); addErr != nil {
						b.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					schedule()
					continue
				}
			}

			// Removing or renaming a directory surfaces as a single event on
			// a name without an extension.
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 || b.relevant(ev.Name) {
				b.logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			b.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant reports whether a change to name can alter the index or output.
func (b *Builder) relevant(name string) bool {
	if strings.HasSuffix(name, b.indexOpts.DocumentExt) {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	exts := b.indexOpts.AssetExts
	if len(exts) == 0 {
		exts = contentindex.DefaultAssetExts
	}
	for _, e := range exts {
		if strings.TrimPrefix(e, ".") == ext {
			return true
		}
	}
	return false
}

func (b *Builder) ignored(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".wikipress-tmp-") {
		return true
	}
	if b.output == nil {
		return false
	}
	out := b.output.Root()
	return name == out || strings.HasPrefix(name, out+string(os.PathSeparator))
}

func (b *Builder) addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if b.ignored(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
