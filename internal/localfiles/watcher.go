// Package localfiles keeps the HasLocalFile flag of cached documents in step
// with the files present in the local documents directory.
package localfiles

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/unipilot/internal/cache"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

var (
	errMissingDir   = errors.New("localfiles: directory is required")
	errMissingCache = errors.New("localfiles: cache is required")
)

type Config struct {
	Dir    string
	Cache  *cache.Cache
	Logger *zap.Logger
}

// Watcher matches files by base name against the base name of each cached
// document's FilePath. It only patches the cache; nothing is sent to the
// backend.
type Watcher struct {
	dir     string
	cache   *cache.Cache
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu   sync.Mutex
	dirs map[string]struct{}
}

// New creates the directory when missing and starts watching it and every
// subdirectory.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errMissingDir
	}
	if cfg.Cache == nil {
		return nil, errMissingCache
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		dir:     cfg.Dir,
		cache:   cfg.Cache,
		logger:  logger,
		watcher: fsWatcher,
		dirs:    make(map[string]struct{}),
	}
	if _, err := w.scan(cfg.Dir); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

// Sync rescans the directory and sets HasLocalFile on every cached document.
// It returns the number of cached entries it changed.
func (w *Watcher) Sync() (int, error) {
	present, err := w.scan(w.dir)
	if err != nil {
		return 0, err
	}
	changed := w.apply(func(base string) (bool, bool) {
		_, ok := present[base]
		return ok, true
	})
	w.logger.Debug("local files synced", zap.Int("files", len(present)), zap.Int("changed", changed))
	return changed, nil
}

// Run applies filesystem events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("local file watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			present, err := w.scan(event.Name)
			if err != nil {
				w.logger.Warn("local directory scan failed", zap.String("path", event.Name), zap.Error(err))
				return
			}
			w.apply(func(base string) (bool, bool) {
				_, ok := present[base]
				return true, ok
			})
			return
		}
		w.setPresent(filepath.Base(event.Name), true)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if w.forgetDir(event.Name) {
			if _, err := w.Sync(); err != nil {
				w.logger.Warn("local files resync failed", zap.Error(err))
			}
			return
		}
		w.setPresent(filepath.Base(event.Name), false)
	}
}

func (w *Watcher) setPresent(base string, present bool) {
	changed := w.apply(func(candidate string) (bool, bool) {
		return present, candidate == base
	})
	if changed > 0 {
		w.logger.Debug("local file changed", zap.String("file", base), zap.Bool("present", present))
	}
}

// apply patches every cached document whose decision differs from its flag.
// decide returns the wanted flag and whether the document is affected.
func (w *Watcher) apply(decide func(base string) (bool, bool)) int {
	changed := 0
	w.cache.Transact(func(tx *cache.Tx) {
		table := w.cache.Documents
		for _, key := range table.KeysIn(tx) {
			table.PatchIn(tx, key,
				func(document entities.Document) bool {
					if document.FilePath == "" {
						return false
					}
					want, ok := decide(path.Base(document.FilePath))
					return ok && want != document.HasLocalFile
				},
				func(document entities.Document) entities.Document {
					document.HasLocalFile = !document.HasLocalFile
					changed++
					return document
				})
		}
	})
	return changed
}

// scan adds watches below root and returns the base names of the files in it.
func (w *Watcher) scan(root string) (map[string]struct{}, error) {
	present := make(map[string]struct{})
	err := filepath.WalkDir(root, func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return w.watchDir(name)
		}
		present[entry.Name()] = struct{}{}
		return nil
	})
	return present, err
}

func (w *Watcher) watchDir(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[name]; ok {
		return nil
	}
	if err := w.watcher.Add(name); err != nil {
		return err
	}
	w.dirs[name] = struct{}{}
	return nil
}

func (w *Watcher) forgetDir(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[name]; !ok {
		return false
	}
	delete(w.dirs, name)
	return true
}
