// Package workspace assembles the entity cache, the loader, the invalidation
// graph, and the mutation coordinator behind one handle for front ends.
package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MarcoPoloResearchLab/unipilot/internal/cache"
	"github.com/MarcoPoloResearchLab/unipilot/internal/deadline"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/invalidation"
	"github.com/MarcoPoloResearchLab/unipilot/internal/localfiles"
	"github.com/MarcoPoloResearchLab/unipilot/internal/mutation"
	"github.com/MarcoPoloResearchLab/unipilot/internal/remote"
	"github.com/MarcoPoloResearchLab/unipilot/internal/selectors"
)

var errClosed = errors.New("workspace: closed")

type Config struct {
	Services   remote.Services
	Classifier *deadline.Classifier
	Policy     cache.RollbackPolicy
	// DocumentsDir enables the local copy watcher when set.
	DocumentsDir string
	Clock        func() time.Time
	Logger       *zap.Logger
}

// Workspace is the client-side view of one backend.
type Workspace struct {
	cache      *cache.Cache
	graph      *invalidation.Graph
	loader     *remote.Loader
	mutations  *mutation.Coordinator
	classifier *deadline.Classifier
	watcher    *localfiles.Watcher
	logger     *zap.Logger

	stopWatch context.CancelFunc
	watching  sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

// New wires the workspace. Nothing is fetched until Init.
func New(cfg Config) (*Workspace, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = deadline.New(deadline.Config{Clock: cfg.Clock, Logger: logger})
	}

	c := cache.New(cache.Config{Clock: cfg.Clock})
	graph := invalidation.New(c, logger)
	loader := remote.NewLoader(c, cfg.Services, logger)
	mutations, err := mutation.New(mutation.Config{
		Cache:    c,
		Graph:    graph,
		Services: cfg.Services,
		Loader:   loader,
		Policy:   cfg.Policy,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	w := &Workspace{
		cache:      c,
		graph:      graph,
		loader:     loader,
		mutations:  mutations,
		classifier: classifier,
		logger:     logger,
		closed:     make(chan struct{}),
	}
	if cfg.DocumentsDir != "" {
		watcher, err := localfiles.New(localfiles.Config{Dir: cfg.DocumentsDir, Cache: c, Logger: logger})
		if err != nil {
			return nil, err
		}
		w.watcher = watcher
	}
	return w, nil
}

// baseKeys are the partitions loaded by Init.
func baseKeys() []cache.Key {
	return []cache.Key{
		cache.KindKey(entities.KindCourse),
		cache.KindKey(entities.KindAssignment),
		cache.KindKey(entities.KindDocument),
		cache.KindKey(entities.KindNote),
		cache.KindKey(entities.KindStorage),
	}
}

// Init loads the base partitions in parallel and starts the local copy
// watcher. A failed partition is recorded on its view; Init returns the
// first failure.
func (w *Workspace) Init(ctx context.Context) error {
	select {
	case <-w.closed:
		return errClosed
	default:
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, key := range baseKeys() {
		group.Go(func() error {
			return w.loader.Fetch(groupCtx, key)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if w.watcher != nil && w.stopWatch == nil {
		if err := w.startWatcher(ctx); err != nil {
			return err
		}
	}
	w.logger.Info("workspace loaded", zap.Uint64("revision", w.cache.Revision()))
	return nil
}

// startWatcher follows filesystem events and resyncs the local copy flags
// after every document change, since refetched partitions carry the
// backend's flag.
func (w *Workspace) startWatcher(ctx context.Context) error {
	if _, err := w.watcher.Sync(); err != nil {
		return err
	}
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.stopWatch = cancel
	events, unsubscribe := w.cache.Subscribe(watchCtx, entities.KindDocument)

	w.watching.Add(2)
	go func() {
		defer w.watching.Done()
		if err := w.watcher.Run(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("local copy watcher stopped", zap.Error(err))
		}
	}()
	go func() {
		defer w.watching.Done()
		defer unsubscribe()
		for range events {
			if _, err := w.watcher.Sync(); err != nil {
				w.logger.Warn("local copy resync failed", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close waits for in-flight mutations to settle, stops the watcher, and
// closes every subscription.
func (w *Workspace) Close(ctx context.Context) error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		err = w.mutations.Drain(ctx)
		if w.stopWatch != nil {
			w.stopWatch()
			w.watching.Wait()
		}
		if w.watcher != nil {
			if closeErr := w.watcher.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
		w.cache.Close()
	})
	return err
}

// Mutations returns the coordinator used for every write.
func (w *Workspace) Mutations() *mutation.Coordinator {
	return w.mutations
}

// Cache exposes the underlying cache for direct reads.
func (w *Workspace) Cache() *cache.Cache {
	return w.cache
}

func (w *Workspace) Classifier() *deadline.Classifier {
	return w.classifier
}

// Subscribe streams change events for kind until ctx ends.
func (w *Workspace) Subscribe(ctx context.Context, kind entities.Kind) (<-chan cache.Event, func()) {
	return w.cache.Subscribe(ctx, kind)
}

// Refresh refetches keys, bypassing in-flight fetches.
func (w *Workspace) Refresh(ctx context.Context, keys ...cache.Key) error {
	if len(keys) == 0 {
		keys = baseKeys()
	}
	return w.loader.RefreshAll(ctx, keys)
}

func (w *Workspace) Courses() cache.View[entities.Course] {
	return w.cache.Courses.Get(cache.KindKey(entities.KindCourse))
}

func (w *Workspace) Assignments() cache.View[entities.Assignment] {
	return w.cache.Assignments.Get(cache.KindKey(entities.KindAssignment))
}

func (w *Workspace) Notes() cache.View[entities.Note] {
	return w.cache.Notes.Get(cache.KindKey(entities.KindNote))
}

// Documents returns the partition for one assignment and type, fetching it
// on first use.
func (w *Workspace) Documents(ctx context.Context, assignmentID int64, documentType entities.DocumentType) (cache.View[entities.Document], error) {
	key := cache.DocumentsKey(assignmentID, documentType)
	if view := w.cache.Documents.Get(key); view.Present {
		return view, nil
	}
	if err := w.loader.Fetch(ctx, key); err != nil {
		return w.cache.Documents.Get(key), err
	}
	return w.cache.Documents.Get(key), nil
}

// Storage returns the cached quota aggregate, zero when not loaded.
func (w *Workspace) Storage() entities.StorageInfo {
	items := w.cache.Storage.Get(cache.KindKey(entities.KindStorage)).Items
	if len(items) == 0 {
		return entities.StorageInfo{}
	}
	return items[0]
}

// Agenda derives the dashboard summary from the cached partitions.
func (w *Workspace) Agenda() selectors.Agenda {
	return selectors.BuildAgenda(w.classifier, w.Courses().Items, w.Assignments().Items, w.Storage())
}

// FindAssignment returns the cached assignment with id.
func (w *Workspace) FindAssignment(id int64) (entities.Assignment, bool) {
	for _, assignment := range w.Assignments().Items {
		if assignment.ID == id {
			return assignment, true
		}
	}
	return entities.Assignment{}, false
}
