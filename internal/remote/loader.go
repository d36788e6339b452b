package remote

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/MarcoPoloResearchLab/unipilot/internal/cache"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// ErrNoService reports a fetch for a kind with no configured service.
var ErrNoService = errors.New("remote: no service for kind")

// Loader fills cache partitions from the remote services. Concurrent fetches
// of one key share a single remote call, and every resolution replaces the
// partition with Set.
type Loader struct {
	cache    *cache.Cache
	services Services
	flights  singleflight.Group
	logger   *zap.Logger
}

// NewLoader builds a Loader writing into c.
func NewLoader(c *cache.Cache, services Services, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cache: c, services: services, logger: logger}
}

// Fetch loads key, joining a fetch of the same key already in flight.
func (l *Loader) Fetch(ctx context.Context, key cache.Key) error {
	_, err, _ := l.flights.Do(key.String(), func() (any, error) {
		return nil, l.load(ctx, key)
	})
	return err
}

// Refresh loads key with a new remote call. Fetches started later join this
// call rather than one that began before the caller's write settled.
func (l *Loader) Refresh(ctx context.Context, key cache.Key) error {
	l.flights.Forget(key.String())
	return l.Fetch(ctx, key)
}

// FetchAll fetches keys in parallel and returns the first failure.
// Every key is attempted regardless of failures elsewhere.
func (l *Loader) FetchAll(ctx context.Context, keys []cache.Key) error {
	return l.each(ctx, keys, l.Fetch)
}

// RefreshAll refreshes keys in parallel.
func (l *Loader) RefreshAll(ctx context.Context, keys []cache.Key) error {
	return l.each(ctx, keys, l.Refresh)
}

func (l *Loader) each(ctx context.Context, keys []cache.Key, fetch func(context.Context, cache.Key) error) error {
	var group errgroup.Group
	for _, key := range keys {
		group.Go(func() error {
			return fetch(ctx, key)
		})
	}
	return group.Wait()
}

func (l *Loader) load(ctx context.Context, key cache.Key) error {
	l.cache.MarkLoading(key)

	var err error
	switch key.Kind {
	case entities.KindCourse:
		err = fill(ctx, l.cache.Courses, l.services.Courses, key)
	case entities.KindAssignment:
		err = fill(ctx, l.cache.Assignments, l.services.Assignments, key)
	case entities.KindDocument:
		err = fill(ctx, l.cache.Documents, l.services.Documents, key)
	case entities.KindNote:
		err = fill(ctx, l.cache.Notes, l.services.Notes, key)
	case entities.KindStorage:
		err = l.fillStorage(ctx, key)
	default:
		err = fmt.Errorf("%w: %s", ErrNoService, key.Kind)
	}

	if err != nil {
		l.cache.MarkFailed(key, err)
		l.logger.Error("partition fetch failed",
			zap.String("operation", "remote.fetch"),
			zap.String("partition", key.String()),
			zap.Error(err))
		return err
	}
	l.logger.Debug("partition fetched", zap.String("partition", key.String()))
	return nil
}

func fill[E any](ctx context.Context, table *cache.Table[E], service Service[E], key cache.Key) error {
	if service == nil {
		return fmt.Errorf("%w: %s", ErrNoService, key.Kind)
	}
	items, err := service.List(ctx, key.Filter())
	if err != nil {
		return err
	}
	table.Set(key, items)
	return nil
}

func (l *Loader) fillStorage(ctx context.Context, key cache.Key) error {
	if l.services.Storage == nil {
		return fmt.Errorf("%w: %s", ErrNoService, key.Kind)
	}
	info, err := l.services.Storage.Storage(ctx)
	if err != nil {
		return err
	}
	l.cache.Storage.Set(key, []entities.StorageInfo{info})
	return nil
}
