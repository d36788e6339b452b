// Package mutation applies create, update, and delete actions to the entity
// cache optimistically and settles them against the remote service.
//
// Each mutation writes to the cache on the caller's goroutine before the
// remote call starts, so the UI sees the change immediately. The remote call
// and its settle run on their own goroutine. A failed call restores every
// partition the mutation touched unless a later write moved the partition, in
// which case the refetch that follows every settle corrects it.
package mutation

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/unipilot/internal/cache"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/invalidation"
	"github.com/MarcoPoloResearchLab/unipilot/internal/remote"
)

// Config configures a Coordinator.
type Config struct {
	Cache    *cache.Cache
	Graph    *invalidation.Graph
	Services remote.Services
	// Loader refetches reconciled partitions. Without it partitions are only
	// marked stale.
	Loader *remote.Loader
	Policy cache.RollbackPolicy
	Logger *zap.Logger
	// IDs generates mutation correlation identifiers. Defaults to UUIDv7.
	IDs func() string
}

// Coordinator runs mutations.
type Coordinator struct {
	cache    *cache.Cache
	graph    *invalidation.Graph
	services remote.Services
	loader   *remote.Loader
	policy   cache.RollbackPolicy
	logger   *zap.Logger
	ids      func() string

	tempIDs  atomic.Int64
	inflight sync.WaitGroup
}

// New validates cfg and builds a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Cache == nil {
		return nil, errMissingCache
	}
	if cfg.Graph == nil {
		return nil, errMissingGraph
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ids := cfg.IDs
	if ids == nil {
		ids = newMutationID
	}
	return &Coordinator{
		cache:    cfg.Cache,
		graph:    cfg.Graph,
		services: cfg.Services,
		loader:   cfg.Loader,
		policy:   cfg.Policy,
		logger:   logger,
		ids:      ids,
	}, nil
}

func newMutationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Drain waits until every mutation started so far has settled, or ctx ends.
func (c *Coordinator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tempID returns a provisional negative identifier for an entity the server
// has not created yet.
func (c *Coordinator) tempID() int64 {
	return -c.tempIDs.Add(1)
}

// plan describes one mutation.
type plan[E any] struct {
	kind       entities.Kind
	operation  Operation
	entityID   int64
	optimistic E
	// apply writes the optimistic state and returns the undo records.
	apply func(tx *cache.Tx) []cache.Undo
	// call performs the remote request.
	call func(ctx context.Context) (E, error)
	// confirm replaces provisional state with the server echo.
	confirm func(tx *cache.Tx, echo E)
	scope invalidation.Scope
}

func run[E any](ctx context.Context, c *Coordinator, p plan[E]) *Handle[E] {
	id := c.ids()
	handle := newHandle(id, p.kind, p.operation, p.optimistic)

	var undos []cache.Undo
	c.cache.Transact(func(tx *cache.Tx) {
		undos = p.apply(tx)
	})

	c.logger.Debug("mutation applied",
		zap.String("mutation_id", id),
		zap.String("kind", string(p.kind)),
		zap.String("operation", string(p.operation)),
		zap.Int64("entity_id", p.entityID),
		zap.Int("partitions", len(undos)))

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		settle(ctx, c, handle, p, undos)
	}()
	return handle
}

func settle[E any](ctx context.Context, c *Coordinator, handle *Handle[E], p plan[E], undos []cache.Undo) {
	echo, err := p.call(ctx)
	if err != nil {
		rolledBack := c.rollback(handle.id, p.kind, undos)
		c.logError(handle.id, p.kind, p.operation, "remote_failed", err, zap.Int64("entity_id", p.entityID), zap.Bool("rolled_back", rolledBack))
		mutationErr := &MutationError{
			ID:         handle.id,
			Kind:       p.kind,
			Operation:  p.operation,
			EntityID:   p.entityID,
			RolledBack: rolledBack,
			Err:        err,
		}
		c.reconcile(ctx, handle.id, p.kind, p.operation, p.scope)
		handle.settle(Failed, p.optimistic, mutationErr)
		return
	}

	result := p.optimistic
	if p.confirm != nil {
		c.cache.Transact(func(tx *cache.Tx) {
			p.confirm(tx, echo)
		})
		result = echo
	}
	c.reconcile(ctx, handle.id, p.kind, p.operation, p.scope)
	c.logger.Debug("mutation settled",
		zap.String("mutation_id", handle.id),
		zap.String("kind", string(p.kind)),
		zap.String("operation", string(p.operation)))
	handle.settle(Succeeded, result, nil)
}

// rollback restores undos newest first. It reports whether every partition
// was restored.
func (c *Coordinator) rollback(mutationID string, kind entities.Kind, undos []cache.Undo) bool {
	restored := true
	c.cache.Transact(func(tx *cache.Tx) {
		for i := len(undos) - 1; i >= 0; i-- {
			if undos[i].Restore(tx, c.policy) {
				continue
			}
			restored = false
			c.logger.Warn("rollback skipped for moved partition",
				zap.String("mutation_id", mutationID),
				zap.String("kind", string(kind)),
				zap.String("partition", undos[i].Key().String()),
				zap.Uint64("revision", undos[i].Revision()))
		}
	})
	return restored
}

// reconcile refetches the partitions the settled mutation may have left
// out of date. Deletes also refresh the aggregates their cascade changed.
func (c *Coordinator) reconcile(ctx context.Context, mutationID string, kind entities.Kind, operation Operation, scope invalidation.Scope) {
	var keys []cache.Key
	if operation == OpDelete {
		keys = c.graph.ReconcileDelete(kind, scope)
	} else {
		keys = c.graph.Reconcile(kind, scope)
	}
	if c.loader == nil || len(keys) == 0 {
		return
	}
	if err := c.loader.RefreshAll(context.WithoutCancel(ctx), keys); err != nil {
		c.logError(mutationID, kind, operation, "reconcile_failed", err, zap.Int("partitions", len(keys)))
	}
}

func (c *Coordinator) logError(mutationID string, kind entities.Kind, operation Operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("mutation_id", mutationID),
		zap.String("kind", string(kind)),
		zap.String("operation", string(operation)),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	c.logger.Error("mutation error", attrs...)
}

// failed returns a handle that is already settled with err. Nothing was
// written to the cache.
func failed[E any](c *Coordinator, kind entities.Kind, operation Operation, entity E, entityID int64, err error) *Handle[E] {
	id := c.ids()
	c.logError(id, kind, operation, "rejected", err, zap.Int64("entity_id", entityID))
	handle := newHandle(id, kind, operation, entity)
	handle.settle(Failed, entity, &MutationError{
		ID:         id,
		Kind:       kind,
		Operation:  operation,
		EntityID:   entityID,
		RolledBack: true,
		Err:        err,
	})
	return handle
}
