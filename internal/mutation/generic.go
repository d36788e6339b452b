package mutation

import (
	"context"

	"github.com/MarcoPoloResearchLab/unipilot/internal/cache"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/invalidation"
	"github.com/MarcoPoloResearchLab/unipilot/internal/remote"
)

func matchID[E entities.Identified](id int64) func(E) bool {
	return func(entity E) bool { return entity.EntityID() == id }
}

func replaceWith[E any](replacement E) func(E) E {
	return func(E) E { return replacement }
}

// patchEverywhere applies transform to the entity in every partition holding it.
func patchEverywhere[E entities.Identified](tx *cache.Tx, table *cache.Table[E], id int64, transform func(E) E) []cache.Undo {
	var undos []cache.Undo
	for _, key := range table.KeysIn(tx) {
		if snapshot := table.PatchIn(tx, key, matchID[E](id), transform); snapshot.Changed() {
			undos = append(undos, snapshot)
		}
	}
	return undos
}

// removeEverywhere drops the entity from every partition holding it.
func removeEverywhere[E entities.Identified](tx *cache.Tx, table *cache.Table[E], id int64) []cache.Undo {
	var undos []cache.Undo
	for _, key := range table.KeysIn(tx) {
		if snapshot := table.RemoveIn(tx, key, matchID[E](id)); snapshot.Changed() {
			undos = append(undos, snapshot)
		}
	}
	return undos
}

// lookup finds the cached copy of an entity, falling back to the given value.
func lookup[E entities.Identified](table *cache.Table[E], entity E) E {
	for _, key := range table.Keys() {
		for _, item := range table.Get(key).Items {
			if item.EntityID() == entity.EntityID() {
				return item
			}
		}
	}
	return entity
}

// entityKind groups what the generic create, update, and delete paths need
// to know about one kind.
type entityKind[E entities.Identified] struct {
	kind    entities.Kind
	table   *cache.Table[E]
	service remote.Service[E]
	withID  func(E, int64) E
}

func create[E entities.Identified](ctx context.Context, c *Coordinator, k entityKind[E], entity E) *Handle[E] {
	if k.service == nil {
		return failed(c, k.kind, OpCreate, entity, 0, errMissingServices)
	}
	temp := c.tempID()
	provisional := k.withID(entity, temp)
	key := cache.KindKey(k.kind)
	return run(ctx, c, plan[E]{
		kind:       k.kind,
		operation:  OpCreate,
		entityID:   temp,
		optimistic: provisional,
		apply: func(tx *cache.Tx) []cache.Undo {
			return []cache.Undo{k.table.PrependIn(tx, key, provisional)}
		},
		call: func(ctx context.Context) (E, error) {
			return k.service.Create(ctx, k.withID(entity, 0))
		},
		confirm: func(tx *cache.Tx, echo E) {
			patchEverywhere(tx, k.table, temp, replaceWith(echo))
		},
	})
}

func update[E entities.Identified](ctx context.Context, c *Coordinator, k entityKind[E], entity E, patch entities.Patch[E]) *Handle[E] {
	id := entity.EntityID()
	if k.service == nil {
		return failed(c, k.kind, OpUpdate, entity, id, errMissingServices)
	}
	if id <= 0 {
		return failed(c, k.kind, OpUpdate, entity, id, ErrProvisional)
	}
	return run(ctx, c, plan[E]{
		kind:       k.kind,
		operation:  OpUpdate,
		entityID:   id,
		optimistic: patch.Apply(entity),
		apply: func(tx *cache.Tx) []cache.Undo {
			return patchEverywhere(tx, k.table, id, patch.Apply)
		},
		call: func(ctx context.Context) (E, error) {
			return patch.Apply(entity), k.service.Update(ctx, entity, patch.Column(), patch.Value())
		},
	})
}

func remove[E entities.Identified](ctx context.Context, c *Coordinator, k entityKind[E], entity E, ref invalidation.Ref, scope invalidation.Scope) *Handle[E] {
	id := entity.EntityID()
	if k.service == nil {
		return failed(c, k.kind, OpDelete, entity, id, errMissingServices)
	}
	if id <= 0 {
		return failed(c, k.kind, OpDelete, entity, id, ErrProvisional)
	}
	return run(ctx, c, plan[E]{
		kind:       k.kind,
		operation:  OpDelete,
		entityID:   id,
		optimistic: entity,
		apply: func(tx *cache.Tx) []cache.Undo {
			undos := removeEverywhere(tx, k.table, id)
			return append(undos, c.graph.CascadeIn(tx, k.kind, ref)...)
		},
		call: func(ctx context.Context) (E, error) {
			return entity, k.service.Delete(ctx, entity)
		},
		scope: scope,
	})
}
