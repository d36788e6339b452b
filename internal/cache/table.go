package cache

import (
	"reflect"
	"slices"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

type partitionState struct {
	present  bool
	loading  bool
	stale    bool
	err      error
	revision uint64
}

type partition[E any] struct {
	partitionState
	items []E
}

// Table holds the partitions of one entity kind.
type Table[E any] struct {
	cache      *Cache
	kind       entities.Kind
	partitions map[Key]*partition[E]
}

func newTable[E any](c *Cache, kind entities.Kind) *Table[E] {
	return &Table[E]{cache: c, kind: kind, partitions: make(map[Key]*partition[E])}
}

// Kind returns the entity kind the table holds.
func (t *Table[E]) Kind() entities.Kind {
	return t.kind
}

// Get reads a partition. The returned items are a copy.
func (t *Table[E]) Get(key Key) View[E] {
	t.cache.mu.Lock()
	defer t.cache.mu.Unlock()
	p, ok := t.partitions[key]
	if !ok {
		return View[E]{}
	}
	return View[E]{
		Items:    slices.Clone(p.items),
		Present:  p.present,
		Loading:  p.loading,
		Stale:    p.stale,
		Err:      p.err,
		Revision: p.revision,
	}
}

// Keys lists the partitions that currently hold data.
func (t *Table[E]) Keys() []Key {
	t.cache.mu.Lock()
	defer t.cache.mu.Unlock()
	return t.presentKeys()
}

// KeysIn is Keys inside a transaction.
func (t *Table[E]) KeysIn(_ *Tx) []Key {
	return t.presentKeys()
}

// ListIn reads a partition inside a transaction.
func (t *Table[E]) ListIn(_ *Tx, key Key) ([]E, bool) {
	p, ok := t.partitions[key]
	if !ok || !p.present {
		return nil, false
	}
	return slices.Clone(p.items), true
}

// Set replaces a partition with a fetched collection and clears its flags.
func (t *Table[E]) Set(key Key, items []E) Snapshot[E] {
	var snapshot Snapshot[E]
	t.cache.Transact(func(tx *Tx) {
		snapshot = t.SetIn(tx, key, items)
	})
	return snapshot
}

// SetIn is Set inside a transaction. Setting the collection a partition
// already holds keeps its revision.
func (t *Table[E]) SetIn(tx *Tx, key Key, items []E) Snapshot[E] {
	p := t.ensure(key)
	snapshot := t.snapshot(key, p)

	next := make([]E, len(items))
	copy(next, items)
	same := p.present && reflect.DeepEqual(p.items, next)
	flagged := !p.present || p.loading || p.stale || p.err != nil

	p.loading, p.stale, p.err = false, false, nil
	if !same {
		t.commit(tx, key, p, next, true, &snapshot)
	}
	if flagged {
		tx.touch(key)
	}
	snapshot.revision = p.revision
	return snapshot
}

// Patch applies transform to every element matching match.
func (t *Table[E]) Patch(key Key, match func(E) bool, transform func(E) E) Snapshot[E] {
	var snapshot Snapshot[E]
	t.cache.Transact(func(tx *Tx) {
		snapshot = t.PatchIn(tx, key, match, transform)
	})
	return snapshot
}

// PatchIn is Patch inside a transaction. Absent partitions are left absent.
func (t *Table[E]) PatchIn(tx *Tx, key Key, match func(E) bool, transform func(E) E) Snapshot[E] {
	p, ok := t.partitions[key]
	if !ok || !p.present {
		return Snapshot[E]{table: t, key: key}
	}
	snapshot := t.snapshot(key, p)
	next := make([]E, len(p.items))
	hit := false
	for i, item := range p.items {
		if match(item) {
			next[i] = transform(item)
			hit = true
			continue
		}
		next[i] = item
	}
	if hit {
		t.commit(tx, key, p, next, true, &snapshot)
	}
	snapshot.revision = p.revision
	return snapshot
}

// Remove drops every element matching match.
func (t *Table[E]) Remove(key Key, match func(E) bool) Snapshot[E] {
	var snapshot Snapshot[E]
	t.cache.Transact(func(tx *Tx) {
		snapshot = t.RemoveIn(tx, key, match)
	})
	return snapshot
}

// RemoveIn is Remove inside a transaction.
func (t *Table[E]) RemoveIn(tx *Tx, key Key, match func(E) bool) Snapshot[E] {
	p, ok := t.partitions[key]
	if !ok || !p.present {
		return Snapshot[E]{table: t, key: key}
	}
	snapshot := t.snapshot(key, p)
	next := make([]E, 0, len(p.items))
	for _, item := range p.items {
		if !match(item) {
			next = append(next, item)
		}
	}
	if len(next) != len(p.items) {
		t.commit(tx, key, p, next, true, &snapshot)
	}
	snapshot.revision = p.revision
	return snapshot
}

// Prepend inserts item at the front of a partition, creating the partition
// when absent.
func (t *Table[E]) Prepend(key Key, item E) Snapshot[E] {
	var snapshot Snapshot[E]
	t.cache.Transact(func(tx *Tx) {
		snapshot = t.PrependIn(tx, key, item)
	})
	return snapshot
}

// PrependIn is Prepend inside a transaction.
func (t *Table[E]) PrependIn(tx *Tx, key Key, item E) Snapshot[E] {
	p := t.ensure(key)
	snapshot := t.snapshot(key, p)
	next := make([]E, 0, len(p.items)+1)
	next = append(next, item)
	next = append(next, p.items...)
	t.commit(tx, key, p, next, true, &snapshot)
	snapshot.revision = p.revision
	return snapshot
}

// Drop empties a partition and marks it absent.
func (t *Table[E]) Drop(key Key) Snapshot[E] {
	var snapshot Snapshot[E]
	t.cache.Transact(func(tx *Tx) {
		snapshot = t.DropIn(tx, key)
	})
	return snapshot
}

// DropIn is Drop inside a transaction.
func (t *Table[E]) DropIn(tx *Tx, key Key) Snapshot[E] {
	p, ok := t.partitions[key]
	if !ok || !p.present {
		return Snapshot[E]{table: t, key: key}
	}
	snapshot := t.snapshot(key, p)
	t.commit(tx, key, p, nil, false, &snapshot)
	snapshot.revision = p.revision
	return snapshot
}

func (t *Table[E]) ensure(key Key) *partition[E] {
	p, ok := t.partitions[key]
	if !ok {
		p = &partition[E]{}
		t.partitions[key] = p
	}
	return p
}

func (t *Table[E]) snapshot(key Key, p *partition[E]) Snapshot[E] {
	return Snapshot[E]{
		table:         t,
		key:           key,
		prior:         p.items,
		priorPresent:  p.present,
		priorRevision: p.revision,
	}
}

func (t *Table[E]) commit(tx *Tx, key Key, p *partition[E], items []E, present bool, snapshot *Snapshot[E]) {
	p.items = items
	p.present = present
	p.revision = tx.nextRevision()
	snapshot.changed = true
	tx.touch(key)
}

func (t *Table[E]) presentKeys() []Key {
	keys := make([]Key, 0, len(t.partitions))
	for key, p := range t.partitions {
		if p.present {
			keys = append(keys, key)
		}
	}
	sortKeys(keys)
	return keys
}

func (t *Table[E]) updateState(key Key, update func(state *partitionState)) {
	update(&t.ensure(key).partitionState)
}
