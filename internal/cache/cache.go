// Package cache holds the in-memory entity partitions the client renders from.
//
// Every partition is an immutable slice value: writes allocate a fresh slice
// and return a Snapshot that can restore the prior value. Writes happen under
// one mutex, and a Transact call groups several writes into one change event
// per kind.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// RollbackPolicy selects how a Snapshot restores its partition.
type RollbackPolicy int

const (
	// RollbackCAS restores only when the partition still holds the revision
	// the snapshotted write produced.
	RollbackCAS RollbackPolicy = iota
	// RollbackBlind restores unconditionally, overwriting later writes.
	RollbackBlind
)

func (p RollbackPolicy) String() string {
	if p == RollbackBlind {
		return "blind"
	}
	return "cas"
}

// View is a read of one partition.
type View[E any] struct {
	Items    []E
	Present  bool
	Loading  bool
	Stale    bool
	Err      error
	Revision uint64
}

// Config configures a Cache.
type Config struct {
	Clock func() time.Time
}

// Cache is the set of entity tables plus their change dispatcher.
type Cache struct {
	mu         sync.Mutex
	revision   uint64
	clock      func() time.Time
	dispatcher *Dispatcher
	tables     map[entities.Kind]partitionTable

	Courses     *Table[entities.Course]
	Assignments *Table[entities.Assignment]
	Documents   *Table[entities.Document]
	Notes       *Table[entities.Note]
	Storage     *Table[entities.StorageInfo]
}

type partitionTable interface {
	presentKeys() []Key
	updateState(key Key, update func(state *partitionState))
}

// New constructs an empty cache.
func New(cfg Config) *Cache {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	c := &Cache{
		clock:      clock,
		dispatcher: NewDispatcher(),
	}
	c.Courses = newTable[entities.Course](c, entities.KindCourse)
	c.Assignments = newTable[entities.Assignment](c, entities.KindAssignment)
	c.Documents = newTable[entities.Document](c, entities.KindDocument)
	c.Notes = newTable[entities.Note](c, entities.KindNote)
	c.Storage = newTable[entities.StorageInfo](c, entities.KindStorage)
	c.tables = map[entities.Kind]partitionTable{
		entities.KindCourse:     c.Courses,
		entities.KindAssignment: c.Assignments,
		entities.KindDocument:   c.Documents,
		entities.KindNote:       c.Notes,
		entities.KindStorage:    c.Storage,
	}
	return c
}

// Tx is an open write transaction. It is only valid inside Transact.
type Tx struct {
	cache   *Cache
	touched map[entities.Kind]map[Key]struct{}
}

func (tx *Tx) touch(key Key) {
	keys, ok := tx.touched[key.Kind]
	if !ok {
		keys = make(map[Key]struct{})
		tx.touched[key.Kind] = keys
	}
	keys[key] = struct{}{}
}

func (tx *Tx) nextRevision() uint64 {
	tx.cache.revision++
	return tx.cache.revision
}

// Transact runs fn under the cache lock. Subscribers receive one event per
// kind touched, after the lock is released.
func (c *Cache) Transact(fn func(tx *Tx)) {
	tx := &Tx{cache: c, touched: make(map[entities.Kind]map[Key]struct{})}
	revision := func() uint64 {
		c.mu.Lock()
		defer c.mu.Unlock()
		fn(tx)
		return c.revision
	}()
	c.publish(tx, revision)
}

func (c *Cache) publish(tx *Tx, revision uint64) {
	if len(tx.touched) == 0 {
		return
	}
	now := c.clock()
	for _, kind := range entities.Kinds() {
		touched, ok := tx.touched[kind]
		if !ok {
			continue
		}
		keys := make([]Key, 0, len(touched))
		for key := range touched {
			keys = append(keys, key)
		}
		sortKeys(keys)
		c.dispatcher.Publish(Event{Kind: kind, Keys: keys, Revision: revision, Timestamp: now})
	}
}

// Revision returns the latest revision issued by any write.
func (c *Cache) Revision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision
}

// MarkLoading flags a partition as fetching. Absent partitions stay absent.
func (c *Cache) MarkLoading(key Key) {
	c.updateState(key, func(state *partitionState) {
		state.loading = true
	})
}

// MarkFailed records a failed fetch and clears the loading flag. The items
// already cached are kept.
func (c *Cache) MarkFailed(key Key, err error) {
	c.updateState(key, func(state *partitionState) {
		state.loading = false
		state.err = err
	})
}

// MarkStale flags a partition for refetch.
func (c *Cache) MarkStale(key Key) {
	c.updateState(key, func(state *partitionState) {
		state.stale = true
	})
}

func (c *Cache) updateState(key Key, update func(state *partitionState)) {
	table, ok := c.tables[key.Kind]
	if !ok {
		return
	}
	c.Transact(func(tx *Tx) {
		table.updateState(key, update)
		tx.touch(key)
	})
}

// PresentKeys lists the partitions of kind that currently hold data.
func (c *Cache) PresentKeys(kind entities.Kind) []Key {
	table, ok := c.tables[kind]
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return table.presentKeys()
}

// Subscribe streams change events for kind until ctx ends or cleanup runs.
func (c *Cache) Subscribe(ctx context.Context, kind entities.Kind) (<-chan Event, func()) {
	return c.dispatcher.Subscribe(ctx, kind)
}

// Close ends every subscription.
func (c *Cache) Close() {
	c.dispatcher.Close()
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
}
