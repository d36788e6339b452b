// Package remotetest provides in-memory remote services for tests.
package remotetest

import (
	"context"
	"slices"
	"sync"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// Call records one service invocation.
type Call struct {
	Op     string
	ID     int64
	Field  string
	Value  string
	Filter entities.Filter
}

// Hook runs at the start of every call. A non-nil error fails the call.
// Hooks may block to control settle order.
type Hook func(ctx context.Context, call Call) error

// Fake is an in-memory Service. Filters are applied with Match when set.
type Fake[E entities.Identified] struct {
	mu     sync.Mutex
	items  []E
	nextID int64
	calls  []Call

	// WithID returns entity carrying id; used by Create.
	WithID func(entity E, id int64) E
	// Apply applies a single-column update; nil leaves stored items unchanged.
	Apply func(entity E, field, value string) E
	// Match filters List results; nil returns everything.
	Match func(entity E, filter entities.Filter) bool
	// Hook intercepts calls before they take effect.
	Hook Hook
}

// NewFake seeds a fake with items. Created entities get ids above the
// largest seeded id.
func NewFake[E entities.Identified](withID func(E, int64) E, items ...E) *Fake[E] {
	fake := &Fake[E]{WithID: withID, items: slices.Clone(items)}
	for _, item := range items {
		fake.nextID = max(fake.nextID, item.EntityID())
	}
	return fake
}

// Items returns the stored items.
func (f *Fake[E]) Items() []E {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items)
}

// SetItems replaces the stored items.
func (f *Fake[E]) SetItems(items ...E) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = slices.Clone(items)
}

// Calls returns the recorded calls in invocation order.
func (f *Fake[E]) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CountOp counts recorded calls of op.
func (f *Fake[E]) CountOp(op string) int {
	count := 0
	for _, call := range f.Calls() {
		if call.Op == op {
			count++
		}
	}
	return count
}

func (f *Fake[E]) enter(ctx context.Context, call Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	hook := f.Hook
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx, call)
	}
	return nil
}

func (f *Fake[E]) List(ctx context.Context, filter entities.Filter) ([]E, error) {
	if err := f.enter(ctx, Call{Op: "list", Filter: filter}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]E, 0, len(f.items))
	for _, item := range f.items {
		if f.Match == nil || f.Match(item, filter) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *Fake[E]) Create(ctx context.Context, entity E) (E, error) {
	if err := f.enter(ctx, Call{Op: "create", ID: entity.EntityID()}); err != nil {
		var zero E
		return zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	created := entity
	if f.WithID != nil {
		created = f.WithID(entity, f.nextID)
	}
	f.items = append([]E{created}, f.items...)
	return created, nil
}

func (f *Fake[E]) Update(ctx context.Context, entity E, field, value string) error {
	if err := f.enter(ctx, Call{Op: "update", ID: entity.EntityID(), Field: field, Value: value}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Apply == nil {
		return nil
	}
	for i, item := range f.items {
		if item.EntityID() == entity.EntityID() {
			f.items[i] = f.Apply(item, field, value)
		}
	}
	return nil
}

func (f *Fake[E]) Delete(ctx context.Context, entity E) error {
	if err := f.enter(ctx, Call{Op: "delete", ID: entity.EntityID()}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = slices.DeleteFunc(f.items, func(item E) bool {
		return item.EntityID() == entity.EntityID()
	})
	return nil
}

// FakeStorage is an in-memory StorageService.
type FakeStorage struct {
	mu   sync.Mutex
	Info entities.StorageInfo
	Err  error
}

func (f *FakeStorage) Storage(context.Context) (entities.StorageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Info, f.Err
}

// Set replaces the reported aggregate.
func (f *FakeStorage) Set(info entities.StorageInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Info = info
}

// Gate blocks callers until Release.
type Gate struct {
	once    sync.Once
	release chan struct{}
	entered chan struct{}
}

// NewGate returns a closed-off gate.
func NewGate() *Gate {
	return &Gate{release: make(chan struct{}), entered: make(chan struct{}, 16)}
}

// Wait signals entry and blocks until Release or ctx ends.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entered is signalled each time a caller reaches Wait.
func (g *Gate) Entered() <-chan struct{} {
	return g.entered
}

// Release unblocks every current and future caller.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}
