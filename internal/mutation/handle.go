package mutation

import (
	"context"
	"fmt"
	"sync"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// State is the lifecycle position of one mutation.
type State int

const (
	Pending State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Operation names what a mutation does.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Handle tracks one mutation from invocation to settle.
type Handle[E any] struct {
	id        string
	kind      entities.Kind
	operation Operation
	done      chan struct{}

	mu     sync.Mutex
	state  State
	result E
	err    error
}

func newHandle[E any](id string, kind entities.Kind, operation Operation, optimistic E) *Handle[E] {
	return &Handle[E]{
		id:        id,
		kind:      kind,
		operation: operation,
		done:      make(chan struct{}),
		result:    optimistic,
	}
}

// ID is the correlation identifier used in logs.
func (h *Handle[E]) ID() string {
	return h.id
}

func (h *Handle[E]) Kind() entities.Kind {
	return h.kind
}

func (h *Handle[E]) Operation() Operation {
	return h.operation
}

// Done is closed once the mutation settles and reconciliation has run.
func (h *Handle[E]) Done() <-chan struct{} {
	return h.done
}

func (h *Handle[E]) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the *MutationError of a failed mutation, nil otherwise.
func (h *Handle[E]) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Result is the server echo after a successful create, and the optimistic
// entity otherwise.
func (h *Handle[E]) Result() E {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Wait blocks until the mutation settles or ctx ends.
func (h *Handle[E]) Wait(ctx context.Context) (E, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err
	case <-ctx.Done():
		var zero E
		return zero, ctx.Err()
	}
}

func (h *Handle[E]) settle(state State, result E, err error) {
	h.mu.Lock()
	h.state = state
	h.result = result
	h.err = err
	h.mu.Unlock()
	close(h.done)
}
