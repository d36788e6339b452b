package mutation

import (
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

var (
	errMissingCache    = errors.New("mutation: cache is required")
	errMissingGraph    = errors.New("mutation: invalidation graph is required")
	errMissingServices = errors.New("mutation: remote service is required")
	// ErrNotCached reports a mutation of an entity the cache does not hold.
	ErrNotCached = errors.New("mutation: entity not cached")
	// ErrProvisional reports an update or delete of an entity whose create has
	// not settled yet.
	ErrProvisional = errors.New("mutation: entity not yet created")
	// ErrNotCurrent reports a new version requested on top of a version that
	// already has a successor.
	ErrNotCurrent = errors.New("mutation: document version already superseded")
	// ErrInvalidEntity reports a create missing a required field.
	ErrInvalidEntity = errors.New("mutation: invalid entity")
)

// MutationError is the settled error of a failed mutation. It unwraps to the
// remote or validation cause.
type MutationError struct {
	ID         string
	Kind       entities.Kind
	Operation  Operation
	EntityID   int64
	RolledBack bool
	Err        error
}

func (e *MutationError) Error() string {
	rollback := "rolled back"
	if !e.RolledBack {
		rollback = "rollback skipped"
	}
	return fmt.Sprintf("mutation %s: %s %s %d failed (%s): %v", e.ID, e.Operation, e.Kind, e.EntityID, rollback, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
