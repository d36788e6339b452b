// Package remote describes the entity service the cache talks to and loads
// cache partitions from it.
package remote

import (
	"context"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// Service is the CRUD surface the backend exposes for one entity kind.
// Update carries a single column and its new value.
type Service[E any] interface {
	List(ctx context.Context, filter entities.Filter) ([]E, error)
	Create(ctx context.Context, entity E) (E, error)
	Update(ctx context.Context, entity E, field, value string) error
	Delete(ctx context.Context, entity E) error
}

// StorageService reports the document storage aggregate.
type StorageService interface {
	Storage(ctx context.Context) (entities.StorageInfo, error)
}

// Services bundles one service per kind.
type Services struct {
	Courses     Service[entities.Course]
	Assignments Service[entities.Assignment]
	Documents   Service[entities.Document]
	Notes       Service[entities.Note]
	Storage     StorageService
}
