package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// Repository stores one entity kind. It implements remote.Service.
type Repository[E entities.Identified] struct {
	store   *Store
	kind    entities.Kind
	columns map[string]column
	withID  func(E, int64) E
	// scope narrows List by the request filter.
	scope func(db *gorm.DB, filter entities.Filter) *gorm.DB
	// prepare validates and completes a record before insert.
	prepare func(ctx context.Context, tx *gorm.DB, entity *E) error
	// cascade removes dependents before the record itself.
	cascade func(tx *gorm.DB, entity E) error
}

func (r *Repository[E]) op(action string) string {
	return fmt.Sprintf("store.%s.%s", r.kind, action)
}

// List returns the records matching filter, newest first.
func (r *Repository[E]) List(ctx context.Context, filter entities.Filter) ([]E, error) {
	query := r.store.db.WithContext(ctx).Order("id DESC")
	if r.scope != nil {
		query = r.scope(query, filter)
	}
	items := make([]E, 0)
	if err := query.Find(&items).Error; err != nil {
		r.store.logError(r.op("list"), "query_failed", err)
		return nil, newServiceError(r.op("list"), "query_failed", err)
	}
	return items, nil
}

// Get loads one record.
func (r *Repository[E]) Get(ctx context.Context, id int64) (E, error) {
	var entity E
	err := r.store.db.WithContext(ctx).Where("id = ?", id).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity, newServiceError(r.op("get"), "not_found", ErrNotFound)
	}
	if err != nil {
		r.store.logError(r.op("get"), "query_failed", err, zap.Int64("id", id))
		return entity, newServiceError(r.op("get"), "query_failed", err)
	}
	return entity, nil
}

// Create inserts entity under a new identifier and returns the stored record.
func (r *Repository[E]) Create(ctx context.Context, entity E) (E, error) {
	created := r.withID(entity, 0)
	err := r.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.prepare != nil {
			if err := r.prepare(ctx, tx, &created); err != nil {
				return err
			}
		}
		if err := tx.Create(&created).Error; err != nil {
			r.store.logError(r.op("create"), "insert_failed", err)
			return newServiceError(r.op("create"), "insert_failed", err)
		}
		return nil
	})
	if err != nil {
		var zero E
		return zero, err
	}
	return created, nil
}

// Update writes one allow-listed column.
func (r *Repository[E]) Update(ctx context.Context, entity E, field, value string) error {
	id := entity.EntityID()
	convert, ok := r.columns[field]
	if !ok {
		return newServiceError(r.op("update"), "unknown_field", fmt.Errorf("%w: %s", ErrUnknownField, field))
	}
	updates, err := convert(value)
	if err != nil {
		return newServiceError(r.op("update"), "invalid_value", fmt.Errorf("%w: %s: %v", ErrInvalidValue, field, err))
	}

	var zero E
	result := r.store.db.WithContext(ctx).Model(&zero).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		r.store.logError(r.op("update"), "update_failed", result.Error, zap.Int64("id", id), zap.String("field", field))
		return newServiceError(r.op("update"), "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(r.op("update"), "not_found", ErrNotFound)
	}
	return nil
}

// Delete removes the record and, in the same transaction, its dependents.
func (r *Repository[E]) Delete(ctx context.Context, entity E) error {
	id := entity.EntityID()
	return r.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing E
		err := tx.Where("id = ?", id).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(r.op("delete"), "not_found", ErrNotFound)
		}
		if err != nil {
			r.store.logError(r.op("delete"), "select_failed", err, zap.Int64("id", id))
			return newServiceError(r.op("delete"), "select_failed", err)
		}
		if r.cascade != nil {
			if err := r.cascade(tx, existing); err != nil {
				r.store.logError(r.op("delete"), "cascade_failed", err, zap.Int64("id", id))
				return newServiceError(r.op("delete"), "cascade_failed", err)
			}
		}
		if err := tx.Where("id = ?", id).Delete(&existing).Error; err != nil {
			r.store.logError(r.op("delete"), "delete_failed", err, zap.Int64("id", id))
			return newServiceError(r.op("delete"), "delete_failed", err)
		}
		return nil
	})
}
