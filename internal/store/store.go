// Package store persists courses, assignments, documents, and notes in the
// local backend database and serves them through the remote service
// interfaces.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/unipilot/internal/deadline"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/remote"
)

var (
	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownField reports an update of a column outside the allow-list.
	ErrUnknownField = errors.New("field is not updatable")
	// ErrInvalidValue reports an update value that does not convert to the
	// column type.
	ErrInvalidValue = errors.New("invalid field value")
	// ErrInvalidRecord reports a create missing required data.
	ErrInvalidRecord = errors.New("invalid record")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opStoreNew = "store.new"
	opStorage  = "store.storage"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider generates the unique prefix of stored document paths.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

func (uuidProvider) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type Config struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	// Deadlines normalizes assignment deadlines to RFC 3339. Defaults to a
	// classifier in the local zone.
	Deadlines *deadline.Classifier
	Logger    *zap.Logger
}

// Store is the backend's persistence layer.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	deadlines  *deadline.Classifier
	logger     *zap.Logger

	courses     *Repository[entities.Course]
	assignments *Repository[entities.Assignment]
	documents   *Repository[entities.Document]
	notes       *Repository[entities.Note]
}

func New(cfg Config) (*Store, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opStoreNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = uuidProvider{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	deadlines := cfg.Deadlines
	if deadlines == nil {
		deadlines = deadline.New(deadline.Config{Clock: clock, Logger: logger})
	}

	s := &Store{
		db:         cfg.Database,
		clock:      clock,
		idProvider: idProvider,
		deadlines:  deadlines,
		logger:     logger,
	}
	s.courses = newCourseRepository(s)
	s.assignments = newAssignmentRepository(s)
	s.documents = newDocumentRepository(s)
	s.notes = newNoteRepository(s)
	return s, nil
}

func (s *Store) Courses() *Repository[entities.Course] {
	return s.courses
}

func (s *Store) Assignments() *Repository[entities.Assignment] {
	return s.assignments
}

func (s *Store) Documents() *Repository[entities.Document] {
	return s.documents
}

func (s *Store) Notes() *Repository[entities.Note] {
	return s.notes
}

// Services exposes the store through the remote service interfaces.
func (s *Store) Services() remote.Services {
	return remote.Services{
		Courses:     s.courses,
		Assignments: s.assignments,
		Documents:   s.documents,
		Notes:       s.notes,
		Storage:     s,
	}
}

// Storage sums the stored document sizes.
func (s *Store) Storage(ctx context.Context) (entities.StorageInfo, error) {
	var totals struct {
		TotalSize     int64
		DocumentCount int
	}
	if err := s.db.WithContext(ctx).
		Model(&entities.Document{}).
		Select("COALESCE(SUM(file_size), 0) AS total_size, COUNT(*) AS document_count").
		Scan(&totals).Error; err != nil {
		s.logError(opStorage, "query_failed", err)
		return entities.StorageInfo{}, newServiceError(opStorage, "query_failed", err)
	}
	return entities.StorageInfo{
		TotalSize:        totals.TotalSize,
		DocumentCount:    totals.DocumentCount,
		LastCalculatedAt: s.clock().UTC(),
	}, nil
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("store error", attrs...)
}
