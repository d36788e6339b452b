// Package entities defines the course, assignment, document, and note records
// shared by the local backend and the client-side cache.
package entities

// Kind names an entity collection.
type Kind string

const (
	// KindCourse identifies the course collection.
	KindCourse Kind = "courses"
	// KindAssignment identifies the assignment collection.
	KindAssignment Kind = "assignments"
	// KindDocument identifies the document collection.
	KindDocument Kind = "documents"
	// KindNote identifies the note collection.
	KindNote Kind = "notes"
	// KindStorage identifies the storage quota aggregate.
	KindStorage Kind = "storage"
)

// Kinds lists every collection in dependency order, parents first.
func Kinds() []Kind {
	return []Kind{KindCourse, KindAssignment, KindDocument, KindNote, KindStorage}
}

// Filter narrows a list request. Zero values mean "any".
type Filter struct {
	AssignmentID int64
	DocumentType DocumentType
}

// Identified is implemented by every record with a numeric identifier.
type Identified interface {
	EntityID() int64
}

// Patch is a single-column change to an entity of type E.
type Patch[E any] interface {
	// Column is the storage column the remote service receives.
	Column() string
	// Value is the new column value as sent over the wire.
	Value() string
	// Apply returns a copy of entity with the change applied.
	Apply(entity E) E
}
