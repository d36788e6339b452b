package cache

import (
	"net/url"
	"strconv"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// Key addresses one partition: an entity kind plus the filter qualifiers the
// partition was fetched with.
type Key struct {
	Kind         entities.Kind
	AssignmentID int64
	DocumentType entities.DocumentType
}

// KindKey addresses the unfiltered partition of kind.
func KindKey(kind entities.Kind) Key {
	return Key{Kind: kind}
}

// DocumentsKey addresses the documents of one assignment, optionally
// narrowed to one document type.
func DocumentsKey(assignmentID int64, documentType entities.DocumentType) Key {
	return Key{Kind: entities.KindDocument, AssignmentID: assignmentID, DocumentType: documentType}
}

// Filter returns the list filter the partition is fetched with.
func (k Key) Filter() entities.Filter {
	return entities.Filter{AssignmentID: k.AssignmentID, DocumentType: k.DocumentType}
}

// Admits reports whether a document belongs in the partition addressed by k.
func (k Key) Admits(document entities.Document) bool {
	if k.Kind != entities.KindDocument {
		return false
	}
	if k.AssignmentID != 0 && k.AssignmentID != document.AssignmentID {
		return false
	}
	return k.DocumentType == "" || k.DocumentType == document.Type
}

func (k Key) String() string {
	query := url.Values{}
	if k.AssignmentID != 0 {
		query.Set("assignment_id", strconv.FormatInt(k.AssignmentID, 10))
	}
	if k.DocumentType != "" {
		query.Set("type", string(k.DocumentType))
	}
	if len(query) == 0 {
		return string(k.Kind)
	}
	return string(k.Kind) + "?" + query.Encode()
}
