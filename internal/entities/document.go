package entities

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// DocumentType separates reference material from student work.
type DocumentType string

const (
	DocumentTypeSupport    DocumentType = "support"
	DocumentTypeSubmission DocumentType = "submission"
)

// Known reports whether the document type belongs to the closed set.
func (t DocumentType) Known() bool {
	return t == DocumentTypeSupport || t == DocumentTypeSubmission
}

// Storage limits in bytes.
const (
	MaxFileSize       int64 = 50 * 1024 * 1024
	MaxAssignmentSize int64 = 200 * 1024 * 1024
	MaxUserQuota      int64 = 2 * 1024 * 1024 * 1024
)

var (
	// ErrFileTooLarge indicates a single file above MaxFileSize.
	ErrFileTooLarge = errors.New("entities: file exceeds size limit")
	// ErrAssignmentFull indicates the assignment would exceed MaxAssignmentSize.
	ErrAssignmentFull = errors.New("entities: assignment storage limit exceeded")
	// ErrQuotaExceeded indicates the total would exceed MaxUserQuota.
	ErrQuotaExceeded = errors.New("entities: storage quota exceeded")
)

// Document is a file attached to an assignment. Versions form an append-only
// chain through ParentDocID; the current version is the one no other version
// names as its parent.
type Document struct {
	ID           int64        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AssignmentID int64        `gorm:"column:assignment_id;not null;index:idx_documents_assignment_type,priority:1" json:"assignment_id"`
	Type         DocumentType `gorm:"column:type;size:16;not null;index:idx_documents_assignment_type,priority:2" json:"type"`
	FileName     string       `gorm:"column:file_name;size:255;not null" json:"file_name"`
	FileType     string       `gorm:"column:file_type;size:128;not null;default:''" json:"file_type"`
	FilePath     string       `gorm:"column:file_path;size:512;not null;default:''" json:"file_path"`
	FileSize     int64        `gorm:"column:file_size;not null;default:0" json:"file_size"`
	HasLocalFile bool         `gorm:"column:has_local_file;not null;default:false" json:"has_local_file"`
	Version      int          `gorm:"column:version;not null;default:1" json:"version"`
	ParentDocID  *int64       `gorm:"column:parent_doc_id;index" json:"parent_doc_id,omitempty"`
	CreatedAt    time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}

// EntityID returns the document identifier.
func (d Document) EntityID() int64 {
	return d.ID
}

// FileMeta describes an uploaded file before it becomes a Document.
type FileMeta struct {
	FileName string
	FileType string
	FileSize int64
}

// ValidateFileSize checks one file against the per-file limit, and against the
// assignment and quota limits given the bytes already stored there.
func ValidateFileSize(size, assignmentUsed, totalUsed int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, MaxFileSize)
	}
	if assignmentUsed+size > MaxAssignmentSize {
		return fmt.Errorf("%w: %d bytes", ErrAssignmentFull, MaxAssignmentSize)
	}
	if totalUsed+size > MaxUserQuota {
		return fmt.Errorf("%w: %d bytes", ErrQuotaExceeded, MaxUserQuota)
	}
	return nil
}

// NextVersion builds the successor of prior for file. The prior value is
// copied, never modified.
func NextVersion(prior Document, file FileMeta) Document {
	parentID := prior.ID
	return Document{
		AssignmentID: prior.AssignmentID,
		Type:         prior.Type,
		FileName:     file.FileName,
		FileType:     file.FileType,
		FileSize:     file.FileSize,
		Version:      prior.Version + 1,
		ParentDocID:  &parentID,
	}
}

// CurrentVersions keeps the documents that no other document names as parent,
// preserving input order.
func CurrentVersions(docs []Document) []Document {
	superseded := make(map[int64]struct{}, len(docs))
	for _, doc := range docs {
		if doc.ParentDocID != nil {
			superseded[*doc.ParentDocID] = struct{}{}
		}
	}
	current := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if _, ok := superseded[doc.ID]; ok {
			continue
		}
		current = append(current, doc)
	}
	return current
}

// Successors returns every version built on top of documentID, directly or
// through later versions, in input order.
func Successors(docs []Document, documentID int64) []Document {
	above := map[int64]bool{documentID: true}
	for grew := true; grew; {
		grew = false
		for _, doc := range docs {
			if doc.ParentDocID != nil && above[*doc.ParentDocID] && !above[doc.ID] {
				above[doc.ID] = true
				grew = true
			}
		}
	}
	out := make([]Document, 0)
	for _, doc := range docs {
		if doc.ID != documentID && above[doc.ID] {
			out = append(out, doc)
		}
	}
	return out
}

// VersionHistory returns every version in the chain that contains documentID,
// newest first. Unknown identifiers yield an empty history.
func VersionHistory(docs []Document, documentID int64) []Document {
	byID := make(map[int64]Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	if _, ok := byID[documentID]; !ok {
		return nil
	}

	rootOf := func(id int64) int64 {
		seen := make(map[int64]struct{})
		for {
			doc, ok := byID[id]
			if !ok || doc.ParentDocID == nil {
				return id
			}
			if _, loop := seen[id]; loop {
				return id
			}
			seen[id] = struct{}{}
			id = *doc.ParentDocID
		}
	}

	root := rootOf(documentID)
	history := make([]Document, 0)
	for _, doc := range docs {
		if rootOf(doc.ID) == root {
			history = append(history, doc)
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Version > history[j].Version
	})
	return history
}

// DocumentPatch is a single-column change to a Document.
type DocumentPatch interface {
	Patch[Document]
	documentPatch()
}

type SetDocumentFileName struct{ FileName string }

func (SetDocumentFileName) Column() string { return "file_name" }
func (p SetDocumentFileName) Value() string { return p.FileName }
func (p SetDocumentFileName) Apply(document Document) Document {
	document.FileName = p.FileName
	return document
}
func (SetDocumentFileName) documentPatch() {}

// SetDocumentLocalCopy records whether the file is present on this machine.
type SetDocumentLocalCopy struct{ Present bool }

func (SetDocumentLocalCopy) Column() string { return "has_local_file" }
func (p SetDocumentLocalCopy) Value() string { return strconv.FormatBool(p.Present) }
func (p SetDocumentLocalCopy) Apply(document Document) Document {
	document.HasLocalFile = p.Present
	return document
}
func (SetDocumentLocalCopy) documentPatch() {}
