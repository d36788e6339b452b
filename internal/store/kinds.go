package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

const defaultCourseColor = "bg-blue-500"

func newCourseRepository(s *Store) *Repository[entities.Course] {
	return &Repository[entities.Course]{
		store: s,
		kind:  entities.KindCourse,
		columns: map[string]column{
			"name":             requiredText("name"),
			"color":            text("color"),
			"schedule":         text("schedule"),
			"semester":         text("semester"),
			"instructor":       text("instructor"),
			"instructor_email": text("instructor_email"),
			"room_number":      text("room_number"),
			"credits":          integer("credits"),
			"start_date":       timestamp("start_date"),
			"end_date":         timestamp("end_date"),
		},
		withID: func(course entities.Course, id int64) entities.Course {
			course.ID = id
			return course
		},
		prepare: func(_ context.Context, _ *gorm.DB, course *entities.Course) error {
			course.Code = strings.TrimSpace(course.Code)
			if course.Code == "" || strings.TrimSpace(course.Name) == "" {
				return newServiceError("store.courses.create", "invalid_record", fmt.Errorf("%w: code and name are required", ErrInvalidRecord))
			}
			if course.Color == "" {
				course.Color = defaultCourseColor
			}
			return nil
		},
		cascade: deleteCourseDependents,
	}
}

// deleteCourseDependents removes the assignments, their documents, and the
// notes that reference the course code.
func deleteCourseDependents(tx *gorm.DB, course entities.Course) error {
	var assignmentIDs []int64
	if err := tx.Model(&entities.Assignment{}).Where("course_code = ?", course.Code).Pluck("id", &assignmentIDs).Error; err != nil {
		return err
	}
	if len(assignmentIDs) > 0 {
		if err := tx.Where("assignment_id IN ?", assignmentIDs).Delete(&entities.Document{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", assignmentIDs).Delete(&entities.Assignment{}).Error; err != nil {
			return err
		}
	}
	return tx.Where("course_code = ?", course.Code).Delete(&entities.Note{}).Error
}

func newAssignmentRepository(s *Store) *Repository[entities.Assignment] {
	return &Repository[entities.Assignment]{
		store: s,
		kind:  entities.KindAssignment,
		columns: map[string]column{
			"title":       requiredText("title"),
			"todo":        text("todo"),
			"deadline":    s.deadlineColumn,
			"status_name": status,
			"priority":    priority,
			"type_name":   text("type_name"),
			"course_code": text("course_code"),
			"link":        text("link"),
			"completed":   boolean("completed"),
		},
		withID: func(assignment entities.Assignment, id int64) entities.Assignment {
			assignment.ID = id
			return assignment
		},
		prepare: func(_ context.Context, _ *gorm.DB, assignment *entities.Assignment) error {
			const op = "store.assignments.create"
			if strings.TrimSpace(assignment.Title) == "" {
				return newServiceError(op, "invalid_record", fmt.Errorf("%w: title is required", ErrInvalidRecord))
			}
			normalized, err := s.normalizeDeadline(assignment.Deadline)
			if err != nil {
				return newServiceError(op, "invalid_record", fmt.Errorf("%w: deadline: %v", ErrInvalidRecord, err))
			}
			assignment.Deadline = normalized
			if assignment.StatusName == "" {
				assignment.StatusName = entities.StatusNotStarted
			}
			if !assignment.StatusName.Known() {
				return newServiceError(op, "invalid_record", fmt.Errorf("%w: status %q", ErrInvalidRecord, assignment.StatusName))
			}
			if assignment.Priority == "" {
				assignment.Priority = entities.PriorityMedium
			}
			assignment.Completed = assignment.Completed || assignment.StatusName == entities.StatusDone
			return nil
		},
		cascade: func(tx *gorm.DB, assignment entities.Assignment) error {
			return tx.Where("assignment_id = ?", assignment.ID).Delete(&entities.Document{}).Error
		},
	}
}

func newDocumentRepository(s *Store) *Repository[entities.Document] {
	return &Repository[entities.Document]{
		store: s,
		kind:  entities.KindDocument,
		columns: map[string]column{
			"file_name":      requiredText("file_name"),
			"has_local_file": boolean("has_local_file"),
		},
		withID: func(document entities.Document, id int64) entities.Document {
			document.ID = id
			return document
		},
		scope: func(db *gorm.DB, filter entities.Filter) *gorm.DB {
			if filter.AssignmentID != 0 {
				db = db.Where("assignment_id = ?", filter.AssignmentID)
			}
			if filter.DocumentType != "" {
				db = db.Where("type = ?", string(filter.DocumentType))
			}
			return db
		},
		prepare: s.prepareDocument,
		cascade: deleteLaterVersions,
	}
}

// deleteLaterVersions removes every version built on top of document.
func deleteLaterVersions(tx *gorm.DB, document entities.Document) error {
	frontier := []int64{document.ID}
	var later []int64
	for len(frontier) > 0 {
		var next []int64
		if err := tx.Model(&entities.Document{}).Where("parent_doc_id IN ?", frontier).Pluck("id", &next).Error; err != nil {
			return err
		}
		later = append(later, next...)
		frontier = next
	}
	if len(later) == 0 {
		return nil
	}
	return tx.Where("id IN ?", later).Delete(&entities.Document{}).Error
}

// prepareDocument checks the assignment and size limits, resolves the
// version from the parent, and assigns the stored file path.
func (s *Store) prepareDocument(_ context.Context, tx *gorm.DB, document *entities.Document) error {
	const op = "store.documents.create"
	if !document.Type.Known() || strings.TrimSpace(document.FileName) == "" {
		return newServiceError(op, "invalid_record", fmt.Errorf("%w: type and file name are required", ErrInvalidRecord))
	}

	var assignment entities.Assignment
	err := tx.Where("id = ?", document.AssignmentID).Take(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newServiceError(op, "assignment_not_found", ErrNotFound)
	}
	if err != nil {
		return newServiceError(op, "assignment_select_failed", err)
	}

	var assignmentUsed, totalUsed int64
	if err := tx.Model(&entities.Document{}).Where("assignment_id = ?", document.AssignmentID).
		Select("COALESCE(SUM(file_size), 0)").Scan(&assignmentUsed).Error; err != nil {
		return newServiceError(op, "usage_query_failed", err)
	}
	if err := tx.Model(&entities.Document{}).Select("COALESCE(SUM(file_size), 0)").Scan(&totalUsed).Error; err != nil {
		return newServiceError(op, "usage_query_failed", err)
	}
	if err := entities.ValidateFileSize(document.FileSize, assignmentUsed, totalUsed); err != nil {
		return newServiceError(op, "size_limit", err)
	}

	document.Version = 1
	if document.ParentDocID != nil {
		var parent entities.Document
		err := tx.Where("id = ?", *document.ParentDocID).Take(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(op, "parent_not_found", ErrNotFound)
		}
		if err != nil {
			return newServiceError(op, "parent_select_failed", err)
		}
		if parent.AssignmentID != document.AssignmentID || parent.Type != document.Type {
			return newServiceError(op, "parent_mismatch", fmt.Errorf("%w: parent belongs to another assignment or type", ErrInvalidRecord))
		}
		var successors int64
		if err := tx.Model(&entities.Document{}).Where("parent_doc_id = ?", parent.ID).Count(&successors).Error; err != nil {
			return newServiceError(op, "parent_select_failed", err)
		}
		if successors > 0 {
			return newServiceError(op, "parent_superseded", fmt.Errorf("%w: parent already has a newer version", ErrInvalidRecord))
		}
		document.Version = parent.Version + 1
	}

	prefix, err := s.idProvider.NewID()
	if err != nil {
		return newServiceError(op, "id_generation_failed", err)
	}
	document.FilePath = path.Join(
		fmt.Sprintf("assignment_%d", document.AssignmentID),
		string(document.Type),
		prefix+"_"+path.Base(document.FileName),
	)
	document.HasLocalFile = false
	return nil
}

func newNoteRepository(s *Store) *Repository[entities.Note] {
	return &Repository[entities.Note]{
		store: s,
		kind:  entities.KindNote,
		columns: map[string]column{
			"title":       requiredText("title"),
			"subject":     text("subject"),
			"content":     text("content"),
			"course_code": text("course_code"),
			"keywords":    jsonList[string]("keywords"),
			"videos":      jsonList[entities.Video]("videos"),
		},
		withID: func(note entities.Note, id int64) entities.Note {
			note.ID = id
			return note
		},
		prepare: func(_ context.Context, _ *gorm.DB, note *entities.Note) error {
			if strings.TrimSpace(note.Title) == "" {
				return newServiceError("store.notes.create", "invalid_record", fmt.Errorf("%w: title is required", ErrInvalidRecord))
			}
			note.Keywords = entities.EncodeKeywords(note.KeywordList())
			note.Videos = normalizeVideos(note.Videos)
			return nil
		},
	}
}

func normalizeVideos(raw datatypes.JSON) datatypes.JSON {
	note := entities.Note{Videos: raw}
	return entities.EncodeVideos(note.VideoList())
}
