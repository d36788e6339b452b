package mutation

import (
	"context"
	"strings"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/invalidation"
)

func (c *Coordinator) courses() entityKind[entities.Course] {
	return entityKind[entities.Course]{
		kind:    entities.KindCourse,
		table:   c.cache.Courses,
		service: c.services.Courses,
		withID: func(course entities.Course, id int64) entities.Course {
			course.ID = id
			return course
		},
	}
}

// CreateCourse inserts course at the head of the course list under a
// provisional id, then swaps in the server echo.
func (c *Coordinator) CreateCourse(ctx context.Context, course entities.Course) *Handle[entities.Course] {
	if strings.TrimSpace(course.Code) == "" || strings.TrimSpace(course.Name) == "" {
		return failed(c, entities.KindCourse, OpCreate, course, 0, ErrInvalidEntity)
	}
	return create(ctx, c, c.courses(), course)
}

// UpdateCourse applies one column change.
func (c *Coordinator) UpdateCourse(ctx context.Context, course entities.Course, patch entities.CoursePatch) *Handle[entities.Course] {
	return update[entities.Course](ctx, c, c.courses(), lookup(c.cache.Courses, course), patch)
}

// DeleteCourse removes course together with every cached assignment, note,
// and document that depends on it.
func (c *Coordinator) DeleteCourse(ctx context.Context, course entities.Course) *Handle[entities.Course] {
	course = lookup(c.cache.Courses, course)
	ref := invalidation.Ref{ID: course.ID, Code: course.Code}
	return remove(ctx, c, c.courses(), course, ref, invalidation.Scope{})
}
