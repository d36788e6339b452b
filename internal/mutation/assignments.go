package mutation

import (
	"context"
	"strings"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/invalidation"
)

func (c *Coordinator) assignments() entityKind[entities.Assignment] {
	return entityKind[entities.Assignment]{
		kind:    entities.KindAssignment,
		table:   c.cache.Assignments,
		service: c.services.Assignments,
		withID: func(assignment entities.Assignment, id int64) entities.Assignment {
			assignment.ID = id
			return assignment
		},
	}
}

func (c *Coordinator) CreateAssignment(ctx context.Context, assignment entities.Assignment) *Handle[entities.Assignment] {
	if strings.TrimSpace(assignment.Title) == "" {
		return failed(c, entities.KindAssignment, OpCreate, assignment, 0, ErrInvalidEntity)
	}
	if assignment.StatusName == "" {
		assignment.StatusName = entities.StatusNotStarted
	}
	if assignment.Priority == "" {
		assignment.Priority = entities.PriorityMedium
	}
	return create(ctx, c, c.assignments(), assignment)
}

func (c *Coordinator) UpdateAssignment(ctx context.Context, assignment entities.Assignment, patch entities.AssignmentPatch) *Handle[entities.Assignment] {
	return update[entities.Assignment](ctx, c, c.assignments(), lookup(c.cache.Assignments, assignment), patch)
}

// DeleteAssignment removes assignment and its cached documents. Document
// partitions fetched for the assignment are dropped outright.
func (c *Coordinator) DeleteAssignment(ctx context.Context, assignment entities.Assignment) *Handle[entities.Assignment] {
	scope := invalidation.Scope{AssignmentIDs: []int64{assignment.ID}}
	return remove(ctx, c, c.assignments(), assignment, invalidation.Ref{ID: assignment.ID}, scope)
}
