// Package invalidation owns the parent to dependent relationships between
// entity kinds. Cascading deletes and post-mutation refetch scopes are both
// derived from the one edge table below.
package invalidation

import (
	"slices"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/unipilot/internal/cache"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// Ref identifies a removed entity by the values its dependents reference.
type Ref struct {
	ID   int64
	Code string
}

// Edge is one parent to dependent relationship.
type Edge struct {
	Parent entities.Kind
	Child  entities.Kind
	// Via names the dependent column holding the parent reference.
	Via string
	// Aggregate edges recompute the child instead of removing from it.
	Aggregate bool

	sweep sweeper
}

type sweeper func(c *cache.Cache, tx *cache.Tx, parents []Ref) ([]Ref, []cache.Undo)

var edges = []Edge{
	{Parent: entities.KindCourse, Child: entities.KindAssignment, Via: "course_code", sweep: sweepAssignments},
	{Parent: entities.KindCourse, Child: entities.KindNote, Via: "course_code", sweep: sweepNotes},
	{Parent: entities.KindAssignment, Child: entities.KindDocument, Via: "assignment_id", sweep: sweepDocuments},
	{Parent: entities.KindDocument, Child: entities.KindDocument, Via: "parent_doc_id", sweep: sweepVersions},
	{Parent: entities.KindDocument, Child: entities.KindStorage, Via: "file_size", Aggregate: true},
}

// Edges returns a copy of the edge table.
func Edges() []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// Dependents lists the direct dependents of kind. Edges from a kind to itself
// are left out.
func Dependents(kind entities.Kind) []entities.Kind {
	var out []entities.Kind
	for _, edge := range edges {
		if edge.Parent == kind && edge.Child != kind {
			out = append(out, edge.Child)
		}
	}
	return out
}

// Descendants lists every kind reachable from kind, nearest first.
func Descendants(kind entities.Kind) []entities.Kind {
	seen := map[entities.Kind]bool{kind: true}
	queue := []entities.Kind{kind}
	var out []entities.Kind
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range Dependents(current) {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// Graph applies the edge table to a cache.
type Graph struct {
	cache  *cache.Cache
	logger *zap.Logger
}

// New builds a Graph over c.
func New(c *cache.Cache, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{cache: c, logger: logger}
}

// CascadeIn removes, inside tx, every cached dependent of the deleted parent,
// following edges transitively. The returned undo records cover each touched
// partition, nearest dependents first.
func (g *Graph) CascadeIn(tx *cache.Tx, kind entities.Kind, parent Ref) []cache.Undo {
	type frontier struct {
		kind entities.Kind
		refs []Ref
	}
	var undos []cache.Undo
	queue := []frontier{{kind: kind, refs: []Ref{parent}}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range edges {
			if edge.Parent != current.kind || edge.Aggregate || edge.sweep == nil {
				continue
			}
			removed, edgeUndos := edge.sweep(g.cache, tx, current.refs)
			undos = append(undos, edgeUndos...)
			if len(removed) > 0 {
				g.logger.Debug("cascade removed dependents",
					zap.String("parent", string(edge.Parent)),
					zap.String("kind", string(edge.Child)),
					zap.Int("count", len(removed)))
				queue = append(queue, frontier{kind: edge.Child, refs: removed})
			}
		}
	}
	return undos
}

// Scope narrows reconciliation of document partitions to some assignments.
// An empty scope reconciles every present partition.
type Scope struct {
	AssignmentIDs []int64
}

// Reconcile marks stale the present partitions of kind and of its direct
// dependents, and returns them for refetch.
func (g *Graph) Reconcile(kind entities.Kind, scope Scope) []cache.Key {
	kinds := append([]entities.Kind{kind}, Dependents(kind)...)
	var keys []cache.Key
	for _, target := range kinds {
		for _, key := range g.cache.PresentKeys(target) {
			if !scope.covers(key) {
				continue
			}
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		g.cache.MarkStale(key)
	}
	return keys
}

// ReconcileDelete is Reconcile plus the aggregates anywhere below kind, since a
// cascading delete changes them too.
func (g *Graph) ReconcileDelete(kind entities.Kind, scope Scope) []cache.Key {
	keys := g.Reconcile(kind, scope)
	direct := map[entities.Kind]bool{kind: true}
	for _, dependent := range Dependents(kind) {
		direct[dependent] = true
	}
	descendants := Descendants(kind)
	for _, edge := range edges {
		if !edge.Aggregate || direct[edge.Child] || !slices.Contains(descendants, edge.Child) {
			continue
		}
		for _, key := range g.cache.PresentKeys(edge.Child) {
			g.cache.MarkStale(key)
			keys = append(keys, key)
		}
	}
	return keys
}

func (s Scope) covers(key cache.Key) bool {
	if key.Kind != entities.KindDocument || len(s.AssignmentIDs) == 0 || key.AssignmentID == 0 {
		return true
	}
	for _, id := range s.AssignmentIDs {
		if id == key.AssignmentID {
			return true
		}
	}
	return false
}

func sweepAssignments(c *cache.Cache, tx *cache.Tx, parents []Ref) ([]Ref, []cache.Undo) {
	codes := codeSet(parents)
	var removed []Ref
	var undos []cache.Undo
	for _, key := range c.Assignments.KeysIn(tx) {
		items, _ := c.Assignments.ListIn(tx, key)
		for _, item := range items {
			if codes[item.CourseCode] {
				removed = append(removed, Ref{ID: item.ID})
			}
		}
		snapshot := c.Assignments.RemoveIn(tx, key, func(a entities.Assignment) bool {
			return codes[a.CourseCode]
		})
		if snapshot.Changed() {
			undos = append(undos, snapshot)
		}
	}
	return removed, undos
}

func sweepNotes(c *cache.Cache, tx *cache.Tx, parents []Ref) ([]Ref, []cache.Undo) {
	codes := codeSet(parents)
	var removed []Ref
	var undos []cache.Undo
	for _, key := range c.Notes.KeysIn(tx) {
		items, _ := c.Notes.ListIn(tx, key)
		for _, item := range items {
			if codes[item.CourseCode] {
				removed = append(removed, Ref{ID: item.ID})
			}
		}
		snapshot := c.Notes.RemoveIn(tx, key, func(n entities.Note) bool {
			return codes[n.CourseCode]
		})
		if snapshot.Changed() {
			undos = append(undos, snapshot)
		}
	}
	return removed, undos
}

// sweepDocuments drops document partitions fetched for a removed assignment
// and filters removed assignments out of the wider partitions.
func sweepDocuments(c *cache.Cache, tx *cache.Tx, parents []Ref) ([]Ref, []cache.Undo) {
	ids := make(map[int64]bool, len(parents))
	for _, parent := range parents {
		ids[parent.ID] = true
	}
	var removed []Ref
	var undos []cache.Undo
	for _, key := range c.Documents.KeysIn(tx) {
		items, _ := c.Documents.ListIn(tx, key)
		for _, item := range items {
			if ids[item.AssignmentID] {
				removed = append(removed, Ref{ID: item.ID})
			}
		}
		var snapshot cache.Snapshot[entities.Document]
		if key.AssignmentID != 0 && ids[key.AssignmentID] {
			snapshot = c.Documents.DropIn(tx, key)
		} else {
			snapshot = c.Documents.RemoveIn(tx, key, func(d entities.Document) bool {
				return ids[d.AssignmentID]
			})
		}
		if snapshot.Changed() {
			undos = append(undos, snapshot)
		}
	}
	return removed, undos
}

// sweepVersions removes the versions uploaded on top of removed documents.
// Deeper versions are reached as the cascade revisits this edge.
func sweepVersions(c *cache.Cache, tx *cache.Tx, parents []Ref) ([]Ref, []cache.Undo) {
	ids := make(map[int64]bool, len(parents))
	for _, parent := range parents {
		ids[parent.ID] = true
	}
	supersedes := func(d entities.Document) bool {
		return d.ParentDocID != nil && ids[*d.ParentDocID]
	}
	seen := make(map[int64]bool)
	var removed []Ref
	var undos []cache.Undo
	for _, key := range c.Documents.KeysIn(tx) {
		items, _ := c.Documents.ListIn(tx, key)
		for _, item := range items {
			if supersedes(item) && !seen[item.ID] {
				seen[item.ID] = true
				removed = append(removed, Ref{ID: item.ID})
			}
		}
		if snapshot := c.Documents.RemoveIn(tx, key, supersedes); snapshot.Changed() {
			undos = append(undos, snapshot)
		}
	}
	return removed, undos
}

func codeSet(parents []Ref) map[string]bool {
	codes := make(map[string]bool, len(parents))
	for _, parent := range parents {
		if parent.Code != "" {
			codes[parent.Code] = true
		}
	}
	return codes
}
