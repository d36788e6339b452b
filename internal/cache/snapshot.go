package cache

// Undo restores one partition to the value it held before a write.
type Undo interface {
	Key() Key
	// Revision is the partition revision the write produced.
	Revision() uint64
	// Changed reports whether the write modified the partition at all.
	Changed() bool
	// Restore puts the prior value back. It reports false when the CAS policy
	// found the partition moved past Revision and left it alone.
	Restore(tx *Tx, policy RollbackPolicy) bool
}

// Snapshot is the Undo record of a write to a Table.
type Snapshot[E any] struct {
	table         *Table[E]
	key           Key
	prior         []E
	priorPresent  bool
	priorRevision uint64
	revision      uint64
	changed       bool
}

func (s Snapshot[E]) Key() Key {
	return s.key
}

// Prior returns a copy of the collection held before the write.
func (s Snapshot[E]) Prior() []E {
	if s.prior == nil {
		return nil
	}
	prior := make([]E, len(s.prior))
	copy(prior, s.prior)
	return prior
}

// PriorPresent reports whether the partition held data before the write.
func (s Snapshot[E]) PriorPresent() bool {
	return s.priorPresent
}

func (s Snapshot[E]) Revision() uint64 {
	return s.revision
}

func (s Snapshot[E]) Changed() bool {
	return s.changed
}

// Restore implements Undo. A restored partition takes back the revision it
// had before the write, so older snapshots of the same partition still match
// and can unwind in turn.
func (s Snapshot[E]) Restore(tx *Tx, policy RollbackPolicy) bool {
	if !s.changed || s.table == nil {
		return true
	}
	p := s.table.ensure(s.key)
	if policy == RollbackCAS && p.revision != s.revision {
		return false
	}
	p.items = s.prior
	p.present = s.priorPresent
	p.revision = s.priorRevision
	tx.touch(s.key)
	return true
}
