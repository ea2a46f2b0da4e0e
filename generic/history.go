/*
history.go - Sparse per-entity value history

PURPOSE:
  A History remembers what one entity (an account or the total) held
  just before the first change it received in each snapshot generation.
  It is two parallel append-only arrays: ids and values.

INVARIANTS:
  1. ids is strictly ascending (no duplicates)
  2. len(ids) == len(values)
  3. Entries are appended only, never edited; the newest entry is
     removed only when the mutation that recorded it fails to commit
  4. At most one entry per snapshot id (first write wins)

SPARSITY:
  Taking a snapshot writes nothing here. An entity untouched between two
  snapshots gains no entry, so entries <= mutations.

SEE ALSO:
  - snapshot.go: Decides when to append and how to read an entry back
*/
package generic

import (
	"sort"
	"sync"
)

// =============================================================================
// UPPER BOUND
// =============================================================================

// UpperBound returns the number of ids that are <= target, which is also
// the index of the first id strictly greater than target. ids must be
// sorted ascending.
func UpperBound(ids []SnapshotID, target SnapshotID) int {
	return sort.Search(len(ids), func(i int) bool {
		return ids[i] > target
	})
}

// =============================================================================
// HISTORY
// =============================================================================

// History is the sparse value log of a single entity.
// Safe for concurrent use; an (id, value) pair is published atomically.
type History struct {
	mu     sync.RWMutex
	ids    []SnapshotID
	values []Amount
}

func NewHistory() *History {
	return &History{}
}

// appendIfAfter appends (id, value) when the history is empty or its last
// id is strictly below id. Reports whether it appended.
func (h *History) appendIfAfter(id SnapshotID, value Amount) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.ids); n > 0 && h.ids[n-1] >= id {
		return false
	}
	h.ids = append(h.ids, id)
	h.values = append(h.values, value)
	return true
}

// dropLast removes the newest entry if it was recorded at id.
func (h *History) dropLast(id SnapshotID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.ids); n > 0 && h.ids[n-1] == id {
		h.ids = h.ids[:n-1]
		h.values = h.values[:n-1]
	}
}

// search returns the value of the first entry recorded in generation id or
// later. id must be >= 1.
func (h *History) search(id SnapshotID) (Amount, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// ids are integers, so "first id >= id" is "first id > id-1".
	i := UpperBound(h.ids, id-1)
	if i == len(h.ids) {
		return Amount{}, false
	}
	return h.values[i], true
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ids)
}

// Last returns the most recent recorded id, or NoSnapshot when empty.
func (h *History) Last() (SnapshotID, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.ids) == 0 {
		return NoSnapshot, false
	}
	return h.ids[len(h.ids)-1], true
}

// Entries returns a copy of the recorded entries, oldest first.
func (h *History) Entries(entity Entity) []Checkpoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Checkpoint, len(h.ids))
	for i := range h.ids {
		out[i] = Checkpoint{Entity: entity, SnapshotID: h.ids[i], Value: h.values[i]}
	}
	return out
}
