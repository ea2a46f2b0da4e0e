package generic

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// =============================================================================
// SNAPSHOT COUNTER - Monotonic id source
// =============================================================================

// SnapshotCounter hands out snapshot ids. It starts at 0 (no snapshot) and
// only ever moves up by one.
type SnapshotCounter struct {
	v atomic.Uint64
}

func NewSnapshotCounter() *SnapshotCounter {
	return &SnapshotCounter{}
}

// RestoreSnapshotCounter rebuilds a counter that already issued ids up to last.
// Used on startup from the snapshot journal.
func RestoreSnapshotCounter(last SnapshotID) *SnapshotCounter {
	c := &SnapshotCounter{}
	c.v.Store(uint64(last))
	return c
}

// Current returns the last id handed out by Increment, or 0.
func (c *SnapshotCounter) Current() SnapshotID {
	return SnapshotID(c.v.Load())
}

// Increment advances the counter and returns the new id.
func (c *SnapshotCounter) Increment() SnapshotID {
	for {
		cur := c.v.Load()
		if cur == math.MaxUint64 {
			panic("generic: snapshot counter overflow")
		}
		if c.v.CompareAndSwap(cur, cur+1) {
			return SnapshotID(cur + 1)
		}
	}
}

// =============================================================================
// SNAPSHOTS - History registry, recorder and point-in-time query
// =============================================================================

// Snapshots owns one History per account plus one for the total, and the
// counter they are keyed against.
//
// It does not know live values. The ledger hands it the pre-mutation value
// when recording, and the live value when a query falls through.
type Snapshots struct {
	counter *SnapshotCounter

	mu       sync.RWMutex
	accounts map[AccountID]*History
	total    *History
}

func NewSnapshots(counter *SnapshotCounter) *Snapshots {
	if counter == nil {
		counter = NewSnapshotCounter()
	}
	return &Snapshots{
		counter:  counter,
		accounts: make(map[AccountID]*History),
		total:    NewHistory(),
	}
}

// Current returns the counter value.
func (s *Snapshots) Current() SnapshotID {
	return s.counter.Current()
}

// Take opens a new snapshot generation and returns its id.
func (s *Snapshots) Take() SnapshotID {
	return s.counter.Increment()
}

// history returns the entity's history, creating account histories on first use.
func (s *Snapshots) history(e Entity) *History {
	if e.Kind == EntityTotal {
		return s.total
	}

	s.mu.RLock()
	h, ok := s.accounts[e.Account]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.accounts[e.Account]; ok {
		return h
	}
	h = NewHistory()
	s.accounts[e.Account] = h
	return h
}

// existing returns the entity's history without creating it.
func (s *Snapshots) existing(e Entity) *History {
	if e.Kind == EntityTotal {
		return s.total
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[e.Account]
}

// -----------------------------------------------------------------------------
// Recorder
// -----------------------------------------------------------------------------

// Record must be called with the entity's value before it changes. It
// appends (Current, current) unless an entry for the current generation
// already exists, and returns the appended checkpoint.
//
// While the counter is still 0 the entry is stored but can never be
// reached by a query, since id 0 is rejected.
func (s *Snapshots) Record(e Entity, current Amount) (Checkpoint, bool) {
	cur := s.counter.Current()
	if !s.history(e).appendIfAfter(cur, current) {
		return Checkpoint{}, false
	}
	return Checkpoint{Entity: e, SnapshotID: cur, Value: current}, true
}

func (s *Snapshots) RecordAccount(id AccountID, current Amount) (Checkpoint, bool) {
	return s.Record(AccountEntity(id), current)
}

func (s *Snapshots) RecordTotal(current Amount) (Checkpoint, bool) {
	return s.Record(TotalEntity(), current)
}

// discard removes checkpoints just returned by Record whose mutation did
// not commit. Each must still be the newest entry of its history.
func (s *Snapshots) discard(cps []Checkpoint) {
	for i := len(cps) - 1; i >= 0; i-- {
		if h := s.existing(cps[i].Entity); h != nil {
			h.dropLast(cps[i].SnapshotID)
		}
	}
}

// Load replays a journaled checkpoint into memory on startup.
func (s *Snapshots) Load(cp Checkpoint) error {
	if cp.SnapshotID > s.counter.Current() {
		return fmt.Errorf("%w: checkpoint %s@%d is ahead of counter %d",
			ErrCorruptJournal, cp.Entity, cp.SnapshotID, s.counter.Current())
	}
	if !s.history(cp.Entity).appendIfAfter(cp.SnapshotID, cp.Value) {
		return fmt.Errorf("%w: checkpoint %s@%d out of order",
			ErrCorruptJournal, cp.Entity, cp.SnapshotID)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Query
// -----------------------------------------------------------------------------

// Validate checks that id was issued: 1 <= id <= Current.
func (s *Snapshots) Validate(id SnapshotID) error {
	cur := s.counter.Current()
	switch {
	case id == NoSnapshot:
		return &SnapshotError{Requested: id, Current: cur, Err: ErrInvalidSnapshotID}
	case id > cur:
		return &SnapshotError{Requested: id, Current: cur, Err: ErrUnknownSnapshotID}
	}
	return nil
}

// Lookup returns the value the entity held at snapshot id, if it was
// recorded. found == false means the entity has not changed since id and
// its live value is the answer.
//
// The answer is the first entry recorded at or after generation id. An
// entry (g, v) is written on the first change after snapshot g, so v is the
// value at snapshot g. No entry between id and g means the entity did not
// change in between, so v is also the value at snapshot id.
func (s *Snapshots) Lookup(e Entity, id SnapshotID) (value Amount, found bool, err error) {
	if err := s.Validate(id); err != nil {
		return Amount{}, false, err
	}
	h := s.existing(e)
	if h == nil {
		return Amount{}, false, nil
	}
	value, found = h.search(id)
	return value, found, nil
}

// ValueAt resolves the entity's value at snapshot id, falling back to live.
func (s *Snapshots) ValueAt(e Entity, id SnapshotID, live Amount) (Amount, error) {
	value, found, err := s.Lookup(e, id)
	if err != nil {
		return Amount{}, err
	}
	if !found {
		return live, nil
	}
	return value, nil
}

// -----------------------------------------------------------------------------
// Introspection
// -----------------------------------------------------------------------------

// Entries returns the recorded checkpoints of one entity.
func (s *Snapshots) Entries(e Entity) []Checkpoint {
	h := s.existing(e)
	if h == nil {
		return []Checkpoint{}
	}
	return h.Entries(e)
}

// Count returns the number of checkpoints across every history.
func (s *Snapshots) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.total.Len()
	for _, h := range s.accounts {
		n += h.Len()
	}
	return n
}
