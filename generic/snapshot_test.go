package generic_test

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/snapshot-ledger/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func amt(n int64) generic.Amount {
	return generic.NewAmountFromInt(n)
}

func assertAmount(t *testing.T, want int64, got generic.Amount, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, amt(want).String(), got.String(), msgAndArgs...)
}

// =============================================================================
// COUNTER
// =============================================================================

func TestSnapshotCounter_StartsAtZeroAndIncrementsByOne(t *testing.T) {
	c := generic.NewSnapshotCounter()
	assert.Equal(t, generic.NoSnapshot, c.Current())

	for want := generic.SnapshotID(1); want <= 5; want++ {
		assert.Equal(t, want, c.Increment())
		assert.Equal(t, want, c.Current())
	}
}

func TestSnapshotCounter_Restore(t *testing.T) {
	c := generic.RestoreSnapshotCounter(7)
	assert.Equal(t, generic.SnapshotID(7), c.Current())
	assert.Equal(t, generic.SnapshotID(8), c.Increment())
}

func TestSnapshotCounter_ConcurrentIncrementsAreUnique(t *testing.T) {
	c := generic.NewSnapshotCounter()

	var (
		mu   sync.Mutex
		seen = make(map[generic.SnapshotID]bool)
		wg   sync.WaitGroup
	)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := c.Increment()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, generic.SnapshotID(1600), c.Current())
	assert.Len(t, seen, 1600)
}

func TestSnapshotCounter_OverflowPanics(t *testing.T) {
	c := generic.RestoreSnapshotCounter(math.MaxUint64)
	assert.Panics(t, func() { c.Increment() })
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestSnapshots_Validate(t *testing.T) {
	s := generic.NewSnapshots(nil)
	s.Take()
	s.Take()

	err := s.Validate(0)
	assert.ErrorIs(t, err, generic.ErrInvalidSnapshotID)

	err = s.Validate(3)
	assert.ErrorIs(t, err, generic.ErrUnknownSnapshotID)
	var snapErr *generic.SnapshotError
	require.ErrorAs(t, err, &snapErr)
	assert.Equal(t, generic.SnapshotID(3), snapErr.Requested)
	assert.Equal(t, generic.SnapshotID(2), snapErr.Current)

	assert.NoError(t, s.Validate(1))
	assert.NoError(t, s.Validate(2))
}

func TestSnapshots_ValueAt_RejectsBadIDs(t *testing.T) {
	s := generic.NewSnapshots(nil)

	_, err := s.ValueAt(generic.AccountEntity("a"), 1, amt(5))
	assert.ErrorIs(t, err, generic.ErrUnknownSnapshotID, "no snapshot taken yet")

	s.Take()
	_, err = s.ValueAt(generic.AccountEntity("a"), 0, amt(5))
	assert.ErrorIs(t, err, generic.ErrInvalidSnapshotID)
}

// =============================================================================
// RECORDER
// =============================================================================

func TestSnapshots_Record_OncePerGeneration(t *testing.T) {
	s := generic.NewSnapshots(nil)
	s.Take()

	cp, ok := s.RecordAccount("a", amt(100))
	require.True(t, ok)
	assert.Equal(t, generic.AccountEntity("a"), cp.Entity)
	assert.Equal(t, generic.SnapshotID(1), cp.SnapshotID)

	_, ok = s.RecordAccount("a", amt(70))
	assert.False(t, ok, "second mutation in the same generation must not record")
	_, ok = s.RecordAccount("a", amt(40))
	assert.False(t, ok)

	assert.Equal(t, 1, s.Count())
}

func TestSnapshots_Record_BeforeFirstSnapshotIsInert(t *testing.T) {
	// GIVEN: a mutation before any snapshot exists
	s := generic.NewSnapshots(nil)
	cp, ok := s.RecordAccount("a", amt(0))
	require.True(t, ok)
	assert.Equal(t, generic.NoSnapshot, cp.SnapshotID)

	// WHEN: snapshot 1 is taken and nothing else changes
	s.Take()

	// THEN: the generation 0 entry is never used; the live value answers
	v, err := s.ValueAt(generic.AccountEntity("a"), 1, amt(100))
	require.NoError(t, err)
	assertAmount(t, 100, v)
}

func TestSnapshots_Record_TotalIsSeparate(t *testing.T) {
	s := generic.NewSnapshots(nil)
	s.Take()

	_, ok := s.RecordAccount("a", amt(10))
	require.True(t, ok)
	_, ok = s.RecordTotal(amt(10))
	require.True(t, ok)

	assert.Len(t, s.Entries(generic.TotalEntity()), 1)
	assert.Len(t, s.Entries(generic.AccountEntity("a")), 1)
	assert.Empty(t, s.Entries(generic.AccountEntity("b")))
}

// =============================================================================
// QUERY - the three resolution cases
// =============================================================================

func TestSnapshots_ValueAt_NeverMutatedFallsBackToLive(t *testing.T) {
	s := generic.NewSnapshots(nil)
	s.Take()
	s.Take()

	v, err := s.ValueAt(generic.AccountEntity("ghost"), 1, amt(42))
	require.NoError(t, err)
	assertAmount(t, 42, v)
}

func TestSnapshots_ValueAt_MutatedOnceAfterSnapshot(t *testing.T) {
	// GIVEN: snapshot 1, then several mutations in generation 1
	s := generic.NewSnapshots(nil)
	id := s.Take()
	s.RecordAccount("a", amt(100))
	s.RecordAccount("a", amt(70))
	s.RecordAccount("a", amt(45))

	// THEN: only the first pre-value answers for snapshot 1
	v, err := s.ValueAt(generic.AccountEntity("a"), id, amt(20))
	require.NoError(t, err)
	assertAmount(t, 100, v)
}

func TestSnapshots_ValueAt_UntouchedAcrossSeveralSnapshots(t *testing.T) {
	// GIVEN: three snapshots with no mutation, then a mutation
	s := generic.NewSnapshots(nil)
	s.Take()
	s.Take()
	s.Take()
	s.RecordAccount("a", amt(100))

	// THEN: every earlier snapshot resolves to the generation 3 entry
	for id := generic.SnapshotID(1); id <= 3; id++ {
		v, err := s.ValueAt(generic.AccountEntity("a"), id, amt(1))
		require.NoError(t, err)
		assertAmount(t, 100, v, "snapshot %d", id)
	}
}

// =============================================================================
// LOAD (restore path)
// =============================================================================

func TestSnapshots_Load_RejectsCheckpointAheadOfCounter(t *testing.T) {
	s := generic.NewSnapshots(generic.RestoreSnapshotCounter(1))
	err := s.Load(generic.Checkpoint{Entity: generic.AccountEntity("a"), SnapshotID: 2, Value: amt(1)})
	assert.ErrorIs(t, err, generic.ErrCorruptJournal)
}

func TestSnapshots_Load_RejectsOutOfOrder(t *testing.T) {
	s := generic.NewSnapshots(generic.RestoreSnapshotCounter(3))
	require.NoError(t, s.Load(generic.Checkpoint{Entity: generic.AccountEntity("a"), SnapshotID: 3, Value: amt(1)}))

	err := s.Load(generic.Checkpoint{Entity: generic.AccountEntity("a"), SnapshotID: 2, Value: amt(1)})
	assert.ErrorIs(t, err, generic.ErrCorruptJournal)
}
