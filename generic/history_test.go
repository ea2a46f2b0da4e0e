package generic

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpperBound(t *testing.T) {
	ids := []SnapshotID{1, 3, 5}

	tests := []struct {
		name   string
		ids    []SnapshotID
		target SnapshotID
		want   int
	}{
		{"empty", nil, 5, 0},
		{"below all", ids, 0, 0},
		{"equal first", ids, 1, 1},
		{"between", ids, 2, 1},
		{"equal middle", ids, 3, 2},
		{"equal last", ids, 5, 3},
		{"above all", ids, 9, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UpperBound(tt.ids, tt.target))
		})
	}
}

func TestHistory_AppendIfAfter_FirstWriteWins(t *testing.T) {
	h := NewHistory()

	assert.True(t, h.appendIfAfter(1, NewAmountFromInt(100)))
	assert.False(t, h.appendIfAfter(1, NewAmountFromInt(50)), "same generation must not append twice")
	assert.False(t, h.appendIfAfter(0, NewAmountFromInt(7)), "older generation must not append")
	assert.True(t, h.appendIfAfter(4, NewAmountFromInt(70)))

	entries := h.Entries(AccountEntity("a"))
	require.Len(t, entries, 2)
	assert.Equal(t, SnapshotID(1), entries[0].SnapshotID)
	assert.True(t, entries[0].Value.Equal(NewAmountFromInt(100)))
	assert.Equal(t, SnapshotID(4), entries[1].SnapshotID)
	assert.True(t, entries[1].Value.Equal(NewAmountFromInt(70)))

	last, ok := h.Last()
	assert.True(t, ok)
	assert.Equal(t, SnapshotID(4), last)
}

func TestHistory_Search(t *testing.T) {
	// GIVEN: entries recorded in generations 0, 1 and 4
	h := NewHistory()
	h.appendIfAfter(0, NewAmountFromInt(0))
	h.appendIfAfter(1, NewAmountFromInt(100))
	h.appendIfAfter(4, NewAmountFromInt(70))

	tests := []struct {
		id    SnapshotID
		want  int64
		found bool
	}{
		{1, 100, true},
		{2, 70, true}, // untouched in 2 and 3: the generation 4 entry answers
		{3, 70, true},
		{4, 70, true},
		{5, 0, false},
	}
	for _, tt := range tests {
		got, found := h.search(tt.id)
		assert.Equal(t, tt.found, found, "snapshot %d", tt.id)
		if tt.found {
			assert.True(t, got.Equal(NewAmountFromInt(tt.want)), "snapshot %d: got %v", tt.id, got)
		}
	}
}

func TestHistory_LastOnEmpty(t *testing.T) {
	h := NewHistory()
	last, ok := h.Last()
	assert.False(t, ok)
	assert.Equal(t, NoSnapshot, last)
	assert.Equal(t, 0, h.Len())
}

func TestHistory_DropLast_OnlyMatchingGeneration(t *testing.T) {
	h := NewHistory()
	h.appendIfAfter(1, NewAmountFromInt(10))
	h.appendIfAfter(2, NewAmountFromInt(20))

	h.dropLast(1)
	assert.Equal(t, 2, h.Len(), "entry 1 is not the newest, must stay")

	h.dropLast(2)
	assert.Equal(t, 1, h.Len())
	last, _ := h.Last()
	assert.Equal(t, SnapshotID(1), last)
}

func TestHistory_ConcurrentReadersSeeWholePairs(t *testing.T) {
	// Each entry stores its own id as value, so a torn pair is detectable.
	h := NewHistory()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 2000; i++ {
			h.appendIfAfter(SnapshotID(i), NewAmountFromInt(int64(i)))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				for _, cp := range h.Entries(TotalEntity()) {
					if !cp.Value.Equal(NewAmountFromInt(int64(cp.SnapshotID))) {
						t.Errorf("torn entry: id %d value %v", cp.SnapshotID, cp.Value)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2000, h.Len())
}
