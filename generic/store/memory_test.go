package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/snapshot-ledger/generic"
)

func TestMemory_UnknownAccountIsZero(t *testing.T) {
	m := NewMemory()
	bal, err := m.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	accounts, err := m.Accounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts, "reading a balance must not create the account")
}

func TestMemory_CheckpointsStayOrderedBySnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for _, id := range []generic.SnapshotID{2, 0, 3, 1} {
		require.NoError(t, m.AppendCheckpoint(ctx, generic.Checkpoint{
			Entity:     generic.AccountEntity("a"),
			SnapshotID: id,
			Value:      generic.NewAmountFromInt(int64(id)),
		}))
	}

	cps, err := m.Checkpoints(ctx)
	require.NoError(t, err)
	require.Len(t, cps, 4)
	for i, cp := range cps {
		assert.Equal(t, generic.SnapshotID(i), cp.SnapshotID)
	}
}

func TestMemory_LatestSnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	latest, err := m.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, generic.NoSnapshot, latest)

	require.NoError(t, m.SaveSnapshot(ctx, generic.SnapshotRecord{ID: 1, TakenAt: time.Now()}))
	require.NoError(t, m.SaveSnapshot(ctx, generic.SnapshotRecord{ID: 2, TakenAt: time.Now()}))

	latest, err = m.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, generic.SnapshotID(2), latest)
}

func TestTxMemory_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	tm := NewTxMemory()
	require.NoError(t, tm.SetBalance(ctx, "a", generic.NewAmountFromInt(10)))
	require.NoError(t, tm.SetTotal(ctx, generic.NewAmountFromInt(10)))

	boom := errors.New("boom")
	err := tm.WithTx(ctx, func(s generic.Store) error {
		if err := s.SetBalance(ctx, "a", generic.NewAmountFromInt(99)); err != nil {
			return err
		}
		if err := s.SetBalance(ctx, "b", generic.NewAmountFromInt(1)); err != nil {
			return err
		}
		if err := s.SetTotal(ctx, generic.NewAmountFromInt(100)); err != nil {
			return err
		}
		if err := s.AppendCheckpoint(ctx, generic.Checkpoint{Entity: generic.TotalEntity(), SnapshotID: 1}); err != nil {
			return err
		}
		if err := s.SaveSnapshot(ctx, generic.SnapshotRecord{ID: 1}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, _ := tm.Balance(ctx, "a")
	assert.Equal(t, "10", bal.String())
	total, _ := tm.Total(ctx)
	assert.Equal(t, "10", total.String())
	accounts, _ := tm.Accounts(ctx)
	assert.Equal(t, []generic.AccountID{"a"}, accounts)
	cps, _ := tm.Checkpoints(ctx)
	assert.Empty(t, cps)
	latest, _ := tm.LatestSnapshot(ctx)
	assert.Equal(t, generic.NoSnapshot, latest)
}

func TestTxMemory_CommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	tm := NewTxMemory()

	err := tm.WithTx(ctx, func(s generic.Store) error {
		bal, err := s.Balance(ctx, "a")
		if err != nil {
			return err
		}
		return s.SetBalance(ctx, "a", bal.Add(generic.NewAmountFromInt(5)))
	})
	require.NoError(t, err)

	bal, _ := tm.Balance(ctx, "a")
	assert.Equal(t, "5", bal.String())
}

func TestTxMemory_SnapshotsListedInOrder(t *testing.T) {
	ctx := context.Background()
	tm := NewTxMemory()
	require.NoError(t, tm.SaveSnapshot(ctx, generic.SnapshotRecord{ID: 1}))

	err := tm.WithTx(ctx, func(s generic.Store) error {
		if err := s.SaveSnapshot(ctx, generic.SnapshotRecord{ID: 2}); err != nil {
			return err
		}
		recs, err := s.Snapshots(ctx)
		if err != nil {
			return err
		}
		assert.Len(t, recs, 2)
		return nil
	})
	require.NoError(t, err)

	recs, err := tm.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, generic.SnapshotID(1), recs[0].ID)
	assert.Equal(t, generic.SnapshotID(2), recs[1].ID)
}
