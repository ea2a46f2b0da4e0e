// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/snapshot-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	balances    map[generic.AccountID]generic.Amount
	total       generic.Amount
	checkpoints []generic.Checkpoint
	snapshots   []generic.SnapshotRecord
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[generic.AccountID]generic.Amount),
		total:    generic.ZeroAmount(),
	}
}

func (m *Memory) Balance(_ context.Context, account generic.AccountID) (generic.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceLocked(account), nil
}

func (m *Memory) balanceLocked(account generic.AccountID) generic.Amount {
	if b, ok := m.balances[account]; ok {
		return b
	}
	return generic.ZeroAmount()
}

func (m *Memory) Total(_ context.Context) (generic.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total, nil
}

func (m *Memory) SetBalance(_ context.Context, account generic.AccountID, value generic.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = value
	return nil
}

func (m *Memory) SetTotal(_ context.Context, value generic.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = value
	return nil
}

func (m *Memory) Accounts(_ context.Context) ([]generic.AccountID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountsLocked(), nil
}

func (m *Memory) accountsLocked() []generic.AccountID {
	ids := make([]generic.AccountID, 0, len(m.balances))
	for id := range m.balances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AppendCheckpoint journals a history entry. Append-only.
func (m *Memory) AppendCheckpoint(_ context.Context, cp generic.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCheckpointLocked(cp)
	return nil
}

func (m *Memory) appendCheckpointLocked(cp generic.Checkpoint) {
	// Binary search keeps the journal ordered by snapshot id.
	i := sort.Search(len(m.checkpoints), func(i int) bool {
		return m.checkpoints[i].SnapshotID > cp.SnapshotID
	})
	m.checkpoints = append(m.checkpoints, generic.Checkpoint{})
	copy(m.checkpoints[i+1:], m.checkpoints[i:])
	m.checkpoints[i] = cp
}

func (m *Memory) Checkpoints(_ context.Context) ([]generic.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]generic.Checkpoint, len(m.checkpoints))
	copy(out, m.checkpoints)
	return out, nil
}

func (m *Memory) SaveSnapshot(_ context.Context, rec generic.SnapshotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, rec)
	return nil
}

func (m *Memory) LatestSnapshot(_ context.Context) (generic.SnapshotID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestLocked(), nil
}

func (m *Memory) Snapshots(_ context.Context) ([]generic.SnapshotRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotsLocked(), nil
}

func (m *Memory) snapshotsLocked() []generic.SnapshotRecord {
	out := make([]generic.SnapshotRecord, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}

func (m *Memory) latestLocked() generic.SnapshotID {
	if len(m.snapshots) == 0 {
		return generic.NoSnapshot
	}
	return m.snapshots[len(m.snapshots)-1].ID
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	saved := tm.save()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(saved)
		return err
	}
	return nil
}

type memoryState struct {
	balances    map[generic.AccountID]generic.Amount
	total       generic.Amount
	checkpoints int
	snapshots   int
}

// save captures what a rollback needs. The journals are append-only, so
// their lengths are enough.
func (tm *TxMemory) save() memoryState {
	balances := make(map[generic.AccountID]generic.Amount, len(tm.balances))
	for k, v := range tm.balances {
		balances[k] = v
	}
	return memoryState{
		balances:    balances,
		total:       tm.total,
		checkpoints: len(tm.checkpoints),
		snapshots:   len(tm.snapshots),
	}
}

func (tm *TxMemory) restore(s memoryState) {
	tm.balances = s.balances
	tm.total = s.total
	tm.snapshots = tm.snapshots[:s.snapshots]
	// Checkpoints are inserted in id order, and everything added inside the
	// transaction carries the newest id, so it sits at the tail.
	tm.checkpoints = tm.checkpoints[:s.checkpoints]
}

// txMemoryView runs store calls against the parent while WithTx holds its lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Balance(_ context.Context, account generic.AccountID) (generic.Amount, error) {
	return tv.parent.balanceLocked(account), nil
}

func (tv *txMemoryView) Total(_ context.Context) (generic.Amount, error) {
	return tv.parent.total, nil
}

func (tv *txMemoryView) SetBalance(_ context.Context, account generic.AccountID, value generic.Amount) error {
	tv.parent.balances[account] = value
	return nil
}

func (tv *txMemoryView) SetTotal(_ context.Context, value generic.Amount) error {
	tv.parent.total = value
	return nil
}

func (tv *txMemoryView) Accounts(_ context.Context) ([]generic.AccountID, error) {
	return tv.parent.accountsLocked(), nil
}

func (tv *txMemoryView) AppendCheckpoint(_ context.Context, cp generic.Checkpoint) error {
	tv.parent.appendCheckpointLocked(cp)
	return nil
}

func (tv *txMemoryView) Checkpoints(_ context.Context) ([]generic.Checkpoint, error) {
	out := make([]generic.Checkpoint, len(tv.parent.checkpoints))
	copy(out, tv.parent.checkpoints)
	return out, nil
}

func (tv *txMemoryView) SaveSnapshot(_ context.Context, rec generic.SnapshotRecord) error {
	tv.parent.snapshots = append(tv.parent.snapshots, rec)
	return nil
}

func (tv *txMemoryView) LatestSnapshot(_ context.Context) (generic.SnapshotID, error) {
	return tv.parent.latestLocked(), nil
}

func (tv *txMemoryView) Snapshots(_ context.Context) ([]generic.SnapshotRecord, error) {
	return tv.parent.snapshotsLocked(), nil
}
