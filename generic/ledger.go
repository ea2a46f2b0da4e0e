/*
ledger.go - Live balances with point-in-time queries

PURPOSE:
  The Ledger owns the live balances (through a Store) and the snapshot
  histories (through Snapshots). It is the only thing allowed to change
  a balance, and it always records the old value first.

CRITICAL INVARIANTS:
  1. RECORD BEFORE MUTATE: Every credit, debit and transfer goes through
     apply(), which hands each pre-mutation value to the recorder before
     writing the new value. There is no other write path.
  2. TOTAL ORDER: Mutations and TakeSnapshot hold the write lock, so a
     snapshot boundary never splits a mutation.
  3. SUPPLY: The total is recorded and changed only when supply changes
     (credit, debit). A transfer leaves it untouched.
  4. ATOMIC: Checkpoints and new balances of one operation are written in
     one store transaction.

EXAMPLE FLOW:
  1. Credit alice 100      alice=100  records (0, 0), inert
  2. TakeSnapshot          -> 1
  3. Debit alice 30        records (1, 100), alice=70
  4. Debit alice 5         generation 1 already recorded, alice=65
  5. BalanceAt(alice, 1)   first entry with id >= 1 is (1, 100) -> 100
  6. TakeSnapshot          -> 2
  7. BalanceAt(alice, 2)   no entry with id >= 2 -> live 65

SEE ALSO:
  - snapshot.go: Recorder and query
  - store.go: Persistence interface
*/
package generic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warp/snapshot-ledger/logx"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	mu    sync.RWMutex
	store TxStore
	snaps *Snapshots
	bus   *EventBus
	now   func() time.Time
}

// NewLedger creates a ledger over store with a fresh snapshot counter.
// bus may be nil when nobody listens for snapshot events.
func NewLedger(store TxStore, bus *EventBus) *Ledger {
	return &Ledger{
		store: store,
		snaps: NewSnapshots(NewSnapshotCounter()),
		bus:   bus,
		now:   time.Now,
	}
}

// OpenLedger creates a ledger and rebuilds its histories from the store.
func OpenLedger(ctx context.Context, store TxStore, bus *EventBus) (*Ledger, error) {
	l := NewLedger(store, bus)
	if err := l.Restore(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Restore replaces the in-memory counter and histories with the ones
// journaled in the store.
func (l *Ledger) Restore(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	latest, err := l.store.LatestSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}
	cps, err := l.store.Checkpoints(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoints: %w", err)
	}

	snaps := NewSnapshots(RestoreSnapshotCounter(latest))
	for _, cp := range cps {
		if err := snaps.Load(cp); err != nil {
			return err
		}
	}
	l.snaps = snaps

	logx.Info("Ledger", "restored snapshot=%d checkpoints=%d", latest, len(cps))
	return nil
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// TakeSnapshot opens a new snapshot boundary and returns its id.
func (l *Ledger) TakeSnapshot(ctx context.Context) (SnapshotID, error) {
	rec, err := l.TakeSnapshotRecord(ctx)
	return rec.ID, err
}

// TakeSnapshotRecord is TakeSnapshot returning the journaled record.
func (l *Ledger) TakeSnapshotRecord(ctx context.Context) (SnapshotRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := SnapshotRecord{ID: l.snaps.Current() + 1, TakenAt: l.now().UTC()}
	if err := l.store.SaveSnapshot(ctx, rec); err != nil {
		return SnapshotRecord{}, fmt.Errorf("save snapshot %d: %w", rec.ID, err)
	}
	l.snaps.Take()

	if l.bus != nil {
		l.bus.Publish(SnapshotTaken{ID: rec.ID, TakenAt: rec.TakenAt})
	}
	return rec, nil
}

// CurrentSnapshot returns the id of the most recent snapshot, or NoSnapshot.
func (l *Ledger) CurrentSnapshot() SnapshotID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snaps.Current()
}

// Snapshots lists every journaled snapshot boundary, oldest first.
func (l *Ledger) Snapshots(ctx context.Context) ([]SnapshotRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.Snapshots(ctx)
}

// BalanceAt returns the balance account held at snapshot id.
func (l *Ledger) BalanceAt(ctx context.Context, account AccountID, id SnapshotID) (Amount, error) {
	if account == "" {
		return Amount{}, ErrInvalidAccount
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	value, found, err := l.snaps.Lookup(AccountEntity(account), id)
	if err != nil || found {
		return value, err
	}
	return l.store.Balance(ctx, account)
}

// TotalAt returns the aggregate total at snapshot id.
func (l *Ledger) TotalAt(ctx context.Context, id SnapshotID) (Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	value, found, err := l.snaps.Lookup(TotalEntity(), id)
	if err != nil || found {
		return value, err
	}
	return l.store.Total(ctx)
}

// AccountHistory returns the recorded checkpoints of one account.
func (l *Ledger) AccountHistory(account AccountID) []Checkpoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snaps.Entries(AccountEntity(account))
}

// TotalHistory returns the recorded checkpoints of the total.
func (l *Ledger) TotalHistory() []Checkpoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snaps.Entries(TotalEntity())
}

// CheckpointCount returns how many checkpoints are held across all entities.
func (l *Ledger) CheckpointCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snaps.Count()
}

// =============================================================================
// LIVE VALUES
// =============================================================================

func (l *Ledger) Balance(ctx context.Context, account AccountID) (Amount, error) {
	if account == "" {
		return Amount{}, ErrInvalidAccount
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.Balance(ctx, account)
}

func (l *Ledger) Total(ctx context.Context) (Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.Total(ctx)
}

func (l *Ledger) Accounts(ctx context.Context) ([]AccountID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.Accounts(ctx)
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Credit adds amount to account, creating supply.
func (l *Ledger) Credit(ctx context.Context, account AccountID, amount Amount) error {
	if err := validate(amount, account); err != nil {
		return err
	}
	return l.apply(ctx, []change{{account: account, delta: amount}})
}

// Debit removes amount from account, destroying supply.
func (l *Ledger) Debit(ctx context.Context, account AccountID, amount Amount) error {
	if err := validate(amount, account); err != nil {
		return err
	}
	return l.apply(ctx, []change{{account: account, delta: amount.Neg()}})
}

// Transfer moves amount from one account to another. Supply is unchanged.
func (l *Ledger) Transfer(ctx context.Context, from, to AccountID, amount Amount) error {
	if err := validate(amount, from, to); err != nil {
		return err
	}
	if from == to {
		return ErrSelfTransfer
	}
	return l.apply(ctx, []change{
		{account: from, delta: amount.Neg()},
		{account: to, delta: amount},
	})
}

func validate(amount Amount, accounts ...AccountID) error {
	for _, a := range accounts {
		if a == "" {
			return ErrInvalidAccount
		}
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}

type change struct {
	account AccountID
	delta   Amount
}

// apply is the single mutation path: read, check, record, then write.
//
// If the store transaction fails, checkpoints recorded by this call are
// dropped again so memory never holds an entry the journal lacks.
func (l *Ledger) apply(ctx context.Context, changes []change) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var recorded []Checkpoint
	err := l.store.WithTx(ctx, func(s Store) error {
		pre := make([]Amount, len(changes))
		supply := ZeroAmount()
		for i, c := range changes {
			bal, err := s.Balance(ctx, c.account)
			if err != nil {
				return fmt.Errorf("load balance %s: %w", c.account, err)
			}
			if bal.Add(c.delta).IsNegative() {
				return &InsufficientBalanceError{Account: c.account, Available: bal, Requested: c.delta.Neg()}
			}
			pre[i] = bal
			supply = supply.Add(c.delta)
		}

		touchTotal := !supply.IsZero()
		var total Amount
		if touchTotal {
			var err error
			if total, err = s.Total(ctx); err != nil {
				return fmt.Errorf("load total: %w", err)
			}
		}

		// Record.
		record := func(e Entity, value Amount) error {
			cp, ok := l.snaps.Record(e, value)
			if !ok {
				return nil
			}
			recorded = append(recorded, cp)
			if err := s.AppendCheckpoint(ctx, cp); err != nil {
				return fmt.Errorf("journal checkpoint %s@%d: %w", cp.Entity, cp.SnapshotID, err)
			}
			return nil
		}
		for i, c := range changes {
			if err := record(AccountEntity(c.account), pre[i]); err != nil {
				return err
			}
		}
		if touchTotal {
			if err := record(TotalEntity(), total); err != nil {
				return err
			}
		}

		// Mutate.
		for i, c := range changes {
			if err := s.SetBalance(ctx, c.account, pre[i].Add(c.delta)); err != nil {
				return fmt.Errorf("store balance %s: %w", c.account, err)
			}
		}
		if touchTotal {
			if err := s.SetTotal(ctx, total.Add(supply)); err != nil {
				return fmt.Errorf("store total: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		l.snaps.discard(recorded)
	}
	return err
}
