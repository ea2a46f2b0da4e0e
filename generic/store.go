/*
store.go - Persistence interface for live balances and the snapshot journal

PURPOSE:
  Defines the interface between the engine and the database. The Store
  owns the live values (per-account balance and the total) and a
  write-through journal of snapshots and checkpoints that lets the
  in-memory histories be rebuilt after a restart.

KEY INTERFACES:
  Store:   Live values + journal
  TxStore: Transactional operations (record + mutate atomically)

APPEND-ONLY JOURNAL:
  Checkpoints and snapshot records are only ever appended:
  - AppendCheckpoint(): one history entry
  - SaveSnapshot(): one snapshot boundary
  - NO Update() or Delete() methods exist for either

  Live values are the only thing that is overwritten (SetBalance, SetTotal).

ATOMIC MUTATIONS:
  A transfer writes up to two checkpoints and two balances. WithTx makes
  that all-or-nothing.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Durable single-writer SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: The only caller that mutates through a Store
*/
package generic

import "context"

// =============================================================================
// STORE - Live values and the snapshot journal
// =============================================================================

type Store interface {
	// Balance returns the live balance. Unknown accounts hold zero.
	Balance(ctx context.Context, account AccountID) (Amount, error)

	// Total returns the live aggregate total.
	Total(ctx context.Context) (Amount, error)

	// SetBalance overwrites the live balance of an account.
	SetBalance(ctx context.Context, account AccountID, value Amount) error

	// SetTotal overwrites the live aggregate total.
	SetTotal(ctx context.Context, value Amount) error

	// Accounts returns every account that ever held a balance, sorted.
	Accounts(ctx context.Context) ([]AccountID, error)

	// AppendCheckpoint journals one history entry.
	AppendCheckpoint(ctx context.Context, cp Checkpoint) error

	// Checkpoints returns every journaled entry ordered by snapshot id.
	Checkpoints(ctx context.Context) ([]Checkpoint, error)

	// SaveSnapshot journals a snapshot boundary.
	SaveSnapshot(ctx context.Context, rec SnapshotRecord) error

	// LatestSnapshot returns the highest journaled snapshot id, or NoSnapshot.
	LatestSnapshot(ctx context.Context) (SnapshotID, error)

	// Snapshots returns every journaled snapshot boundary, oldest first.
	Snapshots(ctx context.Context) ([]SnapshotRecord, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
