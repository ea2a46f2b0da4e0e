/*
Package sqlite provides a SQLite-backed implementation of generic.TxStore.

PURPOSE:
  Keeps the live balances, the live total and the snapshot journal on
  disk so a restarted process can rebuild its histories (Ledger.Restore)
  and keep answering point-in-time queries for old snapshots.

KEY TABLES:
  balances:    Live balance per account (overwritten)
  totals:      Single row with the live aggregate total (overwritten)
  checkpoints: Append-only history entries, one per entity per generation
  snapshots:   Append-only snapshot boundaries

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on checkpoints or snapshots
  - (kind, account_id, snapshot_id) is the checkpoint primary key, so a
    second entry for the same generation is rejected by the database

SINGLE WRITER:
  The pool is capped at one connection and a store mutex serializes
  callers. WAL mode keeps the file consistent across crashes.

USAGE:
  store, err := sqlite.New("./data/snapledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger, err := generic.OpenLedger(ctx, store, bus)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/snapshot-ledger/generic"
)

// ErrDuplicateCheckpoint is returned when a generation is journaled twice
// for the same entity.
var ErrDuplicateCheckpoint = errors.New("checkpoint already journaled for this generation")

// Store implements generic.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ generic.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Live balances
	CREATE TABLE IF NOT EXISTS balances (
		account_id TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Live total (single row)
	CREATE TABLE IF NOT EXISTS totals (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- History entries (append-only)
	CREATE TABLE IF NOT EXISTS checkpoints (
		kind TEXT NOT NULL,
		account_id TEXT NOT NULL DEFAULT '',
		snapshot_id INTEGER NOT NULL,
		value TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (kind, account_id, snapshot_id)
	);

	-- Restore replays checkpoints in generation order
	CREATE INDEX IF NOT EXISTS idx_checkpoints_snapshot
		ON checkpoints(snapshot_id);

	-- Snapshot boundaries (append-only)
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY,
		taken_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERY TARGETS
// =============================================================================

// conn is satisfied by both *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LIVE VALUES
// =============================================================================

func (s *Store) Balance(ctx context.Context, account generic.AccountID) (generic.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return balance(ctx, s.db, account)
}

func balance(ctx context.Context, c conn, account generic.AccountID) (generic.Amount, error) {
	var raw string
	err := c.QueryRowContext(ctx,
		"SELECT value FROM balances WHERE account_id = ?", string(account),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.ZeroAmount(), nil
	}
	if err != nil {
		return generic.Amount{}, fmt.Errorf("failed to load balance: %w", err)
	}
	return generic.ParseAmount(raw)
}

func (s *Store) Total(ctx context.Context) (generic.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return total(ctx, s.db)
}

func total(ctx context.Context, c conn) (generic.Amount, error) {
	var raw string
	err := c.QueryRowContext(ctx, "SELECT value FROM totals WHERE id = 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.ZeroAmount(), nil
	}
	if err != nil {
		return generic.Amount{}, fmt.Errorf("failed to load total: %w", err)
	}
	return generic.ParseAmount(raw)
}

func (s *Store) SetBalance(ctx context.Context, account generic.AccountID, value generic.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setBalance(ctx, s.db, account, value)
}

func setBalance(ctx context.Context, c conn, account generic.AccountID, value generic.Amount) error {
	_, err := c.ExecContext(ctx, `
		INSERT INTO balances (account_id, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, string(account), value.String(), now())
	if err != nil {
		return fmt.Errorf("failed to store balance: %w", err)
	}
	return nil
}

func (s *Store) SetTotal(ctx context.Context, value generic.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setTotal(ctx, s.db, value)
}

func setTotal(ctx context.Context, c conn, value generic.Amount) error {
	_, err := c.ExecContext(ctx, `
		INSERT INTO totals (id, value, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, value.String(), now())
	if err != nil {
		return fmt.Errorf("failed to store total: %w", err)
	}
	return nil
}

func (s *Store) Accounts(ctx context.Context) ([]generic.AccountID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return accounts(ctx, s.db)
}

func accounts(ctx context.Context, c conn) ([]generic.AccountID, error) {
	rows, err := c.QueryContext(ctx, "SELECT account_id FROM balances ORDER BY account_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []generic.AccountID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, generic.AccountID(id))
	}
	return ids, rows.Err()
}

// =============================================================================
// JOURNAL
// =============================================================================

// AppendCheckpoint journals a history entry. Append-only.
func (s *Store) AppendCheckpoint(ctx context.Context, cp generic.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendCheckpoint(ctx, s.db, cp)
}

func appendCheckpoint(ctx context.Context, c conn, cp generic.Checkpoint) error {
	_, err := c.ExecContext(ctx, `
		INSERT INTO checkpoints (kind, account_id, snapshot_id, value, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(cp.Entity.Kind), string(cp.Entity.Account), int64(cp.SnapshotID), cp.Value.String(), now())
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateCheckpoint
		}
		return fmt.Errorf("failed to append checkpoint: %w", err)
	}
	return nil
}

func (s *Store) Checkpoints(ctx context.Context) ([]generic.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return checkpoints(ctx, s.db)
}

func checkpoints(ctx context.Context, c conn) ([]generic.Checkpoint, error) {
	rows, err := c.QueryContext(ctx, `
		SELECT kind, account_id, snapshot_id, value
		FROM checkpoints
		ORDER BY snapshot_id ASC, kind ASC, account_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	var out []generic.Checkpoint
	for rows.Next() {
		var (
			kind, account, raw string
			id                 int64
		)
		if err := rows.Scan(&kind, &account, &id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		value, err := generic.ParseAmount(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, generic.Checkpoint{
			Entity:     generic.Entity{Kind: generic.EntityKind(kind), Account: generic.AccountID(account)},
			SnapshotID: generic.SnapshotID(id),
			Value:      value,
		})
	}
	return out, rows.Err()
}

func (s *Store) SaveSnapshot(ctx context.Context, rec generic.SnapshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSnapshot(ctx, s.db, rec)
}

func saveSnapshot(ctx context.Context, c conn, rec generic.SnapshotRecord) error {
	_, err := c.ExecContext(ctx,
		"INSERT INTO snapshots (id, taken_at) VALUES (?, ?)",
		int64(rec.ID), rec.TakenAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *Store) LatestSnapshot(ctx context.Context) (generic.SnapshotID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return latestSnapshot(ctx, s.db)
}

func latestSnapshot(ctx context.Context, c conn) (generic.SnapshotID, error) {
	var id sql.NullInt64
	if err := c.QueryRowContext(ctx, "SELECT MAX(id) FROM snapshots").Scan(&id); err != nil {
		return generic.NoSnapshot, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	if !id.Valid {
		return generic.NoSnapshot, nil
	}
	return generic.SnapshotID(id.Int64), nil
}

// Snapshots returns every snapshot boundary, oldest first.
func (s *Store) Snapshots(ctx context.Context) ([]generic.SnapshotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshots(ctx, s.db)
}

func snapshots(ctx context.Context, c conn) ([]generic.SnapshotRecord, error) {
	rows, err := c.QueryContext(ctx, "SELECT id, taken_at FROM snapshots ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []generic.SnapshotRecord
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse snapshot time: %w", err)
		}
		out = append(out, generic.SnapshotRecord{ID: generic.SnapshotID(id), TakenAt: at})
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Balance(ctx context.Context, account generic.AccountID) (generic.Amount, error) {
	return balance(ctx, ts.tx, account)
}

func (ts *txStore) Total(ctx context.Context) (generic.Amount, error) {
	return total(ctx, ts.tx)
}

func (ts *txStore) SetBalance(ctx context.Context, account generic.AccountID, value generic.Amount) error {
	return setBalance(ctx, ts.tx, account, value)
}

func (ts *txStore) SetTotal(ctx context.Context, value generic.Amount) error {
	return setTotal(ctx, ts.tx, value)
}

func (ts *txStore) Accounts(ctx context.Context) ([]generic.AccountID, error) {
	return accounts(ctx, ts.tx)
}

func (ts *txStore) AppendCheckpoint(ctx context.Context, cp generic.Checkpoint) error {
	return appendCheckpoint(ctx, ts.tx, cp)
}

func (ts *txStore) Checkpoints(ctx context.Context) ([]generic.Checkpoint, error) {
	return checkpoints(ctx, ts.tx)
}

func (ts *txStore) SaveSnapshot(ctx context.Context, rec generic.SnapshotRecord) error {
	return saveSnapshot(ctx, ts.tx, rec)
}

func (ts *txStore) LatestSnapshot(ctx context.Context) (generic.SnapshotID, error) {
	return latestSnapshot(ctx, ts.tx)
}

func (ts *txStore) Snapshots(ctx context.Context) ([]generic.SnapshotRecord, error) {
	return snapshots(ctx, ts.tx)
}

// =============================================================================
// HELPERS
// =============================================================================

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
