/*
Package generic provides the point-in-time balance engine.

PURPOSE:
  This package tracks a balance per account and an aggregate total, and
  answers "what was the balance at snapshot S?" for every snapshot ever
  taken, without copying every balance at every snapshot.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: An exact decimal quantity (no unit, no currency)
  - AccountID: Opaque account key
  - SnapshotID: Monotonic snapshot boundary identifier (0 = none)
  - Entity: Either an account or the aggregate total
  - Checkpoint: One recorded (snapshot, value) history entry

DESIGN PRINCIPLES:
  1. Sparsity: History grows with mutations, never with snapshots
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing accounts/snapshots
  4. Ordering: Values are recorded BEFORE they change, on one code path

USAGE:
  ledger := generic.NewLedger(store.NewTxMemory(), generic.NewEventBus())
  ledger.Credit(ctx, "alice", generic.NewAmountFromInt(100))
  id, _ := ledger.TakeSnapshot(ctx)
  ledger.Debit(ctx, "alice", generic.NewAmountFromInt(30))
  was, _ := ledger.BalanceAt(ctx, "alice", id) // 100

SEE ALSO:
  - history.go: Per-entity sparse history and UpperBound
  - snapshot.go: Counter, recorder and point-in-time query
  - ledger.go: Live balances and the single mutation path
*/
package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Exact decimal quantity
// =============================================================================

type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value float64) Amount {
	return Amount{Value: decimal.NewFromFloat(value)}
}

func NewAmountFromInt(value int64) Amount {
	return Amount{Value: decimal.NewFromInt(value)}
}

// ParseAmount parses a decimal string such as "12.50".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Amount{Value: d}, nil
}

func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func ZeroAmount() Amount { return Amount{Value: decimal.Zero} }

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg()} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) String() string            { return a.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string

// SnapshotID identifies a snapshot boundary. The first real id is 1;
// 0 means "no snapshot taken yet" and is never a valid query target.
type SnapshotID uint64

// NoSnapshot is the counter value before the first snapshot.
const NoSnapshot SnapshotID = 0

// =============================================================================
// ENTITY - Owner of a live value and a history
// =============================================================================

type EntityKind string

const (
	EntityAccount EntityKind = "account"
	EntityTotal   EntityKind = "total"
)

// Entity is either an account (Account set) or the aggregate total.
type Entity struct {
	Kind    EntityKind
	Account AccountID
}

func AccountEntity(id AccountID) Entity { return Entity{Kind: EntityAccount, Account: id} }
func TotalEntity() Entity               { return Entity{Kind: EntityTotal} }

func (e Entity) String() string {
	if e.Kind == EntityTotal {
		return "total"
	}
	return "account:" + string(e.Account)
}

// =============================================================================
// CHECKPOINT - One history entry
// =============================================================================

// Checkpoint records that Entity held Value immediately before the first
// mutation it received while the counter stood at SnapshotID.
type Checkpoint struct {
	Entity     Entity
	SnapshotID SnapshotID
	Value      Amount
}

// SnapshotRecord is the journal row written for every snapshot boundary.
type SnapshotRecord struct {
	ID      SnapshotID
	TakenAt time.Time
}
