/*
errors.go - Centralized error types for the snapshot ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match them with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Snapshot errors - Queries against ids that were never issued
  2. Validation errors - Bad amounts, accounts, transfers
  3. Balance errors - Debits that would go negative
  4. Journal errors - Stored checkpoints that cannot be replayed

  Categories 1-3 are not retryable: the caller must fix its input. Store
  failures are wrapped with context and passed through unchanged.

SEE ALSO:
  - snapshot.go: Raises SnapshotError
  - ledger.go: Raises validation and balance errors
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidSnapshotID is returned when a query names snapshot 0.
	ErrInvalidSnapshotID = errors.New("invalid snapshot id")

	// ErrUnknownSnapshotID is returned when a query names a snapshot that
	// has not been taken yet.
	ErrUnknownSnapshotID = errors.New("unknown snapshot id")

	// ErrInvalidAmount is returned for zero, negative or unparsable amounts.
	ErrInvalidAmount = errors.New("invalid amount: must be a positive decimal")

	// ErrInvalidAccount is returned for an empty account key.
	ErrInvalidAccount = errors.New("invalid account id")

	// ErrSelfTransfer is returned when a transfer names the same account twice.
	ErrSelfTransfer = errors.New("transfer source and destination are the same account")

	// ErrInsufficientBalance is returned when a debit exceeds the live balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrCorruptJournal is returned by Restore when persisted checkpoints do
	// not line up with the persisted snapshot counter.
	ErrCorruptJournal = errors.New("corrupt snapshot journal")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SnapshotError reports a query against an id outside [1, Current].
type SnapshotError struct {
	Requested SnapshotID
	Current   SnapshotID
	Err       error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("%v: requested %d, current %d", e.Err, e.Requested, e.Current)
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	Account   AccountID
	Available Amount
	Requested Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance on %s: available %v, requested %v",
		e.Account, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSnapshotID) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidAccount) ||
		errors.Is(err, ErrSelfTransfer) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound returns true if the error names a snapshot that does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownSnapshotID)
}
