/*
handlers.go - HTTP API handlers for the snapshot ledger

PURPOSE:
  Exposes the ledger via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to generic.Ledger.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                   List accounts with live balances
    GET    /api/accounts/{id}/balance      Live balance, or ?snapshot=N
    GET    /api/accounts/{id}/history      Recorded checkpoints
    POST   /api/accounts/{id}/credit       Add to balance
    POST   /api/accounts/{id}/debit        Remove from balance

  Transfers:
    POST   /api/transfers                  Move value between accounts

  Total:
    GET    /api/total                      Live total, or ?snapshot=N

  Snapshots:
    GET    /api/snapshots                  List snapshots with taken_at
    POST   /api/snapshots                  Take a snapshot
    GET    /api/snapshots/current          Latest snapshot id

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid amount, account, snapshot id 0, self transfer
  - 404: Snapshot not taken yet
  - 409: Insufficient balance
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/warp/snapshot-ledger/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *generic.Ledger
}

// NewHandler creates a new handler over the given ledger.
func NewHandler(ledger *generic.Ledger) *Handler {
	return &Handler{Ledger: ledger}
}

// =============================================================================
// ACCOUNT ENDPOINTS
// =============================================================================

// ListAccounts returns every account with its live balance.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, err := h.Ledger.Accounts(ctx)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	out := make([]BalanceDTO, 0, len(ids))
	for _, id := range ids {
		bal, err := h.Ledger.Balance(ctx, id)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		out = append(out, BalanceDTO{AccountID: string(id), Value: bal.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetBalance returns the live balance, or the balance at ?snapshot=N.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account := generic.AccountID(chi.URLParam(r, "id"))

	snap, ok, err := snapshotParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot parameter", err)
		return
	}

	var bal generic.Amount
	if ok {
		bal, err = h.Ledger.BalanceAt(ctx, account, snap)
	} else {
		bal, err = h.Ledger.Balance(ctx, account)
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		AccountID: string(account),
		Value:     bal.String(),
		Snapshot:  uint64(snap),
	})
}

// GetHistory returns the checkpoints recorded for an account.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, HistoryDTO{
		AccountID:   account,
		Checkpoints: toCheckpointDTOs(h.Ledger.AccountHistory(generic.AccountID(account))),
	})
}

// Credit adds the requested amount to an account.
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	h.mutateAccount(w, r, h.Ledger.Credit)
}

// Debit removes the requested amount from an account.
func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	h.mutateAccount(w, r, h.Ledger.Debit)
}

func (h *Handler) mutateAccount(w http.ResponseWriter, r *http.Request,
	apply func(context.Context, generic.AccountID, generic.Amount) error) {
	ctx := r.Context()
	account := generic.AccountID(chi.URLParam(r, "id"))

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return
	}
	amount, err := generic.ParseAmount(req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	if err := apply(ctx, account, amount); err != nil {
		writeLedgerError(w, err)
		return
	}

	bal, err := h.Ledger.Balance(ctx, account)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{AccountID: string(account), Value: bal.String()})
}

// =============================================================================
// TRANSFER ENDPOINTS
// =============================================================================

// Transfer moves value between two accounts.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return
	}
	amount, err := generic.ParseAmount(req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	from, to := generic.AccountID(req.From), generic.AccountID(req.To)
	if err := h.Ledger.Transfer(ctx, from, to, amount); err != nil {
		writeLedgerError(w, err)
		return
	}

	out := make([]BalanceDTO, 0, 2)
	for _, id := range []generic.AccountID{from, to} {
		bal, err := h.Ledger.Balance(ctx, id)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		out = append(out, BalanceDTO{AccountID: string(id), Value: bal.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// TOTAL ENDPOINTS
// =============================================================================

// GetTotal returns the live total, or the total at ?snapshot=N.
func (h *Handler) GetTotal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, ok, err := snapshotParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot parameter", err)
		return
	}

	var total generic.Amount
	if ok {
		total, err = h.Ledger.TotalAt(ctx, snap)
	} else {
		total, err = h.Ledger.Total(ctx)
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{Value: total.String(), Snapshot: uint64(snap)})
}

// =============================================================================
// SNAPSHOT ENDPOINTS
// =============================================================================

// TakeSnapshot opens a new snapshot boundary.
func (h *Handler) TakeSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Ledger.TakeSnapshotRecord(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSnapshotDTO(rec))
}

// ListSnapshots returns every snapshot boundary with the time it was taken.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Ledger.Snapshots(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]SnapshotDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toSnapshotDTO(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentSnapshot returns the latest snapshot id (0 before the first).
func (h *Handler) GetCurrentSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SnapshotDTO{ID: uint64(h.Ledger.CurrentSnapshot())})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// snapshotParam reads ?snapshot=N. ok is false when the parameter is absent.
func snapshotParam(r *http.Request) (generic.SnapshotID, bool, error) {
	raw := r.URL.Query().Get("snapshot")
	if raw == "" {
		return generic.NoSnapshot, false, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return generic.NoSnapshot, false, fmt.Errorf("snapshot must be a non-negative integer: %q", raw)
	}
	return generic.SnapshotID(n), true, nil
}

func writeLedgerError(w http.ResponseWriter, err error) {
	var short *generic.InsufficientBalanceError
	switch {
	case errors.As(err, &short):
		writeError(w, http.StatusConflict, "insufficient balance", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "snapshot not found", err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
