/*
scenarios.go - Demo scenario runners

PURPOSE:
  Runs short scripted sequences of credits, debits, transfers and
  snapshots against the live ledger, and returns a transcript showing
  what point-in-time queries answer along the way.

AVAILABLE SCENARIOS:
  debit-history:  Credit, snapshot, debits across three snapshots
  transfer:       Transfer into a fresh account after a snapshot

HOW SCENARIOS WORK:
  1. Pick account names suffixed with a run id, so repeated runs never
     touch each other's accounts
  2. Apply the scripted operations through the normal Ledger API
  3. Record each step and query result in the transcript

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "debit-history"}

NOTE:
  Scenarios take real snapshots and mint real supply. Only use in
  development/demo environments.

SEE ALSO:
  - handlers.go: Ledger endpoints
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/warp/snapshot-ledger/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "debit-history",
		Name:        "Debit history",
		Description: "Credit 100, snapshot, debit 30, snapshot, debit 25, snapshot; query every snapshot",
	},
	{
		ID:          "transfer",
		Name:        "Transfer into a new account",
		Description: "Credit 100, snapshot, transfer 30 to an empty account; both sides keep their snapshot values",
	},
}

// ListScenarios returns the available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario runs a scenario and returns its transcript.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return
	}

	run := &scenarioRun{ledger: h.Ledger, suffix: uuid.NewString()[:8]}

	var err error
	switch req.ScenarioID {
	case "debit-history":
		err = run.debitHistory(r.Context())
	case "transfer":
		err = run.transfer(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ScenarioResultDTO{ScenarioID: req.ScenarioID, Steps: run.steps})
}

// =============================================================================
// SCENARIO RUNNERS
// =============================================================================

type scenarioRun struct {
	ledger *generic.Ledger
	suffix string
	steps  []string
}

func (s *scenarioRun) account(name string) generic.AccountID {
	return generic.AccountID(name + "-" + s.suffix)
}

func (s *scenarioRun) logf(format string, args ...any) {
	s.steps = append(s.steps, fmt.Sprintf(format, args...))
}

func (s *scenarioRun) snapshot(ctx context.Context) (generic.SnapshotID, error) {
	id, err := s.ledger.TakeSnapshot(ctx)
	if err != nil {
		return generic.NoSnapshot, err
	}
	s.logf("snapshot -> %d", id)
	return id, nil
}

func (s *scenarioRun) query(ctx context.Context, account generic.AccountID, id generic.SnapshotID) error {
	v, err := s.ledger.BalanceAt(ctx, account, id)
	if err != nil {
		return err
	}
	s.logf("balance(%s) at %d = %s", account, id, v)
	return nil
}

func (s *scenarioRun) debitHistory(ctx context.Context) error {
	a := s.account("alice")

	if err := s.ledger.Credit(ctx, a, generic.NewAmountFromInt(100)); err != nil {
		return err
	}
	s.logf("credit %s 100", a)

	first, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.Debit(ctx, a, generic.NewAmountFromInt(30)); err != nil {
		return err
	}
	s.logf("debit %s 30", a)

	second, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.Debit(ctx, a, generic.NewAmountFromInt(25)); err != nil {
		return err
	}
	s.logf("debit %s 25", a)

	third, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	for _, id := range []generic.SnapshotID{first, second, third} {
		if err := s.query(ctx, a, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *scenarioRun) transfer(ctx context.Context) error {
	a, b := s.account("alice"), s.account("bob")

	if err := s.ledger.Credit(ctx, a, generic.NewAmountFromInt(100)); err != nil {
		return err
	}
	s.logf("credit %s 100", a)

	id, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.Transfer(ctx, a, b, generic.NewAmountFromInt(30)); err != nil {
		return err
	}
	s.logf("transfer %s -> %s 30", a, b)

	if _, err := s.snapshot(ctx); err != nil {
		return err
	}
	for _, acct := range []generic.AccountID{a, b} {
		if err := s.query(ctx, acct, id); err != nil {
			return err
		}
	}
	return nil
}
