/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Amounts travel as decimal strings ("12.50") so no precision is lost in
  JSON number handling.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/snapshot-ledger/generic"
)

// =============================================================================
// REQUESTS
// =============================================================================

// AmountRequest is the body of credit and debit calls.
type AmountRequest struct {
	Amount string `json:"amount"`
}

// TransferRequest moves Amount from From to To.
type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// LoadScenarioRequest names a demo scenario to run.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// BalanceDTO is a balance, live or at a snapshot.
type BalanceDTO struct {
	AccountID string `json:"account_id,omitempty"`
	Value     string `json:"value"`
	// Snapshot is omitted for live values.
	Snapshot uint64 `json:"snapshot,omitempty"`
}

// CheckpointDTO is one recorded history entry.
type CheckpointDTO struct {
	Snapshot uint64 `json:"snapshot"`
	Value    string `json:"value"`
}

// HistoryDTO lists the recorded checkpoints of an account.
type HistoryDTO struct {
	AccountID   string          `json:"account_id"`
	Checkpoints []CheckpointDTO `json:"checkpoints"`
}

// SnapshotDTO describes a snapshot boundary.
type SnapshotDTO struct {
	ID      uint64     `json:"id"`
	TakenAt *time.Time `json:"taken_at,omitempty"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ScenarioResultDTO is the transcript of a scenario run.
type ScenarioResultDTO struct {
	ScenarioID string   `json:"scenario_id"`
	Steps      []string `json:"steps"`
}

// ErrorResponse is returned for every failed call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCheckpointDTOs(cps []generic.Checkpoint) []CheckpointDTO {
	out := make([]CheckpointDTO, len(cps))
	for i, cp := range cps {
		out[i] = CheckpointDTO{Snapshot: uint64(cp.SnapshotID), Value: cp.Value.String()}
	}
	return out
}

func toSnapshotDTO(rec generic.SnapshotRecord) SnapshotDTO {
	takenAt := rec.TakenAt
	return SnapshotDTO{ID: uint64(rec.ID), TakenAt: &takenAt}
}
