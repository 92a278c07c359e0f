// Package applications owns the durable per-case verification record.
// Every mutation flows through AppendTransition, whose expected-stage check
// is the single concurrency control for case state.
package applications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Stage identifies a step in the verification sequence.
type Stage string

// Verification stages, in process order. ManualReview and Decision are
// terminal: no automatic transition leaves them.
const (
	StageOCRProcessing   Stage = "ocr_processing"
	StageUserReview      Stage = "user_review"
	StageGovVerification Stage = "gov_verification"
	StageFraudCheck      Stage = "fraud_check"
	StageDecision        Stage = "decision"
	StageManualReview    Stage = "manual_review"
)

// Status is the coarse lifecycle state of an application.
type Status string

// Application lifecycle states.
const (
	StatusInitiated         Status = "initiated"
	StatusDocumentsUploaded Status = "documents_uploaded"
	StatusProcessing        Status = "processing"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
)

// Outcome is the terminal decision for an application. Set exactly once.
type Outcome string

// Terminal outcomes.
const (
	OutcomeApproved     Outcome = "approved"
	OutcomeRejected     Outcome = "rejected"
	OutcomeManualReview Outcome = "manual_review"
)

// Application represents one verification attempt for a user.
type Application struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"user_id"`
	Stage           Stage          `json:"stage"`
	Status          Status         `json:"status"`
	ExtractedFields map[string]any `json:"extracted_fields,omitempty"`
	Outcome         *Outcome       `json:"outcome,omitempty"`
	OutcomeReason   *string        `json:"outcome_reason,omitempty"`
	StageHistory    []Transition   `json:"stage_history"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Terminal reports whether the application has reached a terminal stage.
func (a *Application) Terminal() bool {
	return a.Stage == StageManualReview || a.Stage == StageDecision
}

// Seq returns the length of the stage history. Progress events carry the
// sequence so stream clients can reconcile a snapshot against live events.
func (a *Application) Seq() int {
	return len(a.StageHistory)
}

// Transition is one append-only stage history entry.
type Transition struct {
	ID            uuid.UUID       `json:"id"`
	ApplicationID uuid.UUID       `json:"application_id"`
	Stage         Stage           `json:"stage"`
	Status        string          `json:"status"`
	Detail        json.RawMessage `json:"detail,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// History entry statuses.
const (
	EntryCompleted = "completed"
	EntryFailed    = "failed"
	EntryCorrected = "corrected"
)
