package applications

import (
	"context"

	"github.com/google/uuid"

	"github.com/veriflow-id/veriflow/pkg/pagination"
)

// TransitionCommand atomically records the completion of a stage and moves
// the application to its next stage. ExpectedStage guards against concurrent
// writers: the mutation applies only if the application is still at that
// stage when the write lands.
type TransitionCommand struct {
	// ExpectedStage is the stage the caller observed. The store rejects the
	// command with ErrConflict if the current stage differs.
	ExpectedStage Stage

	// Stage is the stage the history entry records, normally the stage that
	// just ran.
	Stage Stage

	// EntryStatus is the history entry status: EntryCompleted, EntryFailed,
	// or EntryCorrected.
	EntryStatus string

	// NextStage becomes the application's current stage.
	NextStage Stage

	// Status becomes the application's lifecycle status.
	Status Status

	// Outcome, when non-nil, finalizes the application. A second attempt to
	// set an outcome fails with ErrConflict.
	Outcome       *Outcome
	OutcomeReason *string

	// Fields, when non-nil, replaces the application's extracted fields.
	Fields map[string]any

	// Detail is the structured payload stored on the history entry.
	Detail map[string]any
}

// Store persists applications and their append-only stage history.
type Store interface {
	// Create inserts a new application at the initial stage for the given user.
	Create(ctx context.Context, userID uuid.UUID) (*Application, error)

	// Find returns an application with its full stage history.
	// Returns ErrNotFound if no application has the given id.
	Find(ctx context.Context, id uuid.UUID) (*Application, error)

	// ListByUser returns a page of a user's applications in creation
	// order, without stage history.
	ListByUser(ctx context.Context, userID uuid.UUID, page pagination.PageRequest) (*pagination.PageResult[Application], error)

	// Transitions returns the application's stage history in append order.
	// Returns ErrNotFound if no application has the given id.
	Transitions(ctx context.Context, id uuid.UUID) ([]Transition, error)

	// AppendTransition applies cmd atomically: it appends the history entry,
	// advances the current stage, and updates status, outcome, and extracted
	// fields in a single step. Returns ErrConflict when the application is
	// not at cmd.ExpectedStage or already carries an outcome, ErrNotFound
	// when the application does not exist. On success it returns the updated
	// application with full history.
	AppendTransition(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*Application, error)
}
