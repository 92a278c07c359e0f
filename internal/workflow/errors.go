package workflow

import (
	"errors"
	"net/http"

	"github.com/veriflow-id/veriflow/internal/applications"
)

// Workflow errors returned by the engine.
var (
	// ErrTransitionInProgress indicates another trigger is already driving
	// this application. The caller should retry once it completes.
	ErrTransitionInProgress = errors.New("workflow: transition in progress")

	// ErrOutOfOrderTrigger indicates the trigger targets a stage the
	// application has not reached yet.
	ErrOutOfOrderTrigger = errors.New("workflow: trigger out of order")

	// ErrCollaboratorFailure indicates an external verification call failed
	// or timed out. The stage is unchanged and the trigger may be retried.
	ErrCollaboratorFailure = errors.New("workflow: collaborator failure")
)

// MapHTTPStatus translates workflow errors to HTTP status codes,
// deferring to the applications package for store-level errors.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrTransitionInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrOutOfOrderTrigger):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCollaboratorFailure):
		return http.StatusBadGateway
	default:
		return applications.MapHTTPStatus(err)
	}
}
