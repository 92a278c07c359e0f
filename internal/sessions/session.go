// Package sessions holds per-conversation state for the conversational
// layer. A session links a conversation to a user and an application and
// carries advisory context between otherwise independent calls. The
// workflow only reads sessions, to resolve which application a
// conversation refers to; it never writes or removes them.
package sessions

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the durable record for one conversational session.
// UserID and ApplicationID start unbound and are set once on first
// mention. WorkflowStageHint is the last stage the conversational layer
// observed; the application record stays authoritative.
type SessionState struct {
	SessionID         string         `json:"session_id"`
	UserID            *uuid.UUID     `json:"user_id,omitempty"`
	ApplicationID     *uuid.UUID     `json:"application_id,omitempty"`
	WorkflowStageHint string         `json:"workflow_stage_hint,omitempty"`
	Flags             map[string]any `json:"flags"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// UpsertCommand carries a partial session update. Only provided fields
// change: nil pointers leave the stored value alone, and flags merge per
// key into the existing set.
type UpsertCommand struct {
	UserID            *uuid.UUID     `json:"user_id,omitempty"`
	ApplicationID     *uuid.UUID     `json:"application_id,omitempty"`
	WorkflowStageHint *string        `json:"workflow_stage_hint,omitempty"`
	Flags             map[string]any `json:"flags,omitempty"`
}

// apply merges cmd into the session. Bindings are set once: a session
// already linked to a user or application keeps its original link.
func (s *SessionState) apply(cmd UpsertCommand, now time.Time) {
	if cmd.UserID != nil && s.UserID == nil {
		id := *cmd.UserID
		s.UserID = &id
	}
	if cmd.ApplicationID != nil && s.ApplicationID == nil {
		id := *cmd.ApplicationID
		s.ApplicationID = &id
	}
	if cmd.WorkflowStageHint != nil {
		s.WorkflowStageHint = *cmd.WorkflowStageHint
	}
	if s.Flags == nil {
		s.Flags = map[string]any{}
	}
	for k, v := range cmd.Flags {
		s.Flags[k] = v
	}
	s.UpdatedAt = now
}
