// Package events provides in-process fanout of application progress
// events to stream subscribers.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is one application progress notification. Seq is the length of
// the application's stage history after the transition it describes, so
// subscribers can order events against a snapshot taken at subscribe time.
type Event struct {
	ApplicationID uuid.UUID      `json:"application_id"`
	Seq           int            `json:"seq"`
	Stage         string         `json:"stage"`
	Status        string         `json:"status"`
	EntryStage    string         `json:"entry_stage"`
	EntryStatus   string         `json:"entry_status"`
	Outcome       string         `json:"outcome,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
	At            time.Time      `json:"at"`
}
