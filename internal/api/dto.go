package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/halvard/tally/internal/dispatch"
)

// EventRequest is the webhook envelope: the structured event name and the
// changed document's fields.
type EventRequest struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// Validate validates the webhook envelope.
func (r EventRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Event, validation.Required),
	)
}

// EventResponse reports the per-task outcome of one delivery.
type EventResponse struct {
	Status  string           `json:"status"`
	Summary dispatch.Summary `json:"summary"`
	Tasks   []TaskResult     `json:"tasks"`
}

// TaskResult is one task outcome in an EventResponse.
type TaskResult struct {
	Task  string `json:"task"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}
