// Package event models incoming document change notifications and parses
// the structured event names emitted by the document backend.
package event

import (
	"fmt"
	"strings"

	"github.com/halvard/tally/internal/apperr"
)

// Kind is the operation a change notification describes.
type Kind string

// Operations carried by the last segment of an event name.
const (
	Create Kind = "create"
	Update Kind = "update"
	Delete Kind = "delete"
)

// Event is one parsed change notification. Payload holds the document
// fields as delivered by the trigger layer.
type Event struct {
	Kind       Kind
	Database   string
	Collection string
	Payload    map[string]any
}

// Parse parses an event name of the form
//
//	databases.<db>.collections.<collection>.documents.<create|update|delete>
//
// into an Event carrying the given payload. Malformed names return an error
// wrapping apperr.ErrSkip: an unusable notification is a no-op, not a fault.
func Parse(name string, payload map[string]any) (Event, error) {
	parts := strings.Split(name, ".")
	if len(parts) != 6 || parts[0] != "databases" || parts[2] != "collections" || parts[4] != "documents" {
		return Event{}, fmt.Errorf("event: malformed name %q: %w", name, apperr.ErrSkip)
	}

	kind := Kind(parts[5])
	switch kind {
	case Create, Update, Delete:
	default:
		return Event{}, fmt.Errorf("event: unknown operation %q: %w", parts[5], apperr.ErrSkip)
	}

	if payload == nil {
		payload = map[string]any{}
	}

	return Event{
		Kind:       kind,
		Database:   parts[1],
		Collection: parts[3],
		Payload:    payload,
	}, nil
}

// String returns the payload field value if present and a non-empty string.
func (e Event) String(field string) (string, bool) {
	v, ok := e.Payload[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Attribution returns the user name the event is attributed to: the
// userName payload field, falling back to createdBy.
func (e Event) Attribution() (string, bool) {
	if name, ok := e.String("userName"); ok {
		return name, true
	}
	return e.String("createdBy")
}
