// Package model defines the core data structures for audioduck.
package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies what kind of ducking decision an event records.
type EventType string

// Event types emitted by the engine.
const (
	EventDuck         EventType = "duck"
	EventRestore      EventType = "restore"
	EventForceRestore EventType = "force_restore"
	EventEnabled      EventType = "enabled"
	EventDisabled     EventType = "disabled"
	EventStarted      EventType = "started"
	EventStopped      EventType = "stopped"
)

// Validation errors.
var (
	ErrEmptyID     = errors.New("event has empty id")
	ErrEmptyType   = errors.New("event has empty type")
	ErrZeroTime    = errors.New("event has zero timestamp")
	ErrUnknownType = errors.New("event has unknown type")
)

// Event is one ducking decision, as recorded in the journal.
type Event struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	Type   EventType `json:"type"`
	App    string    `json:"app,omitempty"`    // Triggering or affected application, when known
	Detail string    `json:"detail,omitempty"` // Free-form context, e.g. "shutdown"
}

// NewEvent creates an event with a fresh ULID and the current time.
func NewEvent(eventType EventType) (*Event, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}

	return &Event{
		ID:   id.String(),
		Time: time.Now(),
		Type: eventType,
	}, nil
}

// Validate checks that the event has all required fields.
func (e *Event) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.Type == "" {
		return ErrEmptyType
	}
	if e.Time.IsZero() {
		return ErrZeroTime
	}
	switch e.Type {
	case EventDuck, EventRestore, EventForceRestore,
		EventEnabled, EventDisabled, EventStarted, EventStopped:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
}

// Describe returns a short human-readable summary for CLI output.
func (e *Event) Describe() string {
	switch e.Type {
	case EventDuck:
		return "ducked music volume"
	case EventRestore:
		return "restored music volume"
	case EventForceRestore:
		return "force restored music volume"
	case EventEnabled:
		return "ducking enabled"
	case EventDisabled:
		return "ducking disabled"
	case EventStarted:
		return "daemon started"
	case EventStopped:
		return "daemon stopped"
	default:
		return string(e.Type)
	}
}
