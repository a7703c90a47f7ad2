package session

import (
	"encoding/json"
	"time"
)

// EventType identifies a session lifecycle event.
type EventType string

// Lifecycle event types.
const (
	EventOpened    EventType = "opened"
	EventMigrated  EventType = "migrated"
	EventReset     EventType = "reset"
	EventDestroyed EventType = "destroyed"
)

// Event describes one completed lifecycle operation, successful or not.
type Event struct {
	Type      EventType
	SessionID string
	Time      time.Time
	Duration  time.Duration

	// FromVersion and ToVersion are set for migrate (both) and reset (ToVersion).
	FromVersion int
	ToVersion   int

	// Err is the operation's failure, nil on success.
	Err error
}

// eventJSON is the wire form of Event.
type eventJSON struct {
	Type        EventType `json:"type"`
	SessionID   string    `json:"session_id"`
	Time        time.Time `json:"time"`
	DurationMS  float64   `json:"duration_ms"`
	FromVersion int       `json:"from_version,omitempty"`
	ToVersion   int       `json:"to_version,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		Type:        e.Type,
		SessionID:   e.SessionID,
		Time:        e.Time,
		DurationMS:  float64(e.Duration) / float64(time.Millisecond),
		FromVersion: e.FromVersion,
		ToVersion:   e.ToVersion,
		Success:     e.Err == nil,
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return json.Marshal(out)
}

// Observer receives session lifecycle events.
//
// SessionEvent is called synchronously after the session lock has been
// released. Implementations must not block for long; hand off to a
// goroutine or channel if the work is slow.
type Observer interface {
	SessionEvent(ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev Event)

// SessionEvent calls f(ev).
func (f ObserverFunc) SessionEvent(ev Event) {
	f(ev)
}

// notify stamps ev and delivers it to every observer.
// Must be called without holding s.mu.
func (s *Session) notify(ev Event) {
	if len(s.observers) == 0 {
		return
	}
	ev.SessionID = s.id
	ev.Time = time.Now().UTC()
	for _, o := range s.observers {
		o.SessionEvent(ev)
	}
}
