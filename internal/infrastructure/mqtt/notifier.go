package mqtt

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/sqlsession/internal/session"
)

// notifierQueueSize bounds the events waiting to be published.
const notifierQueueSize = 64

// Publisher is the publishing capability the Notifier needs.
// *Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// schemaPayload is the retained body on a session's schema topic.
type schemaPayload struct {
	SessionID     string    `json:"session_id"`
	SchemaVersion int       `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
}

// Notifier publishes session lifecycle events to MQTT.
//
// Every event goes to the session's event topic. Successful migrations and
// resets also update the retained schema topic; destroy clears it.
//
// SessionEvent never blocks the session: events are queued and published
// by a background worker. When the queue is full the event is dropped
// and logged.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Notifier struct {
	pub    Publisher
	topics Topics
	qos    byte
	logger Logger

	events chan session.Event
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewNotifier creates a Notifier and starts its worker. Call Close to stop it.
func NewNotifier(pub Publisher, topics Topics, qos byte, logger Logger) *Notifier {
	n := &Notifier{
		pub:    pub,
		topics: topics,
		qos:    qos,
		logger: logger,
		events: make(chan session.Event, notifierQueueSize),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

// SessionEvent implements session.Observer.
func (n *Notifier) SessionEvent(ev session.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	select {
	case n.events <- ev:
	default:
		n.warn("MQTT event queue full, dropping event",
			"session_id", ev.SessionID,
			"type", string(ev.Type),
		)
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.events)
	n.mu.Unlock()

	<-n.done
}

func (n *Notifier) run() {
	defer close(n.done)

	for ev := range n.events {
		n.publish(ev)
	}
}

// publish sends one event and any schema update it implies.
func (n *Notifier) publish(ev session.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.warn("encoding session event", "error", err)
		return
	}
	if err := n.pub.Publish(n.topics.SessionEvents(ev.SessionID), payload, n.qos, false); err != nil {
		n.warn("publishing session event",
			"session_id", ev.SessionID,
			"type", string(ev.Type),
			"error", err,
		)
	}

	schemaTopic := n.topics.SessionSchema(ev.SessionID)
	switch {
	case ev.Type == session.EventDestroyed:
		// An empty retained message removes the stored schema state.
		if err := n.pub.Publish(schemaTopic, nil, n.qos, true); err != nil {
			n.warn("clearing retained schema", "session_id", ev.SessionID, "error", err)
		}
	case ev.Err == nil && (ev.Type == session.EventMigrated || ev.Type == session.EventReset):
		body, _ := json.Marshal(schemaPayload{ //nolint:errcheck // Plain fields cannot fail to marshal
			SessionID:     ev.SessionID,
			SchemaVersion: ev.ToVersion,
			Timestamp:     ev.Time,
		})
		if err := n.pub.Publish(schemaTopic, body, n.qos, true); err != nil {
			n.warn("publishing schema version", "session_id", ev.SessionID, "error", err)
		}
	}
}

func (n *Notifier) warn(msg string, args ...any) {
	if n.logger != nil {
		n.logger.Warn(msg, args...)
	}
}
