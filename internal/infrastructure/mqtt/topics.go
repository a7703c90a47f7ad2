package mqtt

import "fmt"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "sqlsession"

// Topics provides builders for sqlsessiond MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Every topic lives under a configurable prefix:
//
//	topics := mqtt.NewTopics("sqlsession")
//	topics.SessionEvents("3f2a...")
//	// Returns: "sqlsession/session/3f2a.../event"
type Topics struct {
	Prefix string
}

// NewTopics returns builders rooted at prefix, or DefaultTopicPrefix if empty.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the topic for daemon online/offline status (retained, LWT).
//
// Example: sqlsession/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// =============================================================================
// Session Topics
// =============================================================================

// SessionEvents returns the topic for a session's lifecycle events.
//
// Example: sqlsession/session/{id}/event
func (t Topics) SessionEvents(sessionID string) string {
	return fmt.Sprintf("%s/session/%s/event", t.prefix(), sessionID)
}

// SessionSchema returns the retained topic holding a session's schema version.
//
// Example: sqlsession/session/{id}/schema
func (t Topics) SessionSchema(sessionID string) string {
	return fmt.Sprintf("%s/session/%s/schema", t.prefix(), sessionID)
}

// CacheInvalidate returns the topic other writers publish to when rows
// a session may have cached are deleted.
//
// Example: sqlsession/session/{id}/cache/invalidate
func (t Topics) CacheInvalidate(sessionID string) string {
	return fmt.Sprintf("%s/session/%s/cache/invalidate", t.prefix(), sessionID)
}

// =============================================================================
// Wildcard Subscriptions
// =============================================================================

// AllSessionEvents returns a wildcard pattern for every session's events.
//
// Pattern: sqlsession/session/+/event
func (t Topics) AllSessionEvents() string {
	return fmt.Sprintf("%s/session/+/event", t.prefix())
}

// AllCacheInvalidations returns a wildcard pattern for invalidations
// addressed to any session.
//
// Pattern: sqlsession/session/+/cache/invalidate
func (t Topics) AllCacheInvalidations() string {
	return fmt.Sprintf("%s/session/+/cache/invalidate", t.prefix())
}
