package mqtt

import (
	"encoding/json"
	"fmt"
)

// CacheRemover is the part of a session that invalidation messages act on.
// *session.Session implements it.
type CacheRemover interface {
	RemoveFromCache(key string)
}

// invalidation is the body of a cache invalidation message.
//
//	{"keys": ["tasks$42", "users$7"]}
type invalidation struct {
	Keys []string `json:"keys"`
}

// SubscribeInvalidations removes record-existence cache entries named by
// messages on the session's invalidate topic.
//
// Other writers to the same database file publish here after deleting rows,
// so the session stops treating those rows as known.
func (c *Client) SubscribeInvalidations(sessionID string, cache CacheRemover) error {
	return c.Subscribe(c.topics.CacheInvalidate(sessionID), c.QoS(), invalidationHandler(cache))
}

// invalidationHandler decodes invalidation messages and applies them.
func invalidationHandler(cache CacheRemover) MessageHandler {
	return func(topic string, payload []byte) error {
		var msg invalidation
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, topic, err)
		}
		for _, key := range msg.Keys {
			if key != "" {
				cache.RemoveFromCache(key)
			}
		}
		return nil
	}
}
