package mqtt

import "errors"

// Sentinel errors. Check with errors.Is.
var (
	// ErrConnectionFailed means the broker did not accept the initial connection.
	ErrConnectionFailed = errors.New("mqtt: broker connection failed")

	// ErrNotConnected is returned by publish and subscribe calls while the
	// client is offline or closed.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrPublishFailed wraps broker and timeout failures from Publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps broker and timeout failures from Subscribe and Unsubscribe.
	ErrSubscribeFailed = errors.New("mqtt: subscription change failed")

	// ErrInvalidQoS rejects a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: QoS must be 0, 1 or 2")

	// ErrInvalidTopic rejects an empty topic.
	ErrInvalidTopic = errors.New("mqtt: empty topic")

	// ErrInvalidPayload means an inbound cache invalidation could not be decoded.
	ErrInvalidPayload = errors.New("mqtt: undecodable payload")
)
