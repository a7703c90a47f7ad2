package influxdb

import "errors"

// Sentinel errors. Check with errors.Is.
var (
	// ErrDisabled is returned by Connect when telemetry is switched off in config.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrUnreachable means the server did not answer a ping, at connect or
	// during a health check.
	ErrUnreachable = errors.New("influxdb: server unreachable")

	// ErrClosed is returned by HealthCheck after Close.
	ErrClosed = errors.New("influxdb: client closed")

	// ErrWriteFailed wraps batch failures delivered to the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
