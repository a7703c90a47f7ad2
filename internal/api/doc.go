// Package api implements the admin HTTP API and WebSocket event stream.
//
// This package provides:
//   - REST endpoints for schema inspection, migration, reset and the
//     record-existence cache
//   - A WebSocket hub broadcasting session lifecycle events
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Errors
//
// Session failures map to HTTP status codes:
//
//	session.ErrIncompatibleMigration  409 Conflict
//	session.ErrSQL                    400 Bad Request
//	session.ErrDestroyed              503 Service Unavailable
//	anything else                     500 Internal Server Error
//
// # WebSocket
//
// Clients subscribe to channels with
//
//	{"type": "subscribe", "id": "1", "payload": {"channels": ["session.migrated"]}}
//
// and then receive {"type": "event", "event_type": "session.migrated", ...}
// messages whose payload is the session event.
package api
