package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	Session       SessionMetrics `json:"session"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedMessages  uint64 `json:"dropped_messages"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// SessionMetrics contains session cache statistics.
// SchemaVersion is omitted once the session is destroyed.
type SessionMetrics struct {
	ID               string `json:"id"`
	SchemaVersion    *int   `json:"schema_version,omitempty"`
	CachedStatements int    `json:"cached_statements"`
	CachedRecords    int    `json:"cached_records"`
	Destroyed        bool   `json:"destroyed"`
}

// bytesPerMB converts runtime byte counters to megabytes.
const bytesPerMB = 1024 * 1024

// handleMetrics returns runtime, transport and session metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := s.store.Stats()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(memStats.TotalAlloc) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
		MQTT: MQTTMetrics{
			Connected: s.mqtt.IsConnected(),
		},
		Session: SessionMetrics{
			ID:               s.store.ID(),
			CachedStatements: stats.CachedStatements,
			CachedRecords:    stats.CachedRecords,
			Destroyed:        stats.Destroyed,
		},
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
		metrics.WebSocket.DroppedMessages = s.hub.Dropped()
	}

	if version, err := s.store.SchemaVersion(r.Context()); err == nil {
		metrics.Session.SchemaVersion = &version
	}

	writeJSON(w, http.StatusOK, metrics)
}
