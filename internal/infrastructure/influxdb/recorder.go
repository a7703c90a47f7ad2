package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/sqlsession/internal/session"
)

// Measurement names written by Recorder.
const (
	OperationMeasurement = "session_operation"
	CacheMeasurement     = "session_cache"
)

// PointWriter accepts points for asynchronous delivery.
// *Client implements it.
type PointWriter interface {
	Write(point *write.Point)
}

// StatsSource is the part of a session the cache sampler reads.
type StatsSource interface {
	ID() string
	Stats() session.Stats
}

// Recorder turns session lifecycle events into InfluxDB points.
// It implements session.Observer.
type Recorder struct {
	w PointWriter
}

// NewRecorder creates a Recorder writing to w.
func NewRecorder(w PointWriter) *Recorder {
	return &Recorder{w: w}
}

// SessionEvent implements session.Observer.
func (r *Recorder) SessionEvent(ev session.Event) {
	r.w.Write(OperationPoint(ev))
}

// SampleStats writes a cache point for src every interval until ctx is
// cancelled. A final sample is taken on exit so the series ends with the
// state at shutdown.
func (r *Recorder) SampleStats(ctx context.Context, src StatsSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.w.Write(CachePoint(src.ID(), src.Stats(), time.Now()))
			return
		case now := <-ticker.C:
			r.w.Write(CachePoint(src.ID(), src.Stats(), now))
		}
	}
}

// OperationPoint builds the point recorded for one lifecycle event.
//
// Tags: session_id, operation, outcome ("success" or "failure").
// Fields: duration_ms, plus from_version/to_version for migrate and reset.
func OperationPoint(ev session.Event) *write.Point {
	outcome := "success"
	if ev.Err != nil {
		outcome = "failure"
	}

	fields := map[string]interface{}{
		"duration_ms": float64(ev.Duration) / float64(time.Millisecond),
	}
	switch ev.Type {
	case session.EventMigrated:
		fields["from_version"] = ev.FromVersion
		fields["to_version"] = ev.ToVersion
	case session.EventReset:
		fields["to_version"] = ev.ToVersion
	}

	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		OperationMeasurement,
		map[string]string{
			"session_id": ev.SessionID,
			"operation":  string(ev.Type),
			"outcome":    outcome,
		},
		fields,
		ts,
	)
}

// CachePoint builds a cache-size sample.
func CachePoint(sessionID string, stats session.Stats, ts time.Time) *write.Point {
	return write.NewPoint(
		CacheMeasurement,
		map[string]string{"session_id": sessionID},
		map[string]interface{}{
			"cached_statements": stats.CachedStatements,
			"cached_records":    stats.CachedRecords,
			"destroyed":         stats.Destroyed,
		},
		ts,
	)
}
