// Package influxdb records session telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched point writing and health monitoring, and provides a
// Recorder that turns session lifecycle events into points.
//
// # Measurements
//
//   - session_operation: one point per open, migrate, reset and destroy,
//     tagged with the outcome and carrying the duration and schema versions
//   - session_cache: periodic samples of the statement and record cache sizes
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	rec := influxdb.NewRecorder(client)
//	s, err := session.Open(ctx, session.Options{
//	    Path:      cfg.Store.Path,
//	    Observers: []session.Observer{rec},
//	})
//	go rec.SampleStats(ctx, s, time.Minute)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned directly.
package influxdb
