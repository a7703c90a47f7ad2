package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Write queues point for the next batch. After Close the point is dropped
// and counted (see Dropped).
func (c *Client) Write(point *write.Point) {
	if point == nil {
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.dropped.Add(1)
		return
	}
	c.writeAPI.WritePoint(point)
}

// WritePoint queues a point stamped with the current time.
//
// Example:
//
//	client.WritePoint("store_size",
//	    map[string]string{"path": "./data/sqlsession.db"},
//	    map[string]interface{}{"bytes": 40960})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime queues a point with an explicit timestamp, such as the
// moment a session operation completed.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	c.Write(write.NewPoint(measurement, tags, fields, timestamp))
}
