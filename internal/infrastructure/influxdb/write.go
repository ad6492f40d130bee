package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteParameter writes a single spectrograph parameter value.
//
// This is the primary method for recording unit telemetry. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - unitID: Unique identifier for the unit (e.g., "spg-red")
//   - channel: Parameter channel name (e.g., "wavelength", "slit_width")
//   - address: Channel address (0 for unaddressed channels)
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteParameter("spg-red", "wavelength", 0, 632.8)
//	client.WriteParameter("spg-red", "slit_width", 1, 100.0)
func (c *Client) WriteParameter(unitID string, channel string, address int, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"spectro_parameters",
		map[string]string{
			"unit_id": unitID,
			"channel": channel,
		},
		map[string]interface{}{
			"address": address,
			"value":   value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRefreshResult records the outcome of a state refresh cycle.
//
// Parameters:
//   - unitID: Unit identifier
//   - duration: How long the refresh took
//   - ok: Whether the refresh completed without aborting
func (c *Client) WriteRefreshResult(unitID string, duration time.Duration, ok bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"spectro_refresh",
		map[string]string{
			"unit_id": unitID,
		},
		map[string]interface{}{
			"duration_ms": float64(duration.Milliseconds()),
			"ok":          ok,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommandResult records the outcome of a write command.
//
// Parameters:
//   - unitID: Unit identifier
//   - channel: Target channel
//   - outcome: "accepted", "rejected" or "failed"
func (c *Client) WriteCommandResult(unitID string, channel string, outcome string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"spectro_commands",
		map[string]string{
			"unit_id": unitID,
			"channel": channel,
			"outcome": outcome,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "spectrad-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
