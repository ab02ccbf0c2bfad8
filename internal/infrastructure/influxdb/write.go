package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteVariableMetric records one numeric variable sample.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Points are tagged with the variable ID and the device MAC so one
// bucket can hold several units.
func (c *Client) WriteVariableMetric(deviceMAC, variableID string, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}

	point := write.NewPoint(
		"ventilation",
		map[string]string{
			"device":   deviceMAC,
			"variable": variableID,
		},
		map[string]interface{}{
			"value": value,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteAvailability records a variable availability transition, so
// dashboards can overlay gaps in sensor data with device reachability.
func (c *Client) WriteAvailability(deviceMAC, variableID string, available bool, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}

	point := write.NewPoint(
		"availability",
		map[string]string{
			"device":   deviceMAC,
			"variable": variableID,
		},
		map[string]interface{}{
			"available": available,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point for measurements the helpers don't
// cover. Tags index the point (keep cardinality low); fields carry the
// data.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
