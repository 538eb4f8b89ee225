package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// valueField is the single field every mirrored point carries.
const valueField = "value"

// WriteMetric mirrors one KairosDB data point.
//
// The metric name becomes the measurement, KairosDB tags become InfluxDB tags
// and the value is stored in the "value" field at the point's own timestamp.
// The write is non-blocking; failures arrive through the SetOnError callback.
//
// Example:
//
//	client.WriteMetric("sys.cpu.load", map[string]string{"host": "web-1"},
//	    time.UnixMilli(1700000000000), 0.42)
func (c *Client) WriteMetric(name string, tags map[string]string, timestamp time.Time, value float64) {
	if !c.IsConnected() || name == "" {
		return
	}

	point := write.NewPoint(
		name,
		tags,
		map[string]interface{}{
			valueField: value,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}
