// Package influxdb provides the optional InfluxDB mirror for the KairosDB
// persistor.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched metric writing and health monitoring. When enabled,
// every numeric data point accepted by KairosDB through add_data_points is
// also written here, so the same series can be explored with InfluxDB tooling.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "kairos",
//	    Bucket:  "mirror",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteMetric("sys.cpu.load", map[string]string{"host": "web-1"}, time.Now(), 0.42)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback. They never affect the KairosDB command result. Connection and
// health check errors are returned directly.
package influxdb
