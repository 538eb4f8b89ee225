package persistor

import (
	"encoding/json"
	"fmt"
	"time"
)

// Mirror receives a copy of every numeric data point stored successfully.
// It is satisfied by *influxdb.Client.
//
// Writes are fire-and-forget: a mirror must not block and its failures never
// affect the command result.
type Mirror interface {
	WriteMetric(name string, tags map[string]string, timestamp time.Time, value float64)
}

// mirrorDataPoints copies a validated data points object to m.
//
// Both shapes are handled: a single timestamp/value pair and a datapoints
// array of [timestamp, value] pairs. Timestamps are epoch milliseconds.
// Points whose timestamp or value is not numeric are skipped.
//
// Returns the number of points written.
func mirrorDataPoints(m Mirror, dataPoints map[string]any) int {
	name, _ := dataPoints["name"].(string)
	rawTags, _ := dataPoints["tags"].(map[string]any)

	tags := make(map[string]string, len(rawTags))
	for k, v := range rawTags {
		if s, ok := v.(string); ok {
			tags[k] = s
			continue
		}
		tags[k] = fmt.Sprint(v)
	}

	written := 0
	write := func(rawTS, rawValue any) {
		ts, okTS := toFloat(rawTS)
		value, okValue := toFloat(rawValue)
		if !okTS || !okValue {
			return
		}
		m.WriteMetric(name, tags, time.UnixMilli(int64(ts)), value)
		written++
	}

	if points, ok := dataPoints["datapoints"].([]any); ok {
		for _, p := range points {
			pair, ok := p.([]any)
			if !ok || len(pair) < 2 {
				continue
			}
			write(pair[0], pair[1])
		}
		return written
	}

	write(dataPoints["timestamp"], dataPoints["value"])
	return written
}

// toFloat converts a decoded JSON number to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
