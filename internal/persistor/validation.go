package persistor

import "encoding/json"

// ValidateDataPoints reports whether payload is a well-formed "add data
// points" object.
//
// It requires a string name, a non-empty tags object, and either a
// datapoints array or both a numeric timestamp and a numeric value.
// Everything else (extra fields, the contents of datapoints) is left to
// the backend.
func ValidateDataPoints(payload map[string]any) bool {
	if payload == nil {
		return false
	}

	if _, ok := payload["name"].(string); !ok {
		return false
	}

	tags, ok := payload["tags"].(map[string]any)
	if !ok || len(tags) == 0 {
		return false
	}

	validSingle := isNumber(payload["timestamp"]) && isNumber(payload["value"])
	_, hasArray := payload["datapoints"].([]any)

	return hasArray || validSingle
}

// isNumber reports whether v is a JSON number as produced by encoding/json
// (with or without UseNumber) or a Go numeric literal.
func isNumber(v any) bool {
	switch v.(type) {
	case json.Number, float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}
