package persistor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDataPoints(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    bool
	}{
		{
			name:    "single point",
			payload: map[string]any{"name": "m", "tags": map[string]any{"t": "1"}, "timestamp": 123, "value": 42},
			want:    true,
		},
		{
			name: "datapoints array",
			payload: map[string]any{"name": "m", "tags": map[string]any{"t": "1"},
				"datapoints": []any{[]any{123, 42}, []any{124, 52}}},
			want: true,
		},
		{
			name: "json.Number values",
			payload: map[string]any{"name": "m", "tags": map[string]any{"t": "1"},
				"timestamp": json.Number("1700000000000"), "value": json.Number("4.2")},
			want: true,
		},
		{
			name:    "nil payload",
			payload: nil,
			want:    false,
		},
		{
			name:    "missing name",
			payload: map[string]any{"tags": map[string]any{"t": "1"}, "timestamp": 123, "value": 42},
			want:    false,
		},
		{
			name:    "non-string name",
			payload: map[string]any{"name": 7, "tags": map[string]any{"t": "1"}, "timestamp": 123, "value": 42},
			want:    false,
		},
		{
			name:    "missing tags",
			payload: map[string]any{"name": "m", "timestamp": 123, "value": 42},
			want:    false,
		},
		{
			name:    "empty tags",
			payload: map[string]any{"name": "m", "tags": map[string]any{}, "timestamp": 123, "value": 42},
			want:    false,
		},
		{
			name:    "tags not an object",
			payload: map[string]any{"name": "m", "tags": "t=1", "timestamp": 123, "value": 42},
			want:    false,
		},
		{
			name:    "no timestamp, value or datapoints",
			payload: map[string]any{"name": "m", "tags": map[string]any{"t": "1"}},
			want:    false,
		},
		{
			name:    "timestamp without value",
			payload: map[string]any{"name": "m", "tags": map[string]any{"t": "1"}, "timestamp": 123},
			want:    false,
		},
		{
			name:    "non-numeric value",
			payload: map[string]any{"name": "m", "tags": map[string]any{"t": "1"}, "timestamp": 123, "value": "42"},
			want:    false,
		},
		{
			name:    "datapoints not an array",
			payload: map[string]any{"name": "m", "tags": map[string]any{"t": "1"}, "datapoints": "[[1,2]]"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateDataPoints(tt.payload))
		})
	}
}
