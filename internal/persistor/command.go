package persistor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Actions understood by the default router.
const (
	ActionAddDataPoints    = "add_data_points"
	ActionDeleteDataPoints = "delete_data_points"
	ActionDeleteMetric     = "delete_metric"
	ActionQueryMetrics     = "query_metrics"
	ActionQueryMetricTags  = "query_metric_tags"
	ActionListMetricNames  = "list_metric_names"
	ActionListTagNames     = "list_tag_names"
	ActionListTagValues    = "list_tag_values"
	ActionVersion          = "version"
)

// Envelope field names.
const (
	fieldAction     = "action"
	fieldQuery      = "query"
	fieldDataPoints = "datapoints"
	fieldMetricName = "metric_name"
	fieldRequestID  = "request_id"
	fieldReplyTo    = "reply_to"
)

// Command is one inbound request. It lives for a single dispatch.
type Command struct {
	// Action selects the handler. Empty when the envelope had none.
	Action string

	// RequestID correlates the reply with the request. Optional.
	RequestID string

	// ReplyTo is the topic the reply is published to. Optional.
	ReplyTo string

	// Payload is the whole decoded envelope; handlers read their fields from it.
	Payload map[string]any
}

// NewCommand builds a command from an already-decoded envelope.
//
// A non-string action is treated as absent. request_id may be a string or a
// number.
func NewCommand(payload map[string]any) Command {
	cmd := Command{Payload: payload}
	if payload == nil {
		return cmd
	}

	cmd.Action, _ = payload[fieldAction].(string)
	cmd.ReplyTo, _ = payload[fieldReplyTo].(string)

	switch id := payload[fieldRequestID].(type) {
	case string:
		cmd.RequestID = id
	case json.Number:
		cmd.RequestID = id.String()
	}

	return cmd
}

// ParseCommand decodes a JSON envelope.
//
// Numbers are kept as json.Number so that timestamps and values are forwarded
// to the backend without float rounding.
//
// Returns:
//   - Command: The decoded command
//   - error: ErrInvalidEnvelope (wrapped) if data is not a single JSON object
func ParseCommand(data []byte) (Command, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if payload == nil {
		return Command{}, fmt.Errorf("%w: %s", ErrInvalidEnvelope, msgInvalidEnvelopeShape)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Command{}, fmt.Errorf("%w: trailing data after envelope", ErrInvalidEnvelope)
	}

	return NewCommand(payload), nil
}

// Status is the outcome marker carried in every result.
type Status string

// Result statuses.
const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Result is the reply to a command.
//
// On the wire it is a flat JSON object: {"status":"ok", ...body} or
// {"status":"error","message":"..."}. Kind is kept for logging, metrics and
// the journal but is not serialised.
type Result struct {
	Status  Status
	Message string
	Kind    ErrorKind
	Body    map[string]any
}

// Success builds an ok result. body may be nil.
func Success(body map[string]any) Result {
	return Result{Status: StatusOK, Body: body}
}

// Failure builds an error result from err. A *CommandError keeps its kind;
// anything else is reported as a backend error.
func Failure(err error) Result {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return Result{Status: StatusError, Message: cmdErr.Message, Kind: cmdErr.Kind}
	}
	return Result{Status: StatusError, Message: err.Error(), Kind: KindBackendError}
}

// OK reports whether the command succeeded.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Fields returns the flat wire representation. Body keys never override
// status or message.
func (r Result) Fields() map[string]any {
	fields := make(map[string]any, len(r.Body)+2)
	for k, v := range r.Body {
		fields[k] = v
	}
	fields["status"] = string(r.Status)
	if r.Status == StatusError {
		fields["message"] = r.Message
	}
	return fields
}

// MarshalJSON encodes the result in its flat wire form.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}
