package persistor

import "errors"

// ErrorKind classifies why a command failed.
type ErrorKind string

// Error kinds.
const (
	// KindMissingAction means the envelope carried no usable action.
	KindMissingAction ErrorKind = "missing_action"

	// KindUnsupportedAction means no handler is registered for the action.
	KindUnsupportedAction ErrorKind = "unsupported_action"

	// KindMissingField means a field the action needs was absent.
	KindMissingField ErrorKind = "missing_field"

	// KindValidationFailure means the data points payload was malformed.
	KindValidationFailure ErrorKind = "validation_failure"

	// KindBackendError means KairosDB answered with an unexpected status
	// or a success body that could not be parsed.
	KindBackendError ErrorKind = "backend_error"

	// KindBackendUnreachable means the HTTP exchange itself failed.
	KindBackendUnreachable ErrorKind = "backend_unreachable"

	// KindInvalidEnvelope means an inbound message was not a JSON object.
	KindInvalidEnvelope ErrorKind = "invalid_envelope"
)

// Client-visible messages.
const (
	msgMissingAction        = "action must be specified"
	msgUnsupportedAction    = "unsupported action specified: "
	msgMissingQuery         = "metric query must be specified"
	msgMissingMetricName    = "metric name must be specified"
	msgMissingDataPoints    = "data points object is not specified"
	msgMalformedDataPoints  = "data points object was incorrectly formatted"
	msgUnparseableResponse  = "unparseable response body"
	msgInvalidEnvelopeShape = "envelope must be a JSON object"
)

// ErrInvalidEnvelope is returned by ParseCommand when a message cannot be
// decoded into a command.
var ErrInvalidEnvelope = errors.New("invalid command envelope")

// CommandError describes a failed command. Its message is exactly what the
// caller sees in the error Result.
//
// Use errors.As to inspect the kind:
//
//	var cmdErr *persistor.CommandError
//	if errors.As(err, &cmdErr) && cmdErr.Kind == persistor.KindBackendUnreachable {
//	    // ...
//	}
type CommandError struct {
	Kind    ErrorKind
	Message string

	// StatusCode is the backend HTTP status, when there was one.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

func (e *CommandError) Error() string {
	return e.Message
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
