package persistor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/kairos-persistor/internal/infrastructure/kairosdb"
)

// Backend is the HTTP transport the handlers submit requests through.
// It is satisfied by *kairosdb.Client.
type Backend interface {
	Do(ctx context.Context, method, path string, body []byte) (*kairosdb.Response, error)
}

// Handler executes one action.
//
// Handle never returns an error: every failure is folded into an error Result.
type Handler interface {
	Handle(ctx context.Context, cmd Command) Result
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, cmd Command) Result

// Handle calls f(ctx, cmd).
func (f HandlerFunc) Handle(ctx context.Context, cmd Command) Result {
	return f(ctx, cmd)
}

// endpoint describes the backend call behind an action.
type endpoint struct {
	method  string
	path    string
	success int

	// verb is the "<verb-ing> <noun>" phrase used in error messages.
	verb string

	// returnsBody is true when a success response carries a JSON object.
	returnsBody bool
}

// Backend endpoints, keyed by action.
var endpoints = map[string]endpoint{
	ActionAddDataPoints:    {http.MethodPost, "/api/v1/datapoints", http.StatusNoContent, "adding data points", false},
	ActionDeleteDataPoints: {http.MethodPost, "/api/v1/datapoints/delete", http.StatusNoContent, "deleting data points", false},
	ActionDeleteMetric:     {http.MethodDelete, "/api/v1/metric/", http.StatusNoContent, "deleting metric", false},
	ActionQueryMetrics:     {http.MethodPost, "/api/v1/datapoints/query", http.StatusOK, "querying metrics", true},
	ActionQueryMetricTags:  {http.MethodPost, "/api/v1/datapoints/query/tags", http.StatusOK, "querying metric tags", true},
	ActionListMetricNames:  {http.MethodGet, "/api/v1/metricnames", http.StatusOK, "listing metric names", true},
	ActionListTagNames:     {http.MethodGet, "/api/v1/tagnames", http.StatusOK, "listing tag names", true},
	ActionListTagValues:    {http.MethodGet, "/api/v1/tagvalues", http.StatusOK, "listing tag values", true},
	ActionVersion:          {http.MethodGet, "/api/v1/version", http.StatusOK, "requesting version", true},
}

// exchange performs a backend call and classifies the response.
type exchange struct {
	backend Backend
	logger  Logger
}

// call submits body to path and maps the outcome onto a success body or a
// *CommandError.
func (x *exchange) call(ctx context.Context, ep endpoint, path string, body []byte) (map[string]any, error) {
	resp, err := x.backend.Do(ctx, ep.method, path, body)
	if err != nil {
		kind := KindBackendUnreachable
		if errors.Is(err, kairosdb.ErrInvalidRequest) {
			kind = KindBackendError
		}
		message := fmt.Sprintf("error %s: %v", ep.verb, err)
		x.logger.Error(message, "method", ep.method, "path", path)
		return nil, &CommandError{Kind: kind, Message: message, Err: err}
	}

	if resp.StatusCode != ep.success {
		message := fmt.Sprintf("error %s: %d %s", ep.verb, resp.StatusCode, resp.Reason)
		x.logger.Error(message, "method", ep.method, "path", path, "response", string(resp.Body))
		return nil, &CommandError{Kind: KindBackendError, Message: message, StatusCode: resp.StatusCode}
	}

	if !ep.returnsBody {
		return nil, nil
	}

	parsed, err := decodeObject(resp.Body)
	if err != nil {
		message := fmt.Sprintf("error %s: %s", ep.verb, msgUnparseableResponse)
		x.logger.Error(message, "method", ep.method, "path", path, "error", err)
		return nil, &CommandError{Kind: KindBackendError, Message: message, StatusCode: resp.StatusCode, Err: err}
	}

	return parsed, nil
}

// decodeObject parses a JSON object, keeping numbers as json.Number.
func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("response is not a JSON object")
	}
	return obj, nil
}

// resultOf turns an exchange outcome into a Result.
func resultOf(body map[string]any, err error) Result {
	if err != nil {
		return Failure(err)
	}
	return Success(body)
}

// getHandler serves the body-less GET listings and version.
type getHandler struct {
	x  *exchange
	ep endpoint
}

func (h *getHandler) Handle(ctx context.Context, _ Command) Result {
	return resultOf(h.x.call(ctx, h.ep, h.ep.path, nil))
}

// queryHandler forwards the "query" object verbatim.
type queryHandler struct {
	x  *exchange
	ep endpoint
}

func (h *queryHandler) Handle(ctx context.Context, cmd Command) Result {
	query, ok := cmd.Payload[fieldQuery].(map[string]any)
	if !ok {
		return Failure(&CommandError{Kind: KindMissingField, Message: msgMissingQuery})
	}

	body, err := json.Marshal(query)
	if err != nil {
		return Failure(&CommandError{Kind: KindMissingField, Message: msgMissingQuery, Err: err})
	}

	return resultOf(h.x.call(ctx, h.ep, h.ep.path, body))
}

// deleteMetricHandler deletes a metric by name. The name is placed in the
// path without escaping.
type deleteMetricHandler struct {
	x  *exchange
	ep endpoint
}

func (h *deleteMetricHandler) Handle(ctx context.Context, cmd Command) Result {
	name, _ := cmd.Payload[fieldMetricName].(string)
	if name == "" {
		return Failure(&CommandError{Kind: KindMissingField, Message: msgMissingMetricName})
	}

	return resultOf(h.x.call(ctx, h.ep, h.ep.path+name, nil))
}

// addDataPointsHandler validates and stores a data points object, then
// mirrors it when a Mirror is configured.
type addDataPointsHandler struct {
	x      *exchange
	ep     endpoint
	mirror Mirror
}

func (h *addDataPointsHandler) Handle(ctx context.Context, cmd Command) Result {
	dataPoints, ok := cmd.Payload[fieldDataPoints].(map[string]any)
	if !ok {
		return Failure(&CommandError{Kind: KindMissingField, Message: msgMissingDataPoints})
	}
	if !ValidateDataPoints(dataPoints) {
		return Failure(&CommandError{Kind: KindValidationFailure, Message: msgMalformedDataPoints})
	}

	body, err := json.Marshal(dataPoints)
	if err != nil {
		return Failure(&CommandError{Kind: KindValidationFailure, Message: msgMalformedDataPoints, Err: err})
	}

	if _, err := h.x.call(ctx, h.ep, h.ep.path, body); err != nil {
		return Failure(err)
	}

	if h.mirror != nil {
		written := mirrorDataPoints(h.mirror, dataPoints)
		h.x.logger.Debug("mirrored data points", "metric", dataPoints["name"], "points", written)
	}

	return Success(nil)
}

// defaultHandlers builds the handler table for every known action.
func defaultHandlers(x *exchange, mirror Mirror) map[string]Handler {
	handlers := make(map[string]Handler, len(endpoints))
	for action, ep := range endpoints {
		switch action {
		case ActionAddDataPoints:
			handlers[action] = &addDataPointsHandler{x: x, ep: ep, mirror: mirror}
		case ActionDeleteDataPoints, ActionQueryMetrics, ActionQueryMetricTags:
			handlers[action] = &queryHandler{x: x, ep: ep}
		case ActionDeleteMetric:
			handlers[action] = &deleteMetricHandler{x: x, ep: ep}
		default:
			handlers[action] = &getHandler{x: x, ep: ep}
		}
	}
	return handlers
}
