package persistor

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Router and Service.
// It is satisfied by logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Record is what the router hands to a Recorder after each dispatch.
type Record struct {
	RequestID string
	Action    string
	Status    Status
	Kind      ErrorKind
	Message   string
	Duration  time.Duration
}

// Recorder persists dispatch records. The journal implements it through an
// adapter in main.go.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// RouterOptions holds the optional collaborators of a Router.
type RouterOptions struct {
	// Logger is optional; defaults to a no-op logger.
	Logger Logger

	// Metrics is optional; nil disables metrics.
	Metrics *Metrics

	// Recorder is optional; nil disables journaling.
	Recorder Recorder

	// Mirror is optional; nil disables mirroring of added data points.
	Mirror Mirror
}

// Router maps action names to handlers.
//
// Thread Safety: Dispatch is safe for concurrent use. Register may be called
// at any time but is normally only used during setup.
type Router struct {
	handlers map[string]Handler
	mu       sync.RWMutex

	logger   Logger
	metrics  *Metrics
	recorder Recorder
}

// NewRouter creates a router with a handler registered for every action,
// all sharing backend.
func NewRouter(backend Backend, opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	x := &exchange{backend: backend, logger: logger}

	return &Router{
		handlers: defaultHandlers(x, opts.Mirror),
		logger:   logger,
		metrics:  opts.Metrics,
		recorder: opts.Recorder,
	}
}

// Register installs h for action, replacing any existing handler.
func (r *Router) Register(action string, h Handler) {
	r.mu.Lock()
	r.handlers[action] = h
	r.mu.Unlock()
}

// Actions returns the registered action names in sorted order.
func (r *Router) Actions() []string {
	r.mu.RLock()
	actions := make([]string, 0, len(r.handlers))
	for action := range r.handlers {
		actions = append(actions, action)
	}
	r.mu.RUnlock()

	sort.Strings(actions)
	return actions
}

// Dispatch routes cmd to its handler and returns the result.
//
// A missing action yields "action must be specified"; an unknown one yields
// "unsupported action specified: <action>". Every dispatch is counted and,
// when a Recorder is set, journaled.
func (r *Router) Dispatch(ctx context.Context, cmd Command) Result {
	start := time.Now()
	result := r.route(ctx, cmd)
	r.observe(ctx, cmd, result, time.Since(start))
	return result
}

// DispatchAsync runs Dispatch in a goroutine. The returned channel receives
// exactly one result and is then closed.
func (r *Router) DispatchAsync(ctx context.Context, cmd Command) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		ch <- r.Dispatch(ctx, cmd)
	}()
	return ch
}

func (r *Router) route(ctx context.Context, cmd Command) Result {
	if cmd.Action == "" {
		return Failure(&CommandError{Kind: KindMissingAction, Message: msgMissingAction})
	}

	r.mu.RLock()
	h, ok := r.handlers[cmd.Action]
	r.mu.RUnlock()

	if !ok {
		return Failure(&CommandError{Kind: KindUnsupportedAction, Message: msgUnsupportedAction + cmd.Action})
	}

	return h.Handle(ctx, cmd)
}

func (r *Router) observe(ctx context.Context, cmd Command, result Result, elapsed time.Duration) {
	r.metrics.observe(cmd.Action, result, elapsed)

	if result.OK() {
		r.logger.Debug("command handled",
			"action", cmd.Action,
			"request_id", cmd.RequestID,
			"duration_ms", elapsed.Milliseconds())
	} else {
		r.logger.Info("command failed",
			"action", cmd.Action,
			"request_id", cmd.RequestID,
			"kind", result.Kind,
			"message", result.Message)
	}

	if r.recorder == nil {
		return
	}

	rec := Record{
		RequestID: cmd.RequestID,
		Action:    cmd.Action,
		Status:    result.Status,
		Kind:      result.Kind,
		Message:   result.Message,
		Duration:  elapsed,
	}
	// The journal must not be tied to the caller's cancellation.
	if err := r.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("failed to record command", "action", cmd.Action, "error", err)
	}
}
