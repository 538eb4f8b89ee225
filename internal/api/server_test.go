package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/kairos-persistor/internal/infrastructure/config"
	"github.com/nerrad567/kairos-persistor/internal/infrastructure/logging"
	"github.com/nerrad567/kairos-persistor/internal/journal"
	"github.com/nerrad567/kairos-persistor/internal/persistor"
)

// =============================================================================
// Test doubles
// =============================================================================

// stubDispatcher records commands and answers with a fixed result.
type stubDispatcher struct {
	mu       sync.Mutex
	commands []persistor.Command
	result   persistor.Result
}

func (d *stubDispatcher) Dispatch(_ context.Context, cmd persistor.Command) persistor.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, cmd)
	return d.result
}

func (d *stubDispatcher) last() persistor.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commands[len(d.commands)-1]
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func healthy() checkerFunc { return func(context.Context) error { return nil } }

func failing(msg string) checkerFunc {
	return func(context.Context) error { return errors.New(msg) }
}

// memoryJournal is an in-memory journal.Repository.
type memoryJournal struct {
	filters []journal.Filter
	err     error
}

func (j *memoryJournal) Create(context.Context, *journal.Entry) error { return nil }

func (j *memoryJournal) List(_ context.Context, f journal.Filter) (*journal.ListResult, error) {
	j.filters = append(j.filters, f)
	if j.err != nil {
		return nil, j.err
	}
	return &journal.ListResult{
		Entries: []journal.Entry{{ID: "cmd-1", RequestID: "r1", Action: "version", Status: "ok"}},
		Total:   1,
		Limit:   f.Limit,
		Offset:  f.Offset,
	}, nil
}

func (j *memoryJournal) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

type staticBus bool

func (b staticBus) IsConnected() bool { return bool(b) }

type staticStats persistor.ServiceStats

func (s staticStats) Stats() persistor.ServiceStats { return persistor.ServiceStats(s) }

type staticDBStats sql.DBStats

func (s staticDBStats) Stats() sql.DBStats { return sql.DBStats(s) }

func testDeps(dispatcher persistor.Dispatcher) Deps {
	return Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:     logging.Discard(),
		Dispatcher: dispatcher,
		Version:    "test",
	}
}

// testServer returns a handler for deps after applying mutate.
func testServer(t *testing.T, mutate func(d *Deps)) (http.Handler, *stubDispatcher) {
	t.Helper()

	dispatcher := &stubDispatcher{result: persistor.Success(map[string]any{"version": "KairosDB 1.3.0"})}
	deps := testDeps(dispatcher)
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	require.NoError(t, err)

	return srv.Handler(), dispatcher
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_RequiresDependencies(t *testing.T) {
	deps := testDeps(&stubDispatcher{})
	deps.Logger = nil
	_, err := New(deps)
	assert.Error(t, err)

	deps = testDeps(nil)
	_, err = New(deps)
	assert.Error(t, err)
}

func TestServer_CloseWithoutStart(t *testing.T) {
	srv, err := New(testDeps(&stubDispatcher{}))
	require.NoError(t, err)

	assert.NoError(t, srv.Close())
	assert.Error(t, srv.HealthCheck(context.Background()))
}

func TestServer_StartAndClose(t *testing.T) {
	srv, err := New(testDeps(&stubDispatcher{}))
	require.NoError(t, err)

	require.NoError(t, srv.Start(context.Background()))
	assert.NoError(t, srv.HealthCheck(context.Background()))
	assert.NoError(t, srv.Close())
}

// =============================================================================
// Middleware
// =============================================================================

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	h, _ := testServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/metrics", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-id", rec.Header().Get("X-Request-ID"))
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, err := New(testDeps(&stubDispatcher{}))
	require.NoError(t, err)

	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// =============================================================================
// Health
// =============================================================================

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     []Check
		wantCode   int
		wantStatus string
	}{
		{
			name:       "all healthy",
			checks:     []Check{{Name: "mqtt", Checker: healthy()}, {Name: "kairosdb", Checker: healthy()}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "required failing",
			checks:     []Check{{Name: "mqtt", Checker: healthy()}, {Name: "kairosdb", Checker: failing("connection refused")}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
		},
		{
			name:       "optional failing",
			checks:     []Check{{Name: "kairosdb", Checker: healthy()}, {Name: "influxdb", Checker: failing("timeout"), Optional: true}},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := testServer(t, func(d *Deps) { d.Checks = tt.checks })

			rec := do(t, h, http.MethodGet, "/api/v1/health", "")
			assert.Equal(t, tt.wantCode, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, "test", body["version"])

			components, ok := body["components"].(map[string]any)
			require.True(t, ok)
			assert.Len(t, components, len(tt.checks))
		})
	}
}

func TestHandleHealth_ReportsFailureMessage(t *testing.T) {
	h, _ := testServer(t, func(d *Deps) {
		d.Checks = []Check{{Name: "kairosdb", Checker: failing("kairosdb: backend unhealthy")}}
	})

	body := decode(t, do(t, h, http.MethodGet, "/api/v1/health", ""))
	components := body["components"].(map[string]any)
	assert.Equal(t, "kairosdb: backend unhealthy", components["kairosdb"])
}

// =============================================================================
// Metrics
// =============================================================================

func TestHandleMetrics(t *testing.T) {
	metrics := persistor.NewMetrics(prometheus.NewRegistry())

	h, _ := testServer(t, func(d *Deps) {
		d.Bus = staticBus(true)
		d.Service = staticStats{Received: 3, Replied: 2, Invalid: 1, CommandTopic: "a/command", SubscriptionUp: true}
		d.Metrics = metrics
		d.DB = staticDBStats{OpenConnections: 1, Idle: 1}
	})

	rec := do(t, h, http.MethodGet, "/api/v1/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body SystemMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "test", body.Version)
	assert.True(t, body.Bus.Connected)
	require.NotNil(t, body.Bus.Service)
	assert.Equal(t, uint64(3), body.Bus.Service.Received)
	assert.Equal(t, "a/command", body.Bus.Service.CommandTopic)
	require.NotNil(t, body.Dispatch)
	require.NotNil(t, body.Database)
	assert.Equal(t, 1, body.Database.OpenConnections)
	assert.Positive(t, body.Runtime.Goroutines)
}

func TestHandleMetrics_OptionalSectionsOmitted(t *testing.T) {
	h, _ := testServer(t, nil)

	body := decode(t, do(t, h, http.MethodGet, "/api/v1/metrics", ""))
	assert.NotContains(t, body, "dispatch")
	assert.NotContains(t, body, "database")
}

func TestPrometheusExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := persistor.NewMetrics(reg)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"version":"KairosDB 1.3.0"}`))
	}))
	defer backend.Close()

	router := persistor.NewRouter(kairosBackend(t, backend.URL), persistor.RouterOptions{Metrics: metrics})
	router.Dispatch(context.Background(), persistor.NewCommand(map[string]any{"action": "version"}))

	h, _ := testServer(t, func(d *Deps) { d.Gatherer = reg })

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kairospersistor_commands_total{action="version",status="ok"} 1`)
}

// =============================================================================
// Journal
// =============================================================================

func TestHandleListJournal(t *testing.T) {
	repo := &memoryJournal{}
	h, _ := testServer(t, func(d *Deps) { d.Journal = repo })

	rec := do(t, h, http.MethodGet, "/api/v1/journal?action=version&status=ok&limit=10&offset=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, repo.filters, 1)
	assert.Equal(t, journal.Filter{Action: "version", Status: "ok", Limit: 10, Offset: 5}, repo.filters[0])

	var result journal.ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "cmd-1", result.Entries[0].ID)
}

func TestHandleListJournal_Errors(t *testing.T) {
	tests := []struct {
		name     string
		repo     journal.Repository
		query    string
		wantCode int
	}{
		{"disabled", nil, "", http.StatusServiceUnavailable},
		{"bad limit", &memoryJournal{}, "?limit=ten", http.StatusBadRequest},
		{"bad offset", &memoryJournal{}, "?offset=-x", http.StatusBadRequest},
		{"repository failure", &memoryJournal{err: errors.New("disk I/O error")}, "", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := testServer(t, func(d *Deps) { d.Journal = tt.repo })

			rec := do(t, h, http.MethodGet, "/api/v1/journal"+tt.query, "")
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

// =============================================================================
// Commands
// =============================================================================

func TestHandleCommand_Success(t *testing.T) {
	h, dispatcher := testServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/commands", `{"action":"version","request_id":"abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "KairosDB 1.3.0", body["version"])
	assert.Equal(t, "abc", body["request_id"])
	assert.Equal(t, "version", dispatcher.last().Action)
}

func TestHandleCommand_RequestIDFromHeader(t *testing.T) {
	h, dispatcher := testServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/commands", strings.NewReader(`{"action":"version"}`))
	req.Header.Set("X-Request-ID", "hdr-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hdr-1", dispatcher.last().RequestID)
	assert.Equal(t, "hdr-1", decode(t, rec)["request_id"])
}

func TestHandleCommand_InvalidEnvelope(t *testing.T) {
	h, dispatcher := testServer(t, nil)

	for _, body := range []string{`not json`, `[1,2]`, `null`, `{"action":"version"} {}`} {
		rec := do(t, h, http.MethodPost, "/api/v1/commands", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)

		reply := decode(t, rec)
		assert.Equal(t, "error", reply["status"])
		assert.Contains(t, reply["message"], "invalid command envelope")
	}

	assert.Empty(t, dispatcher.commands)
}

func TestHandleCommand_TooLarge(t *testing.T) {
	h, _ := testServer(t, nil)

	big := `{"action":"version","pad":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	rec := do(t, h, http.MethodPost, "/api/v1/commands", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCommandStatus(t *testing.T) {
	tests := []struct {
		name   string
		result persistor.Result
		want   int
	}{
		{"ok", persistor.Success(nil), http.StatusOK},
		{"missing action", persistor.Result{Status: persistor.StatusError, Kind: persistor.KindMissingAction}, http.StatusBadRequest},
		{"validation", persistor.Result{Status: persistor.StatusError, Kind: persistor.KindValidationFailure}, http.StatusBadRequest},
		{"backend error", persistor.Result{Status: persistor.StatusError, Kind: persistor.KindBackendError}, http.StatusBadGateway},
		{"unreachable", persistor.Result{Status: persistor.StatusError, Kind: persistor.KindBackendUnreachable}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandStatus(tt.result))
		})
	}
}
