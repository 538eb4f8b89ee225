package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/kairos-persistor/internal/api"
	"github.com/nerrad567/kairos-persistor/internal/infrastructure/config"
	"github.com/nerrad567/kairos-persistor/internal/infrastructure/logging"
	"github.com/nerrad567/kairos-persistor/internal/journal"
	"github.com/nerrad567/kairos-persistor/internal/persistor"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("KAIROSPERSISTOR_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_BrokerUnreachable verifies run fails when the MQTT broker refuses connections.
func TestRun_BrokerUnreachable(t *testing.T) {
	configPath := writeConfig(t, `
persistor:
  address: "test.kairospersistor"
  host: "127.0.0.1"
  port: 18080
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "kairospersistor-test-unreachable"
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 5
api:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
`)
	t.Setenv("KAIROSPERSISTOR_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail when the broker is unreachable")
	}
	if !strings.Contains(err.Error(), "MQTT") {
		t.Errorf("run() error = %v, want MQTT connection error", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("KAIROSPERSISTOR_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("KAIROSPERSISTOR_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// =============================================================================
// Health Check Tests
// =============================================================================

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	ok := checkerFunc(func(context.Context) error { return nil })
	down := checkerFunc(func(context.Context) error { return errors.New("connection refused") })

	if err := healthCheck(context.Background(), []api.Check{{Name: "mqtt", Checker: ok}, {Name: "kairosdb", Checker: ok}}); err != nil {
		t.Errorf("healthCheck() error = %v, want nil", err)
	}

	err := healthCheck(context.Background(), []api.Check{{Name: "mqtt", Checker: ok}, {Name: "kairosdb", Checker: down}})
	if err == nil || !strings.Contains(err.Error(), "kairosdb: connection refused") {
		t.Errorf("healthCheck() error = %v, want kairosdb failure", err)
	}
}

func TestComponentChecks_SkipsDisabled(t *testing.T) {
	checks := componentChecks(nil, nil, nil, nil)

	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name)
	}
	if strings.Join(names, ",") != "mqtt,kairosdb" {
		t.Errorf("componentChecks() names = %v, want [mqtt kairosdb]", names)
	}
}

// =============================================================================
// Journal Recorder Tests
// =============================================================================

func testJournal(t *testing.T) journal.Repository {
	t.Helper()

	db, err := openJournal(context.Background(), config.JournalConfig{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("openJournal() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	return journal.NewSQLiteRepository(db.DB)
}

func TestJournalRecorder_WritesRecords(t *testing.T) {
	repo := testJournal(t)
	recorder := newJournalRecorder(repo, logging.Discard())
	recorder.Start(context.Background(), 0)

	records := []persistor.Record{
		{RequestID: "r1", Action: "version", Status: persistor.StatusOK, Duration: 4 * time.Millisecond},
		{RequestID: "r2", Action: "delete_metric", Status: persistor.StatusError,
			Kind: persistor.KindMissingField, Message: "metric name must be specified"},
	}
	for _, rec := range records {
		if err := recorder.Record(context.Background(), rec); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	recorder.Stop()

	result, err := repo.List(context.Background(), journal.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("List() total = %d, want 2", result.Total)
	}

	byID := make(map[string]journal.Entry)
	for _, e := range result.Entries {
		byID[e.RequestID] = e
	}
	if got := byID["r1"]; got.Status != "ok" || got.DurationMS != 4 {
		t.Errorf("r1 = %+v, want ok with 4ms", got)
	}
	if got := byID["r2"]; got.Kind != "missing_field" || got.Message != "metric name must be specified" {
		t.Errorf("r2 = %+v", got)
	}
}

func TestJournalRecorder_RecordsAfterContextCancelled(t *testing.T) {
	repo := testJournal(t)
	recorder := newJournalRecorder(repo, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	recorder.Start(ctx, 0)
	cancel()

	// In-flight commands still finish after the shutdown signal.
	rec := persistor.Record{RequestID: "late", Action: "version", Status: persistor.StatusOK}
	if err := recorder.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	recorder.Stop()

	result, err := repo.List(context.Background(), journal.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || result.Entries[0].RequestID != "late" {
		t.Errorf("List() = %+v, want the late entry", result)
	}
}

func TestJournalRecorder_DropsWhenFull(t *testing.T) {
	recorder := newJournalRecorder(nil, logging.Discard())

	for i := range journalChanSize {
		if err := recorder.Record(context.Background(), persistor.Record{Action: "version"}); err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}

	err := recorder.Record(context.Background(), persistor.Record{Action: "version"})
	if !errors.Is(err, errJournalFull) {
		t.Errorf("Record() error = %v, want errJournalFull", err)
	}
}

func TestJournalRecorder_Prune(t *testing.T) {
	repo := testJournal(t)
	ctx := context.Background()

	old := &journal.Entry{RequestID: "old", Action: "version", Status: "ok", CreatedAt: time.Now().Add(-72 * time.Hour)}
	fresh := &journal.Entry{RequestID: "fresh", Action: "version", Status: "ok"}
	for _, e := range []*journal.Entry{old, fresh} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	recorder := newJournalRecorder(repo, logging.Discard())
	recorder.prune(ctx, 24*time.Hour)

	result, err := repo.List(ctx, journal.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || result.Entries[0].RequestID != "fresh" {
		t.Errorf("remaining = %+v, want only fresh", result.Entries)
	}
}
