// KairosDB persistor
//
// This is the main entry point for the persistor service. It listens for
// command envelopes on an MQTT topic, turns each one into a KairosDB REST
// call and publishes the result back on the bus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/kairos-persistor/migrations"

	"github.com/nerrad567/kairos-persistor/internal/api"
	"github.com/nerrad567/kairos-persistor/internal/infrastructure/config"
	"github.com/nerrad567/kairos-persistor/internal/infrastructure/database"
	"github.com/nerrad567/kairos-persistor/internal/infrastructure/influxdb"
	"github.com/nerrad567/kairos-persistor/internal/infrastructure/kairosdb"
	"github.com/nerrad567/kairos-persistor/internal/infrastructure/logging"
	"github.com/nerrad567/kairos-persistor/internal/infrastructure/mqtt"
	"github.com/nerrad567/kairos-persistor/internal/journal"
	"github.com/nerrad567/kairos-persistor/internal/persistor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// startupCheckTimeout bounds the health checks run before accepting commands.
const startupCheckTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting KairosDB persistor",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Persistor.Address)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// KairosDB REST client
	backend := kairosdb.New(cfg.BackendURL(), cfg.GetBackendTimeout())
	defer backend.Close() //nolint:errcheck // Only releases idle connections
	log.Info("KairosDB backend configured", "url", backend.BaseURL())

	// Command journal (optional)
	var (
		db          *database.DB
		journalRepo journal.Repository
		recorder    *journalRecorder
	)
	if cfg.Journal.Enabled {
		db, err = openJournal(ctx, cfg.Journal)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing journal database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing journal database", "error", closeErr)
			}
		}()
		log.Info("journal database ready", "path", cfg.Journal.Path)

		repo := journal.NewSQLiteRepository(db.DB)
		journalRepo = repo
		recorder = newJournalRecorder(repo, log)
		recorder.Start(ctx, cfg.GetJournalRetention())
		defer recorder.Stop()
	} else {
		log.Info("command journal disabled")
	}

	// InfluxDB mirror (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB mirror write error", "error", err)
		})
		log.Info("InfluxDB mirror connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB mirror disabled")
	}

	// Verify all connections are healthy before accepting commands
	if err := healthCheck(ctx, componentChecks(mqttClient, backend, db, influxClient)); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Command router
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := persistor.NewMetrics(registry)

	routerOpts := persistor.RouterOptions{
		Logger:  log,
		Metrics: metrics,
	}
	if recorder != nil {
		routerOpts.Recorder = recorder
	}
	if influxClient != nil {
		routerOpts.Mirror = influxClient
	}
	router := persistor.NewRouter(backend, routerOpts)

	// Bus service
	service, err := persistor.NewService(persistor.ServiceOptions{
		Address:    cfg.Persistor.Address,
		QoS:        byte(cfg.MQTT.QoS), //nolint:gosec // QoS validated to 0-2 by config
		Bus:        &mqttBusAdapter{client: mqttClient},
		Dispatcher: router,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating persistor service: %w", err)
	}
	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("starting persistor service: %w", err)
	}
	defer func() {
		log.Info("stopping persistor service")
		service.Stop()
	}()
	log.Info("persistor listening",
		"topic", service.CommandTopic(),
		"actions", router.Actions(),
	)

	// Status API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:     cfg.API,
			Logger:     log,
			Dispatcher: router,
			Checks:     componentChecks(mqttClient, backend, db, influxClient),
			Bus:        mqttClient,
			Service:    service,
			Metrics:    metrics,
			Gatherer:   registry,
			Version:    version,
		}
		if db != nil {
			deps.Journal = journalRepo
			deps.DB = db
		}

		apiServer, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// API, service, InfluxDB, journal recorder, journal database, KairosDB, MQTT

	log.Info("KairosDB persistor stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses KAIROSPERSISTOR_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("KAIROSPERSISTOR_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openJournal opens the journal database and applies migrations.
func openJournal(ctx context.Context, cfg config.JournalConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

// componentChecks lists the components probed at startup and reported by
// /api/v1/health. Nil optional components are skipped.
func componentChecks(mqttClient *mqtt.Client, backend *kairosdb.Client, db *database.DB, influxClient *influxdb.Client) []api.Check {
	checks := []api.Check{
		{Name: "mqtt", Checker: mqttClient},
		{Name: "kairosdb", Checker: backend},
	}
	if db != nil {
		checks = append(checks, api.Check{Name: "journal", Checker: db, Optional: true})
	}
	if influxClient != nil {
		checks = append(checks, api.Check{Name: "influxdb", Checker: influxClient, Optional: true})
	}
	return checks
}

// healthCheck runs all checks concurrently and returns the first failure.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - checks: Components to probe
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, checks []api.Check) error {
	ctx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, check := range checks {
		g.Go(func() error {
			if err := check.Checker.HealthCheck(gctx); err != nil {
				return fmt.Errorf("%s: %w", check.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// mqttBusAdapter adapts the infrastructure MQTT client to persistor.Bus.
// The infrastructure client takes a named mqtt.MessageHandler; the service
// hands over a plain func of the same shape.
type mqttBusAdapter struct {
	client *mqtt.Client
}

// Subscribe implements persistor.Bus.
func (a *mqttBusAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return a.client.Subscribe(topic, qos, mqtt.MessageHandler(handler))
}

// Unsubscribe implements persistor.Bus.
func (a *mqttBusAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

// Publish implements persistor.Bus.
func (a *mqttBusAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}
