package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the KairosDB persistor.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Persistor PersistorConfig `yaml:"persistor"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	Journal   JournalConfig   `yaml:"journal"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PersistorConfig contains the bus address and the KairosDB backend location.
type PersistorConfig struct {
	// Address is the bus endpoint name. Commands arrive on "<address>/command".
	Address string `yaml:"address"`

	// Host is the KairosDB REST host.
	Host string `yaml:"host"`

	// Port is the KairosDB REST port.
	Port int `yaml:"port"`

	// Timeout bounds a single backend HTTP exchange (seconds). 0 disables it.
	Timeout int `yaml:"timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains the status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// JournalConfig contains the SQLite command journal settings.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// RetentionHours is how long journal entries are kept. 0 keeps them forever.
	RetentionHours int `yaml:"retention_hours"`
}

// InfluxDBConfig contains the optional InfluxDB mirror settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// envFile is loaded into the process environment before overrides are applied.
const envFile = ".env"

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Variables from a .env file in the working directory (if present)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: KAIROSPERSISTOR_SECTION_KEY
// For example: KAIROSPERSISTOR_PERSISTOR_HOST, KAIROSPERSISTOR_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// godotenv.Load never overwrites variables already set in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the default configuration without reading any file.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Persistor: PersistorConfig{
			Address: "jonnywray.kairospersistor",
			Host:    "localhost",
			Port:    8080,
			Timeout: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "kairospersistor",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Journal: JournalConfig{
			Enabled:        false,
			Path:           "./data/journal.db",
			WALMode:        true,
			BusyTimeout:    5,
			RetentionHours: 168,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: KAIROSPERSISTOR_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Persistor
	if v := os.Getenv("KAIROSPERSISTOR_PERSISTOR_ADDRESS"); v != "" {
		cfg.Persistor.Address = v
	}
	if v := os.Getenv("KAIROSPERSISTOR_PERSISTOR_HOST"); v != "" {
		cfg.Persistor.Host = v
	}
	if v := os.Getenv("KAIROSPERSISTOR_PERSISTOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Persistor.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("KAIROSPERSISTOR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("KAIROSPERSISTOR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("KAIROSPERSISTOR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("KAIROSPERSISTOR_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Journal
	if v := os.Getenv("KAIROSPERSISTOR_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	// InfluxDB
	if v := os.Getenv("KAIROSPERSISTOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Persistor validation
	if c.Persistor.Address == "" {
		errs = append(errs, "persistor.address is required")
	} else if strings.ContainsAny(c.Persistor.Address, "+#") {
		errs = append(errs, "persistor.address must not contain MQTT wildcards")
	}
	if c.Persistor.Host == "" {
		errs = append(errs, "persistor.host is required")
	}
	if c.Persistor.Port < 1 || c.Persistor.Port > 65535 {
		errs = append(errs, "persistor.port must be between 1 and 65535")
	}
	if c.Persistor.Timeout < 0 {
		errs = append(errs, "persistor.timeout must not be negative")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Journal validation
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when the mirror is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when the mirror is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BackendURL returns the KairosDB base URL built from host and port.
func (c *Config) BackendURL() string {
	return "http://" + net.JoinHostPort(c.Persistor.Host, strconv.Itoa(c.Persistor.Port))
}

// GetBackendTimeout returns the backend HTTP timeout as a Duration.
func (c *Config) GetBackendTimeout() time.Duration {
	return time.Duration(c.Persistor.Timeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetJournalRetention returns the journal retention window as a Duration.
func (c *Config) GetJournalRetention() time.Duration {
	return time.Duration(c.Journal.RetentionHours) * time.Hour
}
