package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Helios coordinator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Poll      PollConfig      `yaml:"poll"`
	Write     WriteConfig     `yaml:"write"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies the ventilation unit and how to reach it.
type DeviceConfig struct {
	// Host is the IP address or hostname of the unit's ModBus TCP endpoint.
	Host string `yaml:"host"`

	// Port is the ModBus TCP port. Helios units listen on 502.
	Port int `yaml:"port"`

	// UnitID is the ModBus slave identifier. Helios units use 180.
	UnitID int `yaml:"unit_id"`

	// MAC is the unit's MAC address, used as the stable device identity.
	MAC string `yaml:"mac"`

	// Name is a fallback display name used when the unit cannot be asked
	// for its configured name at startup.
	Name string `yaml:"name"`

	// TimeoutSeconds bounds a single read or write exchange on the wire.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// PollConfig controls the periodic read cycle.
type PollConfig struct {
	// IntervalSeconds is the delay between polling cycles.
	IntervalSeconds int `yaml:"interval_seconds"`

	// FailureThreshold is the number of consecutive failed reads after
	// which a variable's cached value is marked invalid. Until the
	// threshold is reached the last good value stays visible.
	FailureThreshold int `yaml:"failure_threshold"`

	// InterReadDelayMs is the pause between consecutive reads within one
	// cycle, to avoid flooding the bus.
	InterReadDelayMs int `yaml:"inter_read_delay_ms"`
}

// WriteConfig controls write retry behaviour.
type WriteConfig struct {
	// Retries is the number of transport attempts per write before the
	// write is reported as failed.
	Retries int `yaml:"retries"`

	// BackoffInitialMs is the delay before the first retry. Each
	// subsequent retry doubles the delay up to BackoffMaxMs.
	BackoffInitialMs int `yaml:"backoff_initial_ms"`

	// BackoffMaxMs caps the retry delay.
	BackoffMaxMs int `yaml:"backoff_max_ms"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path         string `yaml:"path"`
	PingInterval int    `yaml:"ping_interval"`
	PongTimeout  int    `yaml:"pong_timeout"`
}

// DatabaseConfig contains SQLite database settings for value history.
type DatabaseConfig struct {
	Path          string `yaml:"path"`
	WALMode       bool   `yaml:"wal_mode"`
	BusyTimeout   int    `yaml:"busy_timeout"`
	RetentionDays int    `yaml:"retention_days"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HELIOS_SECTION_KEY
// For example: HELIOS_DEVICE_HOST, HELIOS_MQTT_PASSWORD
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
//
// The poll interval, retry count, backoff shape, and failure threshold
// default to values that tolerate the bus noise typical of embedded
// ventilation controllers; all of them are overridable.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Port:           502,
			UnitID:         180,
			Name:           "Helios",
			TimeoutSeconds: 5,
		},
		Poll: PollConfig{
			IntervalSeconds:  10,
			FailureThreshold: 3,
			InterReadDelayMs: 50,
		},
		Write: WriteConfig{
			Retries:          3,
			BackoffInitialMs: 200,
			BackoffMaxMs:     2000,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "helios-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8124,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:         "/ws",
			PingInterval: 30,
			PongTimeout:  10,
		},
		Database: DatabaseConfig{
			Path:          "./data/helios.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HELIOS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("HELIOS_DEVICE_HOST"); v != "" {
		cfg.Device.Host = v
	}
	if v := os.Getenv("HELIOS_DEVICE_MAC"); v != "" {
		cfg.Device.MAC = v
	}
	if v := os.Getenv("HELIOS_DEVICE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Device.Port = port
		}
	}

	// Database
	if v := os.Getenv("HELIOS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HELIOS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HELIOS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HELIOS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HELIOS_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("HELIOS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.Host == "" {
		errs = append(errs, "device.host is required")
	}
	if c.Device.Port < 1 || c.Device.Port > 65535 {
		errs = append(errs, "device.port must be between 1 and 65535")
	}
	if c.Device.UnitID < 0 || c.Device.UnitID > 255 {
		errs = append(errs, "device.unit_id must be between 0 and 255")
	}
	if c.Device.TimeoutSeconds < 1 {
		errs = append(errs, "device.timeout_seconds must be at least 1")
	}

	// Poll validation
	if c.Poll.IntervalSeconds < 1 {
		errs = append(errs, "poll.interval_seconds must be at least 1")
	}
	if c.Poll.FailureThreshold < 1 {
		errs = append(errs, "poll.failure_threshold must be at least 1")
	}

	// Write validation
	if c.Write.Retries < 1 {
		errs = append(errs, "write.retries must be at least 1")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TransportTimeout returns the per-exchange transport timeout as a Duration.
func (d DeviceConfig) TransportTimeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// TransportTimeout returns the per-exchange transport timeout as a Duration.
func (c *Config) TransportTimeout() time.Duration {
	return c.Device.TransportTimeout()
}

// Interval returns the polling cycle interval as a Duration.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// InterReadDelay returns the delay between reads within a cycle as a Duration.
func (p PollConfig) InterReadDelay() time.Duration {
	return time.Duration(p.InterReadDelayMs) * time.Millisecond
}

// PollInterval returns the polling cycle interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return c.Poll.Interval()
}

// BackoffInitial returns the initial write retry delay as a Duration.
func (w WriteConfig) BackoffInitial() time.Duration {
	return time.Duration(w.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the maximum write retry delay as a Duration.
func (w WriteConfig) BackoffMax() time.Duration {
	return time.Duration(w.BackoffMaxMs) * time.Millisecond
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
