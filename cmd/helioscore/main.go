// helios-core - device-state coordinator for Helios KWL ventilation units.
//
// helios-core talks ModBus/TCP to a single ventilation unit, keeps a cache
// of its variables, and exposes them over MQTT, REST, and WebSocket. Value
// changes are recorded to SQLite for history queries and optionally shipped
// to InfluxDB for long-term telemetry.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openvent/helios-core/internal/api"
	"github.com/openvent/helios-core/internal/bridge"
	"github.com/openvent/helios-core/internal/coordinator"
	"github.com/openvent/helios-core/internal/history"
	"github.com/openvent/helios-core/internal/infrastructure/config"
	"github.com/openvent/helios-core/internal/infrastructure/database"
	"github.com/openvent/helios-core/internal/infrastructure/influxdb"
	"github.com/openvent/helios-core/internal/infrastructure/logging"
	"github.com/openvent/helios-core/internal/infrastructure/mqtt"
	"github.com/openvent/helios-core/internal/modbus"
	"github.com/openvent/helios-core/internal/variable"
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

// pruneInterval is how often expired history rows are deleted.
const pruneInterval = time.Hour

func main() {
	// Cancel the root context on interrupt signals (Ctrl+C, SIGTERM).
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting helios-core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// History repository owns its own schema
	historyRepo, err := history.NewSQLiteRepository(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("initialising history: %w", err)
	}

	// Connect to the ventilation unit
	transport, err := modbus.Connect(cfg.Device)
	if err != nil {
		return fmt.Errorf("connecting to unit: %w", err)
	}
	defer func() {
		log.Info("closing ModBus connection")
		if closeErr := transport.Close(); closeErr != nil {
			log.Error("error closing ModBus connection", "error", closeErr)
		}
	}()
	log.Info("ModBus connected",
		"host", cfg.Device.Host,
		"port", cfg.Device.Port,
		"unit_id", cfg.Device.UnitID,
	)

	// Build the coordinator over the full catalog
	registry := variable.Default()

	coord, err := coordinator.New(coordinator.Deps{
		Registry:  registry,
		Transport: transport,
		Device:    cfg.Device,
		Poll:      cfg.Poll,
		Write:     cfg.Write,
		Logger:    log.With("component", "coordinator"),
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("starting coordinator: %w", err)
	}
	defer func() {
		log.Info("stopping coordinator")
		coord.Close()
	}()
	identity := coord.Identity()
	log.Info("coordinator started",
		"mac", identity.MAC,
		"display_name", identity.DisplayName,
		"variables", registry.Count(),
	)

	// Connect to InfluxDB (optional)
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
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Record value changes to history and telemetry. The typed-nil check
	// matters: a nil *influxdb.Client wrapped in the interface would not
	// compare equal to nil inside recordTelemetry.
	var telemetry telemetryWriter
	if influxClient != nil {
		telemetry = influxClient
	}
	detachRecorders, err := attachRecorders(ctx, coord, historyRepo, telemetry, identity.MAC, log)
	if err != nil {
		return fmt.Errorf("attaching recorders: %w", err)
	}
	defer detachRecorders()

	// Prune expired history rows in the background
	if cfg.Database.RetentionDays > 0 {
		go pruneLoop(ctx, historyRepo, cfg.Database.RetentionDays, log)
	}

	// Start the MQTT bridge (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
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

		mqttBridge, bridgeErr := bridge.New(bridge.Options{
			Coordinator: coord,
			MQTTClient:  mqttClient,
			QoS:         cfg.MQTT.QoS,
			Logger:      log.With("component", "bridge"),
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}
		if startErr := mqttBridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			mqttBridge.Stop()
		}()
		log.Info("MQTT bridge started")
	} else {
		log.Info("MQTT bridge disabled")
	}

	// Start the API server (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log.With("component", "api"),
			Coordinator: coord,
			History:     historyRepo,
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, MQTT bridge, MQTT client, recorders, InfluxDB,
	// coordinator, ModBus, database.

	log.Info("helios-core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HELIOS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HELIOS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// telemetryWriter is the slice of the InfluxDB client the recorders need.
// Keeping it an interface lets tests capture the emitted points.
type telemetryWriter interface {
	WriteVariableMetric(deviceMAC, variableID string, value float64, at time.Time)
	WriteAvailability(deviceMAC, variableID string, available bool, at time.Time)
}

// attachRecorders registers one coordinator listener per catalog variable
// that writes every cache change to the history repository and, when
// connected, to InfluxDB. The returned function detaches all listeners.
func attachRecorders(ctx context.Context, coord *coordinator.Coordinator, repo history.Repository, influx telemetryWriter, deviceMAC string, log *logging.Logger) (func(), error) {
	handles := make(map[string]coordinator.Handle)

	detach := func() {
		for id, handle := range handles {
			coord.RemoveListener(id, handle)
		}
	}

	for _, id := range coord.Registry().IDs() {
		handle, err := coord.AddListener(id, func(cv coordinator.CachedValue) {
			if err := repo.Record(ctx, cv.VariableID, cv.Value, cv.Valid, cv.UpdatedAt); err != nil {
				log.Error("history write failed", "variable_id", cv.VariableID, "error", err)
			}
			recordTelemetry(influx, deviceMAC, cv)
		})
		if err != nil {
			detach()
			return nil, err
		}
		handles[id] = handle
	}

	return detach, nil
}

// recordTelemetry ships one cache change to InfluxDB. Strings carry no
// telemetry beyond availability. The cache holds decoded values (int64,
// float64, bool per the variable kinds); int is accepted as well for
// values applied through in-process writes.
func recordTelemetry(influx telemetryWriter, deviceMAC string, cv coordinator.CachedValue) {
	if influx == nil {
		return
	}

	influx.WriteAvailability(deviceMAC, cv.VariableID, cv.Valid, cv.UpdatedAt)

	if !cv.Valid {
		return
	}
	switch v := cv.Value.(type) {
	case int64:
		influx.WriteVariableMetric(deviceMAC, cv.VariableID, float64(v), cv.UpdatedAt)
	case int:
		influx.WriteVariableMetric(deviceMAC, cv.VariableID, float64(v), cv.UpdatedAt)
	case float64:
		influx.WriteVariableMetric(deviceMAC, cv.VariableID, v, cv.UpdatedAt)
	case bool:
		metric := 0.0
		if v {
			metric = 1.0
		}
		influx.WriteVariableMetric(deviceMAC, cv.VariableID, metric, cv.UpdatedAt)
	}
}

// pruneLoop deletes history rows older than the retention window until the
// context is cancelled.
func pruneLoop(ctx context.Context, repo *history.SQLiteRepository, retentionDays int, log *logging.Logger) {
	retention := time.Duration(retentionDays) * 24 * time.Hour

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.Prune(ctx, retention)
			if err != nil {
				log.Error("history prune failed", "error", err)
				continue
			}
			if deleted > 0 {
				log.Info("history pruned", "rows", deleted, "retention_days", retentionDays)
			}
		}
	}
}
