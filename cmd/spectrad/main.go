// spectrad - multi-channel spectrograph control daemon
//
// spectrad attaches to one or more Andor Shamrock-class spectrographs,
// publishes their discovered topology and live optical state over MQTT,
// and executes parameter commands received from control clients. A small
// read-only HTTP API exposes diagnostics, history and hardware reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hollis-lab/spectra-core/internal/api"
	"github.com/hollis-lab/spectra-core/internal/bridge"
	"github.com/hollis-lab/spectra-core/internal/history"
	"github.com/hollis-lab/spectra-core/internal/infrastructure/config"
	"github.com/hollis-lab/spectra-core/internal/infrastructure/database"
	"github.com/hollis-lab/spectra-core/internal/infrastructure/influxdb"
	"github.com/hollis-lab/spectra-core/internal/infrastructure/logging"
	"github.com/hollis-lab/spectra-core/internal/infrastructure/mqtt"
	"github.com/hollis-lab/spectra-core/internal/spectro"
	"github.com/hollis-lab/spectra-core/internal/spectro/sim"
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

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting spectrad",
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
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

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

	repo := history.NewRepository(db)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Attach spectrograph units. Discovery runs inside bridge.New: every
	// unit initialises its session and publishes its full state before
	// the daemon accepts commands.
	units, err := buildUnits(cfg, log)
	if err != nil {
		return fmt.Errorf("preparing units: %w", err)
	}

	bridgeOpts := bridge.Options{
		ServiceID: "spectrad",
		Version:   version,
		MQTT:      mqttClient,
		QoS:       byte(cfg.MQTT.QoS),
		Units:     units,
		History:   repo,
		Logger:    log,
	}
	if influxClient != nil {
		bridgeOpts.Telemetry = influxClient
		bridgeOpts.RefreshTelemetry = influxClient
	}

	spectroBridge, err := bridge.New(bridgeOpts)
	if err != nil {
		return fmt.Errorf("attaching spectrographs: %w", err)
	}
	if err := spectroBridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		spectroBridge.Stop()
	}()
	log.Info("bridge started", "units", len(spectroBridge.UnitIDs()))

	// Start diagnostics API (optional)
	if cfg.API.Enabled {
		apiServer, err := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Units:   spectroBridge,
			History: repo,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (if enabled)
	// 2. Bridge (final health status, unit sessions)
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("spectrad stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SPECTRA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SPECTRA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildUnits converts configured spectrographs into bridge unit options,
// binding each to a vendor session.
//
// Only the simulated bench is wired here. Real Shamrock hardware needs
// the vendor SDK's shared libraries, which bind through a cgo session
// implementation built with the `shamrock` tag.
func buildUnits(cfg *config.Config, log *logging.Logger) ([]bridge.UnitOptions, error) {
	if !cfg.Simulation.Enabled {
		return nil, fmt.Errorf("no vendor session available: enable simulation or build with hardware support")
	}

	bench := sim.DefaultBench()
	if cfg.Simulation.Pixels > 0 {
		bench.Pixels = cfg.Simulation.Pixels
	}
	log.Info("using simulated bench",
		"pixels", bench.Pixels,
		"gratings", len(bench.Gratings),
	)

	units := make([]bridge.UnitOptions, 0, len(cfg.Spectrographs))
	for _, sc := range cfg.Spectrographs {
		// Each unit gets its own session so simulated state stays
		// independent across units.
		session := sim.NewSession(bench)
		units = append(units, bridge.UnitOptions{
			Config: spectro.UnitConfig{
				ID:          sc.ID,
				DeviceIndex: sc.DeviceIndex,
				INIPath:     sc.INIPath,
				Priority:    sc.Priority,
				StackSize:   sc.StackSize,
			},
			Session:         session,
			Detector:        sim.NewDetector(bench),
			RefreshInterval: sc.GetRefreshInterval(),
		})
	}
	return units, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
