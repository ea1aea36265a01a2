// Loxone Bridge - Miniserver to MQTT gateway
//
// This is the main entry point for the bridge. It connects to a Loxone
// Miniserver over an authenticated websocket, relays Miniserver events
// to MQTT, and forwards MQTT commands back to the Miniserver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/loxone-bridge/internal/api"
	"github.com/nerrad567/loxone-bridge/internal/bridge"
	"github.com/nerrad567/loxone-bridge/internal/infrastructure/config"
	"github.com/nerrad567/loxone-bridge/internal/infrastructure/database"
	"github.com/nerrad567/loxone-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/loxone-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/loxone-bridge/internal/miniserver"
	"github.com/nerrad567/loxone-bridge/internal/miniserver/loxws"
	"github.com/nerrad567/loxone-bridge/internal/snapshot"
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
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful
	// shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Loxone Bridge",
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

	snapshots, err := snapshot.NewStore(ctx, db)
	if err != nil {
		return fmt.Errorf("initialising snapshot store: %w", err)
	}

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

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Set up the Miniserver session
	session, err := startSession(ctx, cfg, snapshots, log)
	if err != nil {
		return fmt.Errorf("starting miniserver session: %w", err)
	}
	defer func() {
		log.Info("stopping miniserver session")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), sessionStopTimeout)
		defer stopCancel()
		if stopErr := session.Stop(stopCtx); stopErr != nil {
			log.Error("error stopping session", "error", stopErr)
		}
	}()

	// Start the event bridge
	eventBridge, err := bridge.New(bridge.Options{
		MiniserverID:   cfg.Miniserver.ID,
		Version:        version,
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		Session:        session,
		HealthInterval: time.Duration(cfg.Bridge.HealthInterval) * time.Second,
		EventBuffer:    cfg.Bridge.EventBuffer,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := eventBridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		eventBridge.Stop()
	}()

	// Start the HTTP API (if enabled)
	if cfg.API.Enabled {
		apiServer, err := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log,
			Commander: eventBridge,
			Session:   session,
			Snapshots: snapshots,
			Version:   version,
		})
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
		log.Info("API server disabled")
	}

	// Verify infrastructure connections
	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Bridge
	// 3. Miniserver session
	// 4. MQTT
	// 5. Database

	log.Info("Loxone Bridge stopped")
	return nil
}

// sessionStopTimeout bounds session teardown during shutdown.
const sessionStopTimeout = 10 * time.Second

// getConfigPath returns the configuration file path. Uses the
// LOXBRIDGE_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("LOXBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startSession fetches the structure document, establishes the
// websocket transport, and starts the event stream.
func startSession(ctx context.Context, cfg *config.Config, snapshots *snapshot.Store, log *logging.Logger) (*miniserver.Manager, error) {
	fetcher := miniserver.NewHTTPFetcher(cfg.Miniserver)

	factory := func(tc miniserver.TransportConfig) (miniserver.Transport, error) {
		transport, err := loxws.New(loxws.Config{
			Host:     tc.Host,
			Port:     tc.Port,
			Username: tc.Username,
			Password: tc.Password,
		})
		if err != nil {
			return nil, err
		}
		transport.SetLogger(log)
		return transport, nil
	}

	session, err := miniserver.NewManager(cfg.Miniserver, fetcher, factory)
	if err != nil {
		return nil, fmt.Errorf("creating session manager: %w", err)
	}
	session.SetLogger(log)

	if err := session.Setup(ctx); err != nil {
		return nil, fmt.Errorf("session setup: %w", err)
	}
	log.Info("miniserver session ready", "host", session.Host())

	persistSnapshot(ctx, session, snapshots, log)

	if err := session.Start(ctx); err != nil {
		return nil, fmt.Errorf("session start: %w", err)
	}
	log.Info("miniserver session running")

	return session, nil
}

// persistSnapshot stores the freshly fetched identity and structure.
// Failure is logged, not fatal; the bridge runs fine without it.
func persistSnapshot(ctx context.Context, session *miniserver.Manager, snapshots *snapshot.Store, log *logging.Logger) {
	snap := snapshot.Snapshot{
		MiniserverID: session.InstanceID(),
		Host:         session.Host(),
		Structure:    session.StructureJSON(),
		FetchedAt:    time.Now().UTC(),
	}
	if serial, ok := session.Serial(); ok {
		snap.Serial = serial
	}
	if name, ok := session.Name(); ok {
		snap.Name = name
	}
	if swVersion, ok := session.SoftwareVersion(); ok {
		snap.SWVersion = swVersion
	}
	if model, ok := session.Model(); ok {
		snap.Model = model
	}

	if err := snapshots.Save(ctx, snap); err != nil {
		log.Error("failed to persist miniserver snapshot", "error", err)
		return
	}
	log.Info("miniserver snapshot persisted", "serial", snap.Serial)
}

// healthCheck verifies infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the
// bridge's MQTTClient interface. The difference is the Subscribe
// handler signature:
//   - Infrastructure mqtt: func(topic string, payload []byte) error
//   - Bridge expects:      func(topic string, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
