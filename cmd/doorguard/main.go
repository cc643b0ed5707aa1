// Doorguard - multi-factor door access controller
//
// This is the main entry point for the Doorguard core. It wires the
// sensor and actuator bridges on MQTT, the policy store, the voice gate,
// the door actuator and the access orchestrator, then serves the kiosk and
// operator API until a shutdown signal, the exit hotkey or an operator
// shutdown request.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "github.com/nerrad567/doorguard/migrations"

	"github.com/nerrad567/doorguard/internal/access"
	"github.com/nerrad567/doorguard/internal/api"
	"github.com/nerrad567/doorguard/internal/audit"
	"github.com/nerrad567/doorguard/internal/bridges/mqttio"
	"github.com/nerrad567/doorguard/internal/door"
	"github.com/nerrad567/doorguard/internal/events"
	"github.com/nerrad567/doorguard/internal/infrastructure/config"
	"github.com/nerrad567/doorguard/internal/infrastructure/database"
	"github.com/nerrad567/doorguard/internal/infrastructure/influxdb"
	"github.com/nerrad567/doorguard/internal/infrastructure/logging"
	"github.com/nerrad567/doorguard/internal/infrastructure/mqtt"
	"github.com/nerrad567/doorguard/internal/notify"
	"github.com/nerrad567/doorguard/internal/policy"
	"github.com/nerrad567/doorguard/internal/telemetry"
	"github.com/nerrad567/doorguard/internal/voice"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"

	// eventQueueCapacity bounds the dispatcher buffer.
	eventQueueCapacity = 256

	// shutdownTimeout bounds the final relock and the goodbye announcement.
	shutdownTimeout = 10 * time.Second
)

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
func run(ctx context.Context) error { //nolint:gocognit,gocyclo,funlen // startup wiring reads top to bottom
	ctx, requestShutdown := context.WithCancel(ctx)
	defer requestShutdown()

	log := logging.Default()
	log.Info("starting Doorguard", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	db, err := database.Open(ctx, database.Config{
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
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}

	store, err := policy.Open(ctx, policy.NewSQLiteRepository(db.DB), cfg.Policy, log.Component("policy"))
	if err != nil {
		return fmt.Errorf("opening policy store: %w", err)
	}
	log.Info("policy loaded", "mode", store.Mode(), "cards", len(store.Cards()), "fingerprints", len(store.Fingerprints()))

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
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port))

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) { log.Error("InfluxDB write error", "error", err) })
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Background workers outlive ctx so shutdown events and the goodbye
	// announcement still reach their sinks.
	bgCtx, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBackground()
	var wg sync.WaitGroup

	dispatcher := events.NewDispatcher(eventQueueCapacity, log.Component("events"))

	devices := mqttio.NewDevices(mqttClient)
	if subErr := devices.Subscribe(mqttClient); subErr != nil {
		return fmt.Errorf("subscribing device topics: %w", subErr)
	}

	gate := voice.New(cfg.Voice, devices.Speaker,
		voice.WithLogger(log.Component("voice")),
		voice.WithObserver(voiceEvents(dispatcher)),
	)
	lock := door.New(cfg.Door, devices.Relay,
		door.WithBuzzer(devices.Buzzer),
		door.WithLogger(log.Component("door")),
		door.WithListener(doorEvents(dispatcher)),
	)

	orch, err := access.New(access.Options{
		Access:  cfg.Access,
		Door:    cfg.Door,
		Store:   store,
		Lock:    lock,
		Sensors: devices.Sensors(),
		Voice:   gate,
		Panel:   devices.Panel,
		Events:  dispatcher,
		Logger:  log.Component("access"),
	})
	if err != nil {
		return fmt.Errorf("creating access orchestrator: %w", err)
	}

	health := map[string]api.HealthChecker{
		"database": db.HealthCheck,
		"mqtt":     mqttClient.HealthCheck,
	}
	if influxClient != nil {
		health["influxdb"] = influxClient.HealthCheck
	}
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Site:     cfg.Site.ID,
		Logger:   log,
		Access:   orch,
		Policy:   store,
		Audit:    audit.NewSQLiteRepository(db.DB),
		Voice:    gate,
		Events:   dispatcher,
		Dropped:  dispatcher.Dropped,
		Health:   health,
		Shutdown: requestShutdown,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	dispatcher.Register("audit", audit.NewSink(audit.NewSQLiteRepository(db.DB)))
	dispatcher.Register("notify", notify.New(mqttClient, cfg.Site.ID, log.Component("notify")))
	if influxClient != nil {
		dispatcher.Register("telemetry", telemetry.NewSink(influxClient))
	}
	dispatcher.Register("mqtt_status", mqttio.NewStatusPublisher(mqttClient, orch.Status, log.Component("status")))
	dispatcher.Register("websocket", apiServer.EventSink())

	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Run(bgCtx)
	}()
	go func() {
		defer wg.Done()
		gate.Run(bgCtx)
	}()

	// The door must be locked before the first session can unlock it.
	if secureErr := lock.Secure(ctx); secureErr != nil {
		log.Error("could not confirm lock at startup", "error", secureErr)
	}

	if startErr := orch.Start(ctx); startErr != nil {
		return fmt.Errorf("starting access orchestrator: %w", startErr)
	}

	input := mqttio.NewInput(orch, mqttio.ExitConfirm{
		Prompt: func() {
			gate.ForceSpeak(voice.KeyShutdownConfirm, "")
			dispatcher.Post(events.Event{Kind: events.KindSystem, Level: events.LevelWarning,
				Outcome: "exit_armed", Message: "exit hotkey pressed, awaiting confirmation"})
		},
		Confirm: func() {
			log.Warn("exit hotkey confirmed")
			requestShutdown()
		},
		Window: cfg.Access.ExitConfirmWindow,
	}, log.Component("input"))
	if subErr := input.Subscribe(mqttClient); subErr != nil {
		orch.Stop()
		return fmt.Errorf("subscribing kiosk input: %w", subErr)
	}

	if startErr := apiServer.Start(ctx); startErr != nil {
		orch.Stop()
		return fmt.Errorf("starting API server: %w", startErr)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		log.Warn("initial health check failed", "error", err)
	}

	log.Info("initialisation complete, door is armed")
	<-ctx.Done()
	log.Info("shutdown requested, cleaning up")

	orch.Stop()
	if closeErr := apiServer.Close(); closeErr != nil {
		log.Error("error closing API server", "error", closeErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if secureErr := lock.Secure(shutdownCtx); secureErr != nil {
		log.Error("could not relock door during shutdown", "error", secureErr)
	}
	dispatcher.Post(events.Event{Kind: events.KindSystem, Level: events.LevelWarning, Outcome: "stopped", Message: "controller stopping"})
	if drainErr := announceShutdown(shutdownCtx, gate); drainErr != nil {
		log.Warn("voice queue not drained", "error", drainErr)
	}

	stopBackground()
	wg.Wait()

	log.Info("Doorguard stopped")
	return nil
}

// announceShutdown plays the shutdown message past every suppression rule
// and waits for the speaker to go quiet.
func announceShutdown(ctx context.Context, gate *voice.Gate) error {
	gate.ForceSpeak(voice.KeyShutdown, "")
	return gate.Drain(ctx)
}

// voiceEvents reports voice gate decisions on the event bus.
func voiceEvents(p events.Poster) voice.Observer {
	return func(key string, outcome voice.Outcome) {
		p.Post(events.Event{Kind: events.KindVoice, Message: key, Outcome: string(outcome)})
	}
}

// doorLevels assigns alert levels to lock transitions. Unlisted kinds are
// not alerts.
var doorLevels = map[door.EventKind]events.Level{
	door.EventUnlocked:      events.LevelSuccess,
	door.EventRelocked:      events.LevelInfo,
	door.EventRelockRetried: events.LevelWarning,
	door.EventRelockFailed:  events.LevelCritical,
}

// doorEvents forwards lock transitions to the event bus. Unlock failures
// are reported by the orchestrator, which knows the session they ended.
func doorEvents(p events.Poster) func(door.Event) {
	return func(de door.Event) {
		if de.Kind == door.EventUnlockFailed {
			return
		}
		e := events.Event{
			Kind:    events.KindDoor,
			Level:   doorLevels[de.Kind],
			Outcome: strings.TrimPrefix(string(de.Kind), "door_"),
			At:      de.At,
		}
		switch {
		case de.Err != nil:
			e.Message = de.Err.Error()
		case de.Kind == door.EventCountdown:
			e.Message = strconv.Itoa(de.Remaining)
		}
		p.Post(e)
	}
}

// getConfigPath returns the configuration file path.
// Uses DOORGUARD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DOORGUARD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
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
