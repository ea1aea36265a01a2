package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/loxone-bridge/internal/miniserver"
)

// Bridge operation constants.
const (
	// commandTimeout bounds each command forwarded to the Miniserver.
	commandTimeout = 5 * time.Second

	// defaultEventBuffer is the relay channel capacity when the config
	// leaves it unset.
	defaultEventBuffer = 256
)

// Session is the Miniserver session the bridge drives. Satisfied by
// *miniserver.Manager.
type Session interface {
	// Status returns the current session lifecycle state.
	Status() miniserver.Status

	// RegistryEntries describes the miniserver for discovery.
	RegistryEntries() []miniserver.RegistryEntry

	// SendCommand forwards a plain device command.
	SendCommand(ctx context.Context, deviceID, value string) error

	// SendSecuredCommand forwards a visual-authorization command.
	SendSecuredCommand(ctx context.Context, deviceID, value, code string) error

	// SetMessageCallback installs the inbound message callback.
	SetMessageCallback(callback func(payload []byte))
}

// MQTTClient is the interface for MQTT operations. This allows mocking
// in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Logger defines the logging interface for the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// MiniserverID identifies this miniserver instance in health
	// messages.
	MiniserverID string

	// Version is the bridge software version, reported in health
	// messages.
	Version string

	// MQTTClient is the event bus connection.
	MQTTClient MQTTClient

	// Session is the Miniserver session.
	Session Session

	// HealthInterval is how often health status is published.
	// Default: 30 seconds.
	HealthInterval time.Duration

	// EventBuffer is the relay channel capacity.
	EventBuffer int

	// Logger is an optional structured logger.
	Logger Logger
}

// Bridge relays Miniserver events to MQTT and MQTT commands to the
// Miniserver.
type Bridge struct {
	miniserverID string
	mqtt         MQTTClient
	session      Session
	health       *HealthReporter

	events chan []byte

	eventsRelayed atomic.Uint64
	eventsDropped atomic.Uint64
	commandsSent  atomic.Uint64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	startTime time.Time
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("session is required")
	}

	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}

	// Bridge-level context so in-flight commands abort on Stop.
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		miniserverID: opts.MiniserverID,
		mqtt:         opts.MQTTClient,
		session:      opts.Session,
		events:       make(chan []byte, buffer),
		done:         make(chan struct{}),
		startTime:    time.Now(),
		ctx:          ctx,
		ctxCancel:    ctxCancel,
		logger:       opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		MiniserverID: opts.MiniserverID,
		Version:      opts.Version,
		Interval:     opts.HealthInterval,
		Publisher:    opts.MQTTClient,
		Session:      opts.Session,
		Stats:        b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start wires the session callback, subscribes to the command topics,
// publishes discovery entries, and begins the event relay and health
// reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	b.session.SetMessageCallback(b.handleMiniserverMessage)

	if err := b.mqtt.Subscribe(CommandTopic(), 1, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", CommandTopic())

	if err := b.mqtt.Subscribe(SecuredCommandTopic(), 1, b.handleSecuredCommandMessage); err != nil {
		return fmt.Errorf("subscribe to secured commands: %w", err)
	}
	b.logInfo("subscribed to secured commands", "topic", SecuredCommandTopic())

	b.publishDiscovery()

	b.wg.Add(1)
	go b.relayLoop()

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started", "miniserver_id", b.miniserverID)
	return nil
}

// Stop gracefully shuts down the bridge. Safe to call repeatedly.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()
		b.logInfo("bridge stopped", "uptime", formatUptime(b.startTime))
	})
}

// HandleServiceCommand executes a plain command on behalf of a
// service caller (the HTTP API). It runs the same path as commands
// arriving over MQTT.
func (b *Bridge) HandleServiceCommand(ctx context.Context, deviceID, value string) error {
	cmd := NewCommandMessage(deviceID, value, "", "api")
	if err := cmd.Validate(false); err != nil {
		return err
	}
	return b.executeCommand(ctx, cmd, false)
}

// HandleServiceSecuredCommand executes a visual-authorization command
// on behalf of a service caller.
func (b *Bridge) HandleServiceSecuredCommand(ctx context.Context, deviceID, value, code string) error {
	cmd := NewCommandMessage(deviceID, value, code, "api")
	if err := cmd.Validate(true); err != nil {
		return err
	}
	return b.executeCommand(ctx, cmd, true)
}

// handleCommandMessage processes a plain command from the bus.
func (b *Bridge) handleCommandMessage(_ string, payload []byte) {
	b.handleCommand(payload, false)
}

// handleSecuredCommandMessage processes a secured command from the bus.
func (b *Bridge) handleSecuredCommandMessage(_ string, payload []byte) {
	b.handleCommand(payload, true)
}

// handleCommand parses and executes one command envelope. Malformed
// payloads are logged and dropped.
func (b *Bridge) handleCommand(payload []byte, secured bool) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	if err := cmd.Validate(secured); err != nil {
		b.logError("rejected command", err)
		return
	}
	if cmd.Source == "" {
		cmd.Source = "mqtt"
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"secured", secured,
		"source", cmd.Source)

	if err := b.executeCommand(b.ctx, cmd, secured); err != nil {
		b.logError("command execution failed", err)
	}
}

// executeCommand forwards a validated command to the session. The
// MQTT path and the service-call path both end here.
func (b *Bridge) executeCommand(ctx context.Context, cmd CommandMessage, secured bool) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var err error
	if secured {
		err = b.session.SendSecuredCommand(ctx, cmd.DeviceID, cmd.Value, cmd.Code)
	} else {
		err = b.session.SendCommand(ctx, cmd.DeviceID, cmd.Value)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	b.commandsSent.Add(1)
	return nil
}

// handleMiniserverMessage enqueues an inbound Miniserver payload for
// relay. Called from the transport's read loop, so it never blocks;
// if the buffer is full the payload is dropped and counted.
func (b *Bridge) handleMiniserverMessage(payload []byte) {
	// Copy: the transport may reuse its read buffer.
	msg := make([]byte, len(payload))
	copy(msg, payload)

	select {
	case b.events <- msg:
	default:
		dropped := b.eventsDropped.Add(1)
		b.logWarn("event buffer full, dropping message", "dropped_total", dropped)
	}
}

// relayLoop publishes enqueued Miniserver messages to the event topic
// in arrival order.
func (b *Bridge) relayLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case msg := <-b.events:
					b.relay(msg)
				default:
					return
				}
			}
		case msg := <-b.events:
			b.relay(msg)
		}
	}
}

func (b *Bridge) relay(payload []byte) {
	if err := b.mqtt.Publish(EventTopic(), payload, 0, false); err != nil {
		b.logError("failed to publish event", err)
		return
	}
	b.eventsRelayed.Add(1)
}

// publishDiscovery publishes the session's registry entries retained,
// one topic per entry kind.
func (b *Bridge) publishDiscovery() {
	for _, entry := range b.session.RegistryEntries() {
		payload, err := json.Marshal(entry)
		if err != nil {
			b.logError("failed to marshal registry entry", err)
			continue
		}
		topic := DiscoveryTopic(entry.Kind)
		if err := b.mqtt.Publish(topic, payload, 1, true); err != nil {
			b.logError("failed to publish registry entry", err)
			continue
		}
		b.logDebug("published registry entry", "kind", entry.Kind)
	}
}

// Stats returns relay counters for health reporting and the metrics
// endpoint.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{
		EventsRelayed: b.eventsRelayed.Load(),
		EventsDropped: b.eventsDropped.Load(),
		CommandsSent:  b.commandsSent.Load(),
	}
}

// BridgeStats contains relay counters.
type BridgeStats struct {
	EventsRelayed uint64 `json:"events_relayed"`
	EventsDropped uint64 `json:"events_dropped"`
	CommandsSent  uint64 `json:"commands_sent"`
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
