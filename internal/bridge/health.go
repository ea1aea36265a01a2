package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/loxone-bridge/internal/miniserver"
)

// HealthReporter publishes periodic health status to MQTT.
type HealthReporter struct {
	miniserverID string
	version      string
	startTime    time.Time
	interval     time.Duration
	publisher    HealthPublisher
	session      SessionStatus
	stats        StatsProvider

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// SessionStatus exposes the Miniserver session state for health
// evaluation.
type SessionStatus interface {
	Status() miniserver.Status
}

// StatsProvider supplies relay counters for health messages. Optional.
type StatsProvider interface {
	Stats() BridgeStats
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// MiniserverID identifies the miniserver in health messages.
	MiniserverID string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Session is the Miniserver session.
	Session SessionStatus

	// Stats is an optional relay counter provider.
	Stats StatsProvider
}

// NewHealthReporter creates a health reporter. Call Start to begin
// reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	return &HealthReporter{
		miniserverID: cfg.MiniserverID,
		version:      cfg.Version,
		startTime:    time.Now(),
		interval:     interval,
		publisher:    cfg.Publisher,
		session:      cfg.Session,
		stats:        cfg.Stats,
		done:         make(chan struct{}),
	}
}

// Start begins periodic health reporting.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status. Safe
// to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status during initialization.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	if h.session != nil {
		switch h.session.Status() {
		case miniserver.StatusRunning:
			return HealthHealthy, ""
		case miniserver.StatusReady:
			return HealthStarting, "session not started"
		case miniserver.StatusStopped:
			return HealthStopping, "session stopped"
		default:
			return HealthDegraded, "miniserver session " + string(h.session.Status())
		}
	}

	return HealthHealthy, ""
}

// publishStatus publishes a health status message. QoS 1, retained.
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	msg := HealthMessage{
		Miniserver:    h.miniserverID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.session != nil {
		msg.Session = string(h.session.Status())
	}
	if h.stats != nil {
		stats := h.stats.Stats()
		msg.EventsRelayed = stats.EventsRelayed
		msg.CommandsSent = stats.CommandsSent
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(HealthTopic(), payload, 1, true)
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
