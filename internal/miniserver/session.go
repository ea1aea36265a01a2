package miniserver

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/loxone-bridge/internal/infrastructure/config"
)

// Status represents the session lifecycle state.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusFailed        Status = "failed"
	StatusReady         Status = "ready"
	StatusRunning       Status = "running"
	StatusStopped       Status = "stopped"
)

// Logger defines the logging interface for the session manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager owns one Miniserver session end-to-end: structure fetch,
// transport construction and initialisation, start/stop of the active
// loop, callback registration, and identity projection.
//
// Exactly one session exists per configured Miniserver instance. A
// failed Setup leaves the manager retryable; Stop is terminal.
type Manager struct {
	cfg          config.MiniserverConfig
	fetcher      ConfigFetcher
	newTransport TransportFactory

	mu        sync.Mutex
	status    Status
	structure *Document
	transport Transport
	callback  func(payload []byte)

	logger   Logger
	loggerMu sync.RWMutex
}

// NewManager creates a session manager for the configured Miniserver.
// Call Setup to establish the session.
func NewManager(cfg config.MiniserverConfig, fetcher ConfigFetcher, factory TransportFactory) (*Manager, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("config fetcher is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("transport factory is required")
	}

	return &Manager{
		cfg:          cfg,
		fetcher:      fetcher,
		newTransport: factory,
		status:       StatusUninitialized,
		logger:       noopLogger{},
	}, nil
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	if logger != nil {
		m.logger = logger
	}
	m.loggerMu.Unlock()
}

func (m *Manager) log() Logger {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	return m.logger
}

// Status returns the current session state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Setup establishes the session: it fetches the structure document,
// validates the fetch status, constructs the transport, and initialises
// it. Safe to retry after failure: each call fully re-fetches and
// re-initialises, assuming no partial prior state.
//
// All failure modes are logged and returned as wrapped sentinel errors
// (ErrFetchFailed, ErrFetchStatus, ErrTransportInit); nothing panics
// across this boundary.
func (m *Manager) Setup(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusStopped {
		m.mu.Unlock()
		return ErrStopped
	}
	m.mu.Unlock()

	result, err := m.fetcher.Fetch(ctx)
	if err != nil {
		m.failSetup()
		m.log().Error("error connecting to loxone miniserver", "host", m.cfg.Host, "error", err)
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	if !IsSuccess(result.Code) {
		m.failSetup()
		m.log().Error("error connecting to loxone miniserver", "host", m.cfg.Host, "status", result.Code)
		return fmt.Errorf("%w: %v", ErrFetchStatus, result.Code)
	}

	transport, err := m.newTransport(TransportConfig{
		Username:  m.cfg.Username,
		Password:  m.cfg.Password,
		Host:      m.cfg.Host,
		Port:      m.cfg.Port,
		BaseURL:   fmt.Sprintf("http://%s:%d", m.cfg.Host, m.cfg.Port),
		Structure: result.Document,
	})
	if err != nil {
		m.failSetup()
		m.log().Error("error creating miniserver transport", "host", m.cfg.Host, "error", err)
		return fmt.Errorf("%w: %w", ErrTransportInit, err)
	}

	if err := transport.Init(ctx); err != nil {
		m.failSetup()
		m.log().Error("error connecting to loxone miniserver", "host", m.cfg.Host, "error", err)
		return fmt.Errorf("%w: %w", ErrTransportInit, err)
	}

	m.mu.Lock()
	if m.status == StatusStopped {
		// Stop raced the setup; do not resurrect the session.
		m.mu.Unlock()
		if _, stopErr := transport.Stop(ctx); stopErr != nil {
			m.log().Warn("stopping transport after late setup", "error", stopErr)
		}
		return ErrStopped
	}
	m.structure = result.Document
	m.transport = transport
	if m.callback != nil {
		transport.SetMessageCallback(m.callback)
	}
	m.status = StatusReady
	m.mu.Unlock()

	m.log().Info("miniserver session ready", "host", m.cfg.Host)
	return nil
}

// failSetup records a setup failure unless the session was stopped.
func (m *Manager) failSetup() {
	m.mu.Lock()
	if m.status != StatusStopped {
		m.status = StatusFailed
	}
	m.mu.Unlock()
}

// Start begins the transport's active read/command loop.
// Must only be called after a successful Setup.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status != StatusReady || m.transport == nil {
		status := m.status
		m.mu.Unlock()
		if status == StatusStopped {
			return ErrStopped
		}
		return ErrNotReady
	}
	transport := m.transport
	m.mu.Unlock()

	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}

	m.mu.Lock()
	if m.status == StatusReady {
		m.status = StatusRunning
	}
	m.mu.Unlock()

	m.log().Info("miniserver session running", "host", m.cfg.Host)
	return nil
}

// Stop shuts the session down, releasing transport resources.
//
// Stop is terminal and idempotent: it is safe before a successful Setup,
// safe to call repeatedly, and effective even while a Setup or Start is
// logically in flight (the transport's own stop operation unblocks any
// pending work it owns).
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	transport := m.transport
	m.transport = nil
	m.status = StatusStopped
	m.mu.Unlock()

	if transport == nil {
		return nil
	}

	diag, err := transport.Stop(ctx)
	if err != nil {
		m.log().Error("error stopping miniserver transport", "error", err)
		return fmt.Errorf("stopping transport: %w", err)
	}
	m.log().Debug("miniserver transport stopped", "diagnostic", diag)
	return nil
}

// SetMessageCallback installs the function the transport invokes for
// every inbound device message, replacing any previously registered
// callback. May be called before Setup; the callback is handed to the
// transport as soon as one exists.
func (m *Manager) SetMessageCallback(callback func(payload []byte)) {
	m.mu.Lock()
	m.callback = callback
	transport := m.transport
	m.mu.Unlock()

	if transport != nil {
		transport.SetMessageCallback(callback)
	}
}

// SendCommand sends a plain command to a device over the session's
// transport.
func (m *Manager) SendCommand(ctx context.Context, deviceID, value string) error {
	transport, err := m.activeTransport()
	if err != nil {
		return err
	}
	return transport.SendCommand(ctx, deviceID, value)
}

// SendSecuredCommand sends a command requiring a visual authorization
// code over the session's transport.
func (m *Manager) SendSecuredCommand(ctx context.Context, deviceID, value, code string) error {
	transport, err := m.activeTransport()
	if err != nil {
		return err
	}
	return transport.SendSecuredCommand(ctx, deviceID, value, code)
}

func (m *Manager) activeTransport() (Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusStopped {
		return nil, ErrStopped
	}
	if m.transport == nil {
		return nil, ErrNotReady
	}
	return m.transport, nil
}

// document returns the current structure document (may be nil).
// Identity accessors recompute their projection from it on every call.
func (m *Manager) document() *Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.structure
}

// Serial returns the Miniserver serial number, absent before a
// successful Setup or on malformed data.
func (m *Manager) Serial() (string, bool) {
	return m.document().Serial()
}

// Name returns the Miniserver display name.
func (m *Manager) Name() (string, bool) {
	return m.document().Name()
}

// SoftwareVersion returns the dot-joined firmware version.
func (m *Manager) SoftwareVersion() (string, bool) {
	return m.document().SoftwareVersion()
}

// Model returns the classified Miniserver model label.
func (m *Manager) Model() (string, bool) {
	return m.document().Model()
}

// StructureJSON returns the raw structure document JSON, or nil
// before a successful Setup.
func (m *Manager) StructureJSON() []byte {
	return m.document().JSON()
}

// Host returns the configured Miniserver host.
func (m *Manager) Host() string {
	return m.cfg.Host
}

// InstanceID returns the bridge-local identifier of this Miniserver
// instance.
func (m *Manager) InstanceID() string {
	return m.cfg.ID
}
