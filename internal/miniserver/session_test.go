package miniserver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/loxone-bridge/internal/infrastructure/config"
)

// mockFetcher implements ConfigFetcher for testing.
type mockFetcher struct {
	mu      sync.Mutex
	result  *FetchResult
	err     error
	fetches int
}

func (f *mockFetcher) Fetch(_ context.Context) (*FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *mockFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// mockTransport implements Transport for testing.
type mockTransport struct {
	mu       sync.Mutex
	initErr  error
	startErr error

	inits    int
	starts   int
	stops    int
	plain    [][2]string
	secured  [][3]string
	callback func([]byte)
}

func (m *mockTransport) Init(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inits++
	return m.initErr
}

func (m *mockTransport) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	return m.startErr
}

func (m *mockTransport) Stop(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return "closed", nil
}

func (m *mockTransport) SendCommand(_ context.Context, deviceID, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plain = append(m.plain, [2]string{deviceID, value})
	return nil
}

func (m *mockTransport) SendSecuredCommand(_ context.Context, deviceID, value, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secured = append(m.secured, [3]string{deviceID, value, code})
	return nil
}

func (m *mockTransport) SetMessageCallback(cb func([]byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}

func (m *mockTransport) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

func testMiniserverConfig() config.MiniserverConfig {
	return config.MiniserverConfig{
		ID:       "miniserver-test",
		Host:     "192.168.1.50",
		Port:     80,
		Username: "admin",
		Password: "secret",
	}
}

// newTestManager wires a manager with a successful fetch and the given
// transport.
func newTestManager(t *testing.T, fetcher *mockFetcher, transport *mockTransport) *Manager {
	t.Helper()
	factory := func(cfg TransportConfig) (Transport, error) {
		if cfg.Username != "admin" || cfg.Host != "192.168.1.50" {
			t.Errorf("factory got credentials %q@%q, want admin@192.168.1.50", cfg.Username, cfg.Host)
		}
		if cfg.Structure == nil {
			t.Error("factory got nil structure document")
		}
		return transport, nil
	}
	m, err := NewManager(testMiniserverConfig(), fetcher, factory)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func successFetcher() *mockFetcher {
	return &mockFetcher{
		result: &FetchResult{
			Code:     200,
			Document: NewDocument(sampleStructure()),
		},
	}
}

func TestSetup_Success(t *testing.T) {
	m := newTestManager(t, successFetcher(), &mockTransport{})

	if err := m.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if m.Status() != StatusReady {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusReady)
	}

	if serial, ok := m.Serial(); !ok || serial != "504F94A00000" {
		t.Errorf("Serial() = %q, %v; want %q, true", serial, ok, "504F94A00000")
	}
	if version, ok := m.SoftwareVersion(); !ok || version != "10.3.2" {
		t.Errorf("SoftwareVersion() = %q, want %q", version, "10.3.2")
	}
}

func TestSetup_StringStatusCode(t *testing.T) {
	// The miniserver's fetch layer sometimes reports "200" as a string.
	fetcher := &mockFetcher{
		result: &FetchResult{Code: "200", Document: NewDocument(sampleStructure())},
	}
	m := newTestManager(t, fetcher, &mockTransport{})

	if err := m.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() with string status error = %v", err)
	}
}

func TestSetup_NonSuccessStatus(t *testing.T) {
	fetcher := &mockFetcher{result: &FetchResult{Code: 401}}
	m := newTestManager(t, fetcher, &mockTransport{})

	err := m.Setup(context.Background())
	if !errors.Is(err, ErrFetchStatus) {
		t.Errorf("Setup() error = %v, want ErrFetchStatus", err)
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}
}

func TestSetup_FetchError(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("connection refused")}
	m := newTestManager(t, fetcher, &mockTransport{})

	err := m.Setup(context.Background())
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Setup() error = %v, want ErrFetchFailed", err)
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}
}

func TestSetup_TransportInitFailure(t *testing.T) {
	transport := &mockTransport{initErr: errors.New("authentication failed")}
	m := newTestManager(t, successFetcher(), transport)

	err := m.Setup(context.Background())
	if !errors.Is(err, ErrTransportInit) {
		t.Errorf("Setup() error = %v, want ErrTransportInit", err)
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}
}

func TestSetup_RetryAfterFailure(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("connection refused")}
	transport := &mockTransport{}
	m := newTestManager(t, fetcher, transport)

	if err := m.Setup(context.Background()); err == nil {
		t.Fatal("first Setup() expected failure")
	}

	// A retry fully re-fetches and re-initialises.
	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.result = &FetchResult{Code: 200, Document: NewDocument(sampleStructure())}
	fetcher.mu.Unlock()

	if err := m.Setup(context.Background()); err != nil {
		t.Fatalf("retried Setup() error = %v", err)
	}
	if m.Status() != StatusReady {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusReady)
	}
	if fetcher.fetchCount() != 2 {
		t.Errorf("fetch count = %d, want 2", fetcher.fetchCount())
	}
}

func TestStart_RequiresSetup(t *testing.T) {
	m := newTestManager(t, successFetcher(), &mockTransport{})

	if err := m.Start(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Start() before Setup error = %v, want ErrNotReady", err)
	}
}

func TestLifecycle_SetupStartStop(t *testing.T) {
	transport := &mockTransport{}
	m := newTestManager(t, successFetcher(), transport)
	ctx := context.Background()

	if err := m.Setup(ctx); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if m.Status() != StatusRunning {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusRunning)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusStopped)
	}
	if transport.stopCount() != 1 {
		t.Errorf("transport stops = %d, want 1", transport.stopCount())
	}
}

func TestStop_BeforeSetup(t *testing.T) {
	m := newTestManager(t, successFetcher(), &mockTransport{})

	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("Stop() before Setup error = %v, want nil", err)
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusStopped)
	}
}

func TestStop_Idempotent(t *testing.T) {
	transport := &mockTransport{}
	m := newTestManager(t, successFetcher(), transport)
	ctx := context.Background()

	if err := m.Setup(ctx); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Errorf("second Stop() error = %v, want nil", err)
	}
	if transport.stopCount() != 1 {
		t.Errorf("transport stops = %d, want 1 (stop must not repeat)", transport.stopCount())
	}
}

func TestStop_IsTerminal(t *testing.T) {
	m := newTestManager(t, successFetcher(), &mockTransport{})
	ctx := context.Background()

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := m.Setup(ctx); !errors.Is(err, ErrStopped) {
		t.Errorf("Setup() after Stop error = %v, want ErrStopped", err)
	}
	if err := m.Start(ctx); !errors.Is(err, ErrStopped) {
		t.Errorf("Start() after Stop error = %v, want ErrStopped", err)
	}
}

func TestSetMessageCallback_BeforeAndAfterSetup(t *testing.T) {
	transport := &mockTransport{}
	m := newTestManager(t, successFetcher(), transport)
	ctx := context.Background()

	// Registered before setup: handed to the transport once it exists.
	var got [][]byte
	m.SetMessageCallback(func(payload []byte) { got = append(got, payload) })

	if err := m.Setup(ctx); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	transport.mu.Lock()
	installed := transport.callback
	transport.mu.Unlock()
	if installed == nil {
		t.Fatal("callback was not installed on the transport during Setup")
	}

	installed([]byte("msg-1"))
	if len(got) != 1 || string(got[0]) != "msg-1" {
		t.Errorf("callback received %v, want [msg-1]", got)
	}

	// Re-registration replaces the previous callback.
	var replaced int
	m.SetMessageCallback(func([]byte) { replaced++ })

	transport.mu.Lock()
	installed = transport.callback
	transport.mu.Unlock()
	installed([]byte("msg-2"))

	if replaced != 1 {
		t.Errorf("replacement callback invocations = %d, want 1", replaced)
	}
	if len(got) != 1 {
		t.Error("old callback must not receive messages after replacement")
	}
}

func TestSendCommands(t *testing.T) {
	transport := &mockTransport{}
	m := newTestManager(t, successFetcher(), transport)
	ctx := context.Background()

	if err := m.SendCommand(ctx, "dev", "on"); !errors.Is(err, ErrNotReady) {
		t.Errorf("SendCommand() before Setup error = %v, want ErrNotReady", err)
	}

	if err := m.Setup(ctx); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if err := m.SendCommand(ctx, "abc", "on"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if err := m.SendSecuredCommand(ctx, "abc", "on", "1234"); err != nil {
		t.Fatalf("SendSecuredCommand() error = %v", err)
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.plain) != 1 || transport.plain[0] != [2]string{"abc", "on"} {
		t.Errorf("plain sends = %v, want [[abc on]]", transport.plain)
	}
	if len(transport.secured) != 1 || transport.secured[0] != [3]string{"abc", "on", "1234"} {
		t.Errorf("secured sends = %v, want [[abc on 1234]]", transport.secured)
	}
}

func TestIdentity_BeforeSetup(t *testing.T) {
	m := newTestManager(t, successFetcher(), &mockTransport{})

	if _, ok := m.Serial(); ok {
		t.Error("Serial() before Setup should be absent")
	}
	if m.Host() != "192.168.1.50" {
		t.Errorf("Host() = %q, want %q", m.Host(), "192.168.1.50")
	}
	if m.InstanceID() != "miniserver-test" {
		t.Errorf("InstanceID() = %q, want %q", m.InstanceID(), "miniserver-test")
	}
}

func TestRegistryEntries(t *testing.T) {
	m := newTestManager(t, successFetcher(), &mockTransport{})
	if err := m.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	entries := m.RegistryEntries()
	if len(entries) != 2 {
		t.Fatalf("RegistryEntries() returned %d entries, want 2", len(entries))
	}

	host := entries[0]
	if host.Kind != RegistryKindHost {
		t.Errorf("entries[0].Kind = %q, want %q", host.Kind, RegistryKindHost)
	}
	if len(host.Connections) != 1 || host.Connections[0] != [2]string{ConnectionNetworkMAC, "192.168.1.50"} {
		t.Errorf("host connections = %v, want [[mac 192.168.1.50]]", host.Connections)
	}

	device := entries[1]
	if device.Kind != RegistryKindMiniserver {
		t.Errorf("entries[1].Kind = %q, want %q", device.Kind, RegistryKindMiniserver)
	}
	if device.Manufacturer != Manufacturer {
		t.Errorf("device manufacturer = %q, want %q", device.Manufacturer, Manufacturer)
	}
	if len(device.Identifiers) != 1 || device.Identifiers[0] != [2]string{"loxone", "504F94A00000"} {
		t.Errorf("device identifiers = %v", device.Identifiers)
	}
	if device.SWVersion != "10.3.2" {
		t.Errorf("device sw_version = %q, want %q", device.SWVersion, "10.3.2")
	}
	if device.Model != "Miniserver" {
		t.Errorf("device model = %q, want %q", device.Model, "Miniserver")
	}
}

func TestRegistryEntries_AbsentIdentity(t *testing.T) {
	fetcher := &mockFetcher{
		result: &FetchResult{Code: 200, Document: NewDocument(map[string]any{})},
	}
	m, err := NewManager(testMiniserverConfig(), fetcher, func(TransportConfig) (Transport, error) {
		return &mockTransport{}, nil
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if err := m.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	entries := m.RegistryEntries()
	device := entries[1]
	if device.Identifiers != nil {
		t.Errorf("device identifiers = %v, want no identifiers for absent serial", device.Identifiers)
	}
	if device.Name != "" || device.SWVersion != "" || device.Model != "" {
		t.Errorf("absent identity fields should be empty, got %+v", device)
	}
}
