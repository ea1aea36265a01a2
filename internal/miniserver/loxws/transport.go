package loxws

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Protocol constants for the Miniserver websocket endpoint.
const (
	// wsPath is the websocket endpoint path on the Miniserver.
	wsPath = "/ws/rfc6455"

	// subprotocol is the websocket subprotocol the Miniserver expects.
	subprotocol = "remotecontrol"

	// cmdGetKey requests the HMAC key for authentication.
	cmdGetKey = "jdev/sys/getkey"

	// cmdEnableUpdates subscribes this session to status updates.
	cmdEnableUpdates = "jdev/sps/enablebinstatusupdate"

	// cmdKeepalive holds the session open.
	cmdKeepalive = "keepalive"

	// keepaliveInterval is how often a keepalive is sent. The
	// Miniserver drops idle sessions after five minutes.
	keepaliveInterval = 4 * time.Minute

	// handshakeTimeout bounds the websocket upgrade.
	handshakeTimeout = 10 * time.Second

	// writeTimeout bounds each individual websocket write.
	writeTimeout = 10 * time.Second

	// handshakeReadTimeout bounds each read during Init.
	handshakeReadTimeout = 10 * time.Second

	// headerFrameSize is the length of the binary message header the
	// Miniserver sends before each payload.
	headerFrameSize = 8

	// headerFrameMagic is the first byte of a binary message header.
	headerFrameMagic = 0x03
)

// Logger defines the logging interface for the transport.
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

// Config holds connection parameters for one Miniserver session.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Transport is a websocket connection to a Loxone Miniserver. It is
// created disconnected; Init dials and authenticates, Start begins the
// read loop, Stop tears the connection down.
type Transport struct {
	cfg    Config
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn

	writeMu sync.Mutex

	callbackMu sync.RWMutex
	callback   func(payload []byte)

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a disconnected transport for the given Miniserver.
func New(cfg Config) (*Transport, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrDialFailed)
	}
	if cfg.Port == 0 {
		cfg.Port = 80
	}
	return &Transport{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			Subprotocols:     []string{subprotocol},
		},
		done:   make(chan struct{}),
		logger: noopLogger{},
	}, nil
}

// SetLogger sets the logger for the transport.
func (t *Transport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	defer t.loggerMu.Unlock()
	t.logger = logger
}

func (t *Transport) log() Logger {
	t.loggerMu.RLock()
	defer t.loggerMu.RUnlock()
	return t.logger
}

// llResponse is the envelope the Miniserver wraps command replies in.
// Code arrives as a string on some firmware versions and a number on
// others.
type llResponse struct {
	LL struct {
		Control string `json:"control"`
		Value   string `json:"value"`
		Code    any    `json:"Code"`
	} `json:"LL"`
}

// Init dials the Miniserver and performs the getkey/authenticate
// handshake. On failure the connection is closed and the transport can
// be discarded.
func (t *Transport) Init(ctx context.Context) error {
	endpoint := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port)),
		Path:   wsPath,
	}

	conn, _, err := t.dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	if err := t.authenticate(conn); err != nil {
		_ = conn.Close()
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	t.log().Debug("websocket session established", "host", t.cfg.Host)
	return nil
}

// authenticate runs the getkey/authenticate exchange on a fresh
// connection.
func (t *Transport) authenticate(conn *websocket.Conn) error {
	if err := writeText(conn, cmdGetKey); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyExchange, err)
	}
	keyResp, err := readResponse(conn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyExchange, err)
	}
	if !isSuccessCode(keyResp.LL.Code) {
		return fmt.Errorf("%w: getkey returned code %v", ErrKeyExchange, keyResp.LL.Code)
	}

	key, err := hex.DecodeString(keyResp.LL.Value)
	if err != nil {
		return fmt.Errorf("%w: invalid key encoding: %v", ErrKeyExchange, err)
	}

	mac := hmac.New(sha1.New, key)
	mac.Write([]byte(t.cfg.Username + ":" + t.cfg.Password))
	digest := hex.EncodeToString(mac.Sum(nil))

	if err := writeText(conn, "authenticate/"+digest); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	authResp, err := readResponse(conn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if !isSuccessCode(authResp.LL.Code) {
		return fmt.Errorf("%w: code %v", ErrAuthFailed, authResp.LL.Code)
	}
	return nil
}

// Start enables status updates and launches the read and keepalive
// loops. Init must have succeeded first.
func (t *Transport) Start(_ context.Context) error {
	conn := t.activeConn()
	if conn == nil {
		return ErrNotConnected
	}

	if err := t.send(cmdEnableUpdates); err != nil {
		return fmt.Errorf("enabling status updates: %w", err)
	}

	t.wg.Add(2)
	go t.readLoop(conn)
	go t.keepaliveLoop()

	t.log().Info("miniserver event stream started", "host", t.cfg.Host)
	return nil
}

// Stop closes the connection and waits for the loops to exit. It is
// safe to call repeatedly and before Init.
func (t *Transport) Stop(_ context.Context) (string, error) {
	diag := "already stopped"
	t.stopOnce.Do(func() {
		close(t.done)

		t.mu.Lock()
		conn := t.conn
		t.conn = nil
		t.mu.Unlock()

		if conn == nil {
			diag = "never connected"
			return
		}

		// Best-effort close frame; the reader unblocks when the
		// underlying connection closes either way.
		t.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()

		_ = conn.Close()
		diag = "connection closed"
	})

	t.wg.Wait()
	return diag, nil
}

// SendCommand sends a plain device command.
func (t *Transport) SendCommand(_ context.Context, deviceID, value string) error {
	return t.send(fmt.Sprintf("jdev/sps/io/%s/%s", deviceID, value))
}

// SendSecuredCommand sends a command carrying a visual authorization
// code.
func (t *Transport) SendSecuredCommand(_ context.Context, deviceID, value, code string) error {
	return t.send(fmt.Sprintf("jdev/sps/ios/%s/%s/%s", code, deviceID, value))
}

// SetMessageCallback installs the inbound message callback, replacing
// any previous one.
func (t *Transport) SetMessageCallback(callback func(payload []byte)) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.callback = callback
}

func (t *Transport) activeConn() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *Transport) send(message string) error {
	conn := t.activeConn()
	if conn == nil {
		return ErrNotConnected
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		return fmt.Errorf("loxws: write failed: %w", err)
	}
	return nil
}

// readLoop delivers inbound payloads to the callback in arrival order.
// It exits when the connection closes.
func (t *Transport) readLoop(conn *websocket.Conn) {
	defer t.wg.Done()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
				// Expected during shutdown.
			default:
				t.log().Error("miniserver read loop terminated", "error", err)
			}
			return
		}

		if isHeaderFrame(messageType, payload) {
			continue
		}

		t.callbackMu.RLock()
		callback := t.callback
		t.callbackMu.RUnlock()
		if callback != nil {
			callback(payload)
		}
	}
}

// keepaliveLoop holds the session open until Stop.
func (t *Transport) keepaliveLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.send(cmdKeepalive); err != nil {
				t.log().Warn("keepalive failed", "error", err)
			}
		}
	}
}

// isHeaderFrame reports whether a payload is the fixed-size binary
// header the Miniserver sends before each message body.
func isHeaderFrame(messageType int, payload []byte) bool {
	return messageType == websocket.BinaryMessage &&
		len(payload) == headerFrameSize &&
		payload[0] == headerFrameMagic
}

// writeText writes a text frame during the handshake, before the
// transport's write path is live.
func writeText(conn *websocket.Conn, message string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, []byte(message))
}

// readResponse reads the next text frame during the handshake,
// skipping binary header frames, and decodes it as an LL envelope.
func readResponse(conn *websocket.Conn) (*llResponse, error) {
	deadline := time.Now().Add(handshakeReadTimeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if isHeaderFrame(messageType, payload) {
			continue
		}
		var resp llResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		_ = conn.SetReadDeadline(time.Time{})
		return &resp, nil
	}
}

// isSuccessCode reports whether an LL response code means success. The
// Miniserver reports codes as strings on some firmware versions and
// numbers on others.
func isSuccessCode(code any) bool {
	switch v := code.(type) {
	case string:
		return v == "200"
	case float64:
		return v == 200
	case int:
		return v == 200
	default:
		return false
	}
}
