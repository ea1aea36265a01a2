package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/loxone-bridge/internal/bridge"
	"github.com/nerrad567/loxone-bridge/internal/infrastructure/config"
	"github.com/nerrad567/loxone-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/loxone-bridge/internal/miniserver"
	"github.com/nerrad567/loxone-bridge/internal/snapshot"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Commander executes device commands through the bridge's command
// path. Satisfied by *bridge.Bridge.
type Commander interface {
	HandleServiceCommand(ctx context.Context, deviceID, value string) error
	HandleServiceSecuredCommand(ctx context.Context, deviceID, value, code string) error
	Stats() bridge.BridgeStats
}

// Session exposes the Miniserver session for status reads. Satisfied
// by *miniserver.Manager.
type Session interface {
	Status() miniserver.Status
	Serial() (string, bool)
	Name() (string, bool)
	SoftwareVersion() (string, bool)
	Model() (string, bool)
	Host() string
	InstanceID() string
}

// SnapshotStore reads persisted structure snapshots. Satisfied by
// *snapshot.Store.
type SnapshotStore interface {
	Latest(ctx context.Context, miniserverID string) (*snapshot.Snapshot, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Commander Commander
	Session   Session
	Snapshots SnapshotStore // Optional; snapshot endpoint returns 404 without it
	Version   string
}

// Server is the HTTP API server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	commander Commander
	session   Session
	snapshots SnapshotStore
	version   string
	server    *http.Server
}

// New creates an API server. The server is not started until Start()
// is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Commander == nil {
		return nil, fmt.Errorf("commander is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		commander: deps.Commander,
		session:   deps.Session,
		snapshots: deps.Snapshots,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background
// goroutine. The server is stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting for in-flight
// requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
