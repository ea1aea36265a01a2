package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/loxone-bridge/internal/bridge"
	"github.com/nerrad567/loxone-bridge/internal/snapshot"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/snapshot", s.handleSnapshot)
		r.Post("/command", s.handleCommand)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// StatusResponse describes the current session and relay state.
type StatusResponse struct {
	MiniserverID string             `json:"miniserver_id"`
	Host         string             `json:"host"`
	Session      string             `json:"session"`
	Serial       string             `json:"serial,omitempty"`
	Name         string             `json:"name,omitempty"`
	SWVersion    string             `json:"sw_version,omitempty"`
	Model        string             `json:"model,omitempty"`
	Version      string             `json:"version"`
	Stats        bridge.BridgeStats `json:"stats"`
}

// handleStatus returns session status and miniserver identity.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		MiniserverID: s.session.InstanceID(),
		Host:         s.session.Host(),
		Session:      string(s.session.Status()),
		Version:      s.version,
		Stats:        s.commander.Stats(),
	}
	if serial, ok := s.session.Serial(); ok {
		resp.Serial = serial
	}
	if name, ok := s.session.Name(); ok {
		resp.Name = name
	}
	if version, ok := s.session.SoftwareVersion(); ok {
		resp.SWVersion = version
	}
	if model, ok := s.session.Model(); ok {
		resp.Model = model
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSnapshot returns the persisted structure snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeNotFound(w, "snapshot store not configured")
		return
	}

	snap, err := s.snapshots.Latest(r.Context(), s.session.InstanceID())
	if errors.Is(err, snapshot.ErrNotFound) {
		writeNotFound(w, "no snapshot stored yet")
		return
	}
	if err != nil {
		s.logger.Error("failed to load snapshot", "error", err)
		writeInternalError(w, "failed to load snapshot")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// CommandRequest is the body for POST /api/v1/command.
type CommandRequest struct {
	DeviceID string `json:"device_id"`
	Value    string `json:"value"`

	// Code, when present, routes the command through the secured path.
	Code string `json:"code,omitempty"`
}

// handleCommand executes a device command through the bridge.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" || req.Value == "" {
		writeBadRequest(w, "device_id and value are required")
		return
	}

	var err error
	if req.Code != "" {
		err = s.commander.HandleServiceSecuredCommand(r.Context(), req.DeviceID, req.Value, req.Code)
	} else {
		err = s.commander.HandleServiceCommand(r.Context(), req.DeviceID, req.Value)
	}
	if err != nil {
		if errors.Is(err, bridge.ErrInvalidCommand) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("command failed", "device_id", req.DeviceID, "error", err)
		writeUnavailable(w, "command could not be delivered")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":    "accepted",
		"device_id": req.DeviceID,
	})
}
