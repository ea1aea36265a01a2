package bridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// CommandMessage is the JSON envelope accepted on the command topics.
// Topic: loxone/command (plain) and loxone/command/secured.
type CommandMessage struct {
	// ID uniquely identifies this command for log correlation. Assigned
	// by the bridge if the sender omits it.
	ID string `json:"id,omitempty"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp,omitempty"`

	// DeviceID is the Miniserver control UUID.
	DeviceID string `json:"device_id"`

	// Value is the command value (e.g. "on", "off", "50").
	Value string `json:"value"`

	// Code is the visual authorization code. Required on the secured
	// topic, ignored on the plain one.
	Code string `json:"code,omitempty"`

	// Source indicates where the command originated ("mqtt", "api").
	Source string `json:"source,omitempty"`
}

// UnmarshalJSON accepts value and code as strings or numbers, since
// automation clients send both.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	aux := struct {
		ID        string          `json:"id"`
		Timestamp time.Time       `json:"timestamp"`
		DeviceID  string          `json:"device_id"`
		Value     json.RawMessage `json:"value"`
		Code      json.RawMessage `json:"code"`
		Source    string          `json:"source"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}

	value, err := flexibleString(aux.Value)
	if err != nil {
		return fmt.Errorf("command value: %w", err)
	}
	code, err := flexibleString(aux.Code)
	if err != nil {
		return fmt.Errorf("command code: %w", err)
	}

	m.ID = aux.ID
	m.Timestamp = aux.Timestamp
	m.DeviceID = aux.DeviceID
	m.Value = value
	m.Code = code
	m.Source = aux.Source
	return nil
}

// flexibleString renders a JSON string or number as its string form.
func flexibleString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("must be a string or number, got %s", raw)
}

// Validate checks the envelope carries everything needed to execute.
// secured requires a visual authorization code.
func (m *CommandMessage) Validate(secured bool) error {
	if m.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidCommand)
	}
	if m.Value == "" {
		return fmt.Errorf("%w: value is required", ErrInvalidCommand)
	}
	if secured && m.Code == "" {
		return fmt.Errorf("%w: code is required for secured commands", ErrInvalidCommand)
	}
	return nil
}

// NewCommandMessage builds a command envelope with a fresh ID, used by
// the service-call path.
func NewCommandMessage(deviceID, value, code, source string) CommandMessage {
	return CommandMessage{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Value:     value,
		Code:      code,
		Source:    source,
	}
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published to loxone/health.
// QoS: 1, Retained: Yes.
type HealthMessage struct {
	// Miniserver is the configured miniserver instance identifier.
	Miniserver string `json:"miniserver"`

	// Timestamp is when the status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status is the bridge's operational status.
	Status HealthStatus `json:"status"`

	// Session is the Miniserver session state.
	Session string `json:"session"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// EventsRelayed is the total number of Miniserver messages relayed
	// to the event topic.
	EventsRelayed uint64 `json:"events_relayed"`

	// CommandsSent is the total number of commands forwarded to the
	// Miniserver.
	CommandsSent uint64 `json:"commands_sent"`

	// Reason explains a degraded or offline status.
	Reason string `json:"reason,omitempty"`
}

// Topic helpers.

const (
	// TopicPrefix is the base topic for all bridge messages.
	TopicPrefix = "loxone"
)

// CommandTopic returns the topic for plain commands.
func CommandTopic() string {
	return TopicPrefix + "/command"
}

// SecuredCommandTopic returns the topic for visual-authorization
// commands.
func SecuredCommandTopic() string {
	return TopicPrefix + "/command/secured"
}

// EventTopic returns the topic Miniserver messages are relayed to.
func EventTopic() string {
	return TopicPrefix + "/event"
}

// HealthTopic returns the topic for health status.
func HealthTopic() string {
	return TopicPrefix + "/health"
}

// DiscoveryTopic returns the retained topic for one registry entry
// kind.
// Example: loxone/discovery/miniserver
func DiscoveryTopic(kind string) string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, kind)
}

// formatUptime is a helper for log output.
func formatUptime(start time.Time) string {
	return strconv.FormatInt(int64(time.Since(start).Seconds()), 10) + "s"
}
