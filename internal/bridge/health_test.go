package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nerrad567/loxone-bridge/internal/miniserver"
)

func newTestReporter(mqttClient *MockMQTTClient, session *MockSession) *HealthReporter {
	return NewHealthReporter(HealthReporterConfig{
		MiniserverID: "miniserver-test",
		Version:      "1.0.0",
		Interval:     time.Hour,
		Publisher:    mqttClient,
		Session:      session,
	})
}

func lastHealthMessage(t *testing.T, mqttClient *MockMQTTClient) HealthMessage {
	t.Helper()
	msgs := mqttClient.PublishedTo(HealthTopic())
	if len(msgs) == 0 {
		t.Fatal("no health messages published")
	}
	last := msgs[len(msgs)-1]
	if !last.Retained || last.QoS != 1 {
		t.Errorf("health message qos=%d retained=%v, want qos=1 retained", last.QoS, last.Retained)
	}
	var msg HealthMessage
	if err := json.Unmarshal(last.Payload, &msg); err != nil {
		t.Fatalf("unmarshal health message: %v", err)
	}
	return msg
}

func TestHealthReporter_HealthyWhenRunning(t *testing.T) {
	mqttClient := NewMockMQTTClient()
	session := NewMockSession()
	h := newTestReporter(mqttClient, session)

	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}

	msg := lastHealthMessage(t, mqttClient)
	if msg.Status != HealthHealthy {
		t.Errorf("status = %q, want %q", msg.Status, HealthHealthy)
	}
	if msg.Session != string(miniserver.StatusRunning) {
		t.Errorf("session = %q, want %q", msg.Session, miniserver.StatusRunning)
	}
	if msg.Miniserver != "miniserver-test" || msg.Version != "1.0.0" {
		t.Errorf("identity fields = %+v", msg)
	}
}

func TestHealthReporter_DegradedStates(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		session   miniserver.Status
		want      HealthStatus
	}{
		{"mqtt disconnected", false, miniserver.StatusRunning, HealthDegraded},
		{"session failed", true, miniserver.StatusFailed, HealthDegraded},
		{"session ready", true, miniserver.StatusReady, HealthStarting},
		{"session stopped", true, miniserver.StatusStopped, HealthStopping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mqttClient := NewMockMQTTClient()
			mqttClient.SetConnected(tt.connected)
			session := NewMockSession()
			session.SetStatus(tt.session)
			h := newTestReporter(mqttClient, session)

			status, _ := h.determineStatus()
			if status != tt.want {
				t.Errorf("determineStatus() = %q, want %q", status, tt.want)
			}
		})
	}
}

func TestHealthReporter_StopPublishesStopping(t *testing.T) {
	mqttClient := NewMockMQTTClient()
	session := NewMockSession()
	h := newTestReporter(mqttClient, session)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	h.Stop()
	h.Stop() // idempotent

	msg := lastHealthMessage(t, mqttClient)
	if msg.Status != HealthStopping {
		t.Errorf("final status = %q, want %q", msg.Status, HealthStopping)
	}
}

func TestCommandMessage_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    CommandMessage
		wantErr bool
	}{
		{
			name:    "string values",
			payload: `{"id":"c1","device_id":"abc","value":"on","code":"1234"}`,
			want:    CommandMessage{ID: "c1", DeviceID: "abc", Value: "on", Code: "1234"},
		},
		{
			name:    "numeric values",
			payload: `{"device_id":"abc","value":42.5,"code":9999}`,
			want:    CommandMessage{DeviceID: "abc", Value: "42.5", Code: "9999"},
		},
		{
			name:    "null code",
			payload: `{"device_id":"abc","value":"off","code":null}`,
			want:    CommandMessage{DeviceID: "abc", Value: "off"},
		},
		{
			name:    "value wrong type",
			payload: `{"device_id":"abc","value":{"nested":true}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got CommandMessage
			err := json.Unmarshal([]byte(tt.payload), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected unmarshal error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal error = %v", err)
			}
			got.Timestamp = time.Time{}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewCommandMessage_AssignsID(t *testing.T) {
	a := NewCommandMessage("abc", "on", "", "api")
	b := NewCommandMessage("abc", "on", "", "api")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("IDs must be unique and non-empty, got %q and %q", a.ID, b.ID)
	}
	if a.Source != "api" {
		t.Errorf("source = %q, want api", a.Source)
	}
}
