package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/doorguard/internal/infrastructure/config"
)

// testConfig returns an MQTT configuration pointing at a local broker.
// Only the integration tests actually dial it.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "doorguard-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	l.lines = append(l.lines, level+": "+msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record("error", msg) }

func (l *recordingLogger) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Sensor", topics.Sensor("face"), "doorguard/sensor/face"},
		{"Actuator", topics.Actuator("lock"), "doorguard/actuator/lock/set"},
		{"ActuatorAck", topics.ActuatorAck("speaker"), "doorguard/actuator/speaker/done"},
		{"Keypad", topics.Keypad(), "doorguard/input/keypad"},
		{"Hotkey", topics.Hotkey(), "doorguard/input/hotkey"},
		{"AdminPanelOpen", topics.AdminPanelOpen(), "doorguard/admin/panel/open"},
		{"AdminPanelClosed", topics.AdminPanelClosed(), "doorguard/admin/panel/closed"},
		{"CoreStatus", topics.CoreStatus(), "doorguard/core/status"},
		{"CoreEvent", topics.CoreEvent("door_unlocked"), "doorguard/core/event/door_unlocked"},
		{"CoreAlert", topics.CoreAlert("critical"), "doorguard/core/alert/critical"},
		{"SystemStatus", topics.SystemStatus(), "doorguard/system/status"},
		{"AllCoreAlerts", topics.AllCoreAlerts(), "doorguard/core/alert/+"},
		{"AllCoreEvents", topics.AllCoreEvents(), "doorguard/core/event/+"},
		{"AllSensors", topics.AllSensors(), "doorguard/sensor/+"},
		{"AllTopics", topics.AllTopics(), "doorguard/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "door"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "doorguard-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "door" || opts.Password != "secret" {
		t.Errorf("credentials not applied: %q/%q", opts.Username, opts.Password)
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("expected clean session with auto-reconnect")
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured without cfg.Broker.TLS")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS minimum version not set")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "doorguard-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatal("last will not enabled and retained")
	}
	if opts.WillTopic != "doorguard/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var st systemStatus
	if err := json.Unmarshal(opts.WillPayload, &st); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if st.Status != "offline" || st.Reason != "unexpected_disconnect" || st.ClientID != "doorguard-test" {
		t.Errorf("will payload = %+v", st)
	}
}

func TestStatusPayloads(t *testing.T) {
	var online, offline systemStatus
	if err := json.Unmarshal(buildOnlinePayload("c1"), &online); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(buildOfflinePayload("c1"), &offline); err != nil {
		t.Fatal(err)
	}
	if online.Status != "online" || online.Reason != "" {
		t.Errorf("online payload = %+v", online)
	}
	if offline.Status != "offline" || offline.Reason != "graceful_shutdown" {
		t.Errorf("offline payload = %+v", offline)
	}
}

func TestValidationBeforeConnection(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", []byte("x"), 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("doorguard/x", nil, 3, false), ErrInvalidQoS},
		{"publish oversized", c.Publish("doorguard/x", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish disconnected", c.Publish("doorguard/x", nil, 1, false), ErrNotConnected},
		{"subscribe empty topic", c.Subscribe("", 1, handler), ErrInvalidTopic},
		{"subscribe nil handler", c.Subscribe("doorguard/x", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", c.Subscribe("doorguard/x", 1, handler), ErrNotConnected},
		{"unsubscribe empty", c.Unsubscribe(""), ErrInvalidTopic},
		{"unsubscribe disconnected", c.Unsubscribe("doorguard/x"), ErrNotConnected},
		{"health", c.HealthCheck(context.Background()), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if c.SubscriptionCount() != 0 {
		t.Errorf("failed Subscribe left %d tracked subscriptions", c.SubscriptionCount())
	}
}

func TestPublishJSON_EncodingError(t *testing.T) {
	c := &Client{}
	err := c.PublishJSON("doorguard/x", make(chan int), false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestCloseNil(t *testing.T) {
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (&Client{}).HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestDeliver(t *testing.T) {
	logger := &recordingLogger{}

	deliver(logger, func(string, []byte) error { return nil }, "t", nil)
	deliver(logger, func(string, []byte) error { return fmt.Errorf("bad payload") }, "t", nil)
	deliver(logger, func(string, []byte) error { panic("boom") }, "t", nil)

	lines := logger.get()
	if len(lines) != 2 {
		t.Fatalf("logged %d lines, want 2: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "warn: ") {
		t.Errorf("handler error logged as %q, want warn", lines[0])
	}
	if !strings.HasPrefix(lines[1], "error: ") || !strings.Contains(lines[1], "panic") {
		t.Errorf("panic logged as %q", lines[1])
	}
}

func TestSetLogger_Nil(t *testing.T) {
	c := &Client{}
	c.SetLogger(nil)
	c.getLogger().Warn("no-op")
}
