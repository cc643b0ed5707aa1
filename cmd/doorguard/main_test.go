package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/doorguard/internal/door"
	"github.com/nerrad567/doorguard/internal/events"
	"github.com/nerrad567/doorguard/internal/infrastructure/config"
	"github.com/nerrad567/doorguard/internal/voice"
)

type capturePoster struct {
	events []events.Event
}

func (c *capturePoster) Post(e events.Event) bool {
	c.events = append(c.events, e)
	return true
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("DOORGUARD_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_MissingSecret verifies run refuses a config without a token secret.
func TestRun_MissingSecret(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
site:
  id: test-door
database:
  path: "` + filepath.Join(t.TempDir(), "test.db") + `"
influxdb:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("DOORGUARD_CONFIG", configPath)
	t.Setenv("DOORGUARD_JWT_SECRET", "")

	err := run(t.Context())
	if err == nil || !strings.Contains(err.Error(), "security.jwt.secret") {
		t.Errorf("run() error = %v, want jwt secret validation error", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("DOORGUARD_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("DOORGUARD_CONFIG", "/etc/doorguard/config.yaml")
	if got := getConfigPath(); got != "/etc/doorguard/config.yaml" {
		t.Errorf("getConfigPath() = %q, want override", got)
	}
}

func TestDoorEvents(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		in          door.Event
		wantPost    bool
		wantOutcome string
		wantLevel   events.Level
		wantMessage string
	}{
		{"unlocked", door.Event{Kind: door.EventUnlocked, At: at}, true, "unlocked", events.LevelSuccess, ""},
		{"countdown", door.Event{Kind: door.EventCountdown, Remaining: 3, At: at}, true, "countdown", "", "3"},
		{"relocked", door.Event{Kind: door.EventRelocked, At: at}, true, "locked", events.LevelInfo, ""},
		{"relock retried", door.Event{Kind: door.EventRelockRetried, Err: errors.New("no ack"), At: at}, true, "relock_retried", events.LevelWarning, "no ack"},
		{"relock failed", door.Event{Kind: door.EventRelockFailed, Err: errors.New("relay stuck"), At: at}, true, "relock_failed", events.LevelCritical, "relay stuck"},
		{"unlock failed", door.Event{Kind: door.EventUnlockFailed, Err: errors.New("relay stuck"), At: at}, false, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &capturePoster{}
			doorEvents(p)(tt.in)

			if !tt.wantPost {
				if len(p.events) != 0 {
					t.Errorf("posted %+v, want nothing", p.events)
				}
				return
			}
			if len(p.events) != 1 {
				t.Fatalf("posted %d events, want 1", len(p.events))
			}
			e := p.events[0]
			if e.Kind != events.KindDoor || e.Outcome != tt.wantOutcome || e.Level != tt.wantLevel || e.Message != tt.wantMessage {
				t.Errorf("event = %+v, want outcome %q level %q message %q", e, tt.wantOutcome, tt.wantLevel, tt.wantMessage)
			}
			if !e.At.Equal(at) {
				t.Errorf("At = %v, want %v", e.At, at)
			}
		})
	}
}

func TestVoiceEvents(t *testing.T) {
	p := &capturePoster{}
	voiceEvents(p)(voice.KeyDoorUnlocked, voice.OutcomeEmitted)

	if len(p.events) != 1 {
		t.Fatalf("posted %d events, want 1", len(p.events))
	}
	e := p.events[0]
	if e.Kind != events.KindVoice || e.Message != voice.KeyDoorUnlocked || e.Outcome != string(voice.OutcomeEmitted) {
		t.Errorf("event = %+v", e)
	}
	if e.IsAlert() {
		t.Error("voice event must not be an alert")
	}
}

type recordingSpeaker struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return nil
}

func (s *recordingSpeaker) spoken() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

func TestAnnounceShutdown_BypassesDuplicateGuard(t *testing.T) {
	speaker := &recordingSpeaker{}
	var mu sync.Mutex
	var outcomes []voice.Outcome
	gate := voice.New(config.VoiceConfig{Enabled: true}, speaker,
		voice.WithObserver(func(key string, o voice.Outcome) {
			if key == voice.KeyShutdown {
				mu.Lock()
				outcomes = append(outcomes, o)
				mu.Unlock()
			}
		}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go gate.Run(ctx)

	gate.SpeakImmediate(voice.KeyShutdown, "")
	if gate.Speak(voice.KeyShutdown, "") {
		t.Fatal("repeat shutdown cue was not suppressed")
	}

	if err := announceShutdown(ctx, gate); err != nil {
		t.Fatalf("announceShutdown() error = %v", err)
	}
	if got := speaker.spoken(); got != 2 {
		t.Errorf("spoken = %d, want 2", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) == 0 || outcomes[len(outcomes)-1] != voice.OutcomeForced {
		t.Errorf("outcomes = %v, want last forced", outcomes)
	}
}
