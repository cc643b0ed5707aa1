package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/doorguard/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewWithWriter_JSONDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "json"}, "1.2.3")

	logger.Info("door unlocked", "deadline_ms", 3000)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if entry["service"] != "doorguard" {
		t.Errorf("service = %v, want doorguard", entry["service"])
	}
	if entry["version"] != "1.2.3" {
		t.Errorf("version = %v, want 1.2.3", entry["version"])
	}
	if entry["msg"] != "door unlocked" {
		t.Errorf("msg = %v, want 'door unlocked'", entry["msg"])
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "warn", Format: "text"}, "test")

	logger.Info("should be dropped")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn line missing")
	}
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Format: "json"}, "test")

	child := logger.Component("arbiter")
	if child == logger {
		t.Fatal("Component() returned the parent logger")
	}
	child.Info("worker started")

	if !strings.Contains(buf.String(), `"component":"arbiter"`) {
		t.Errorf("output %q missing component attribute", buf.String())
	}
}

func TestDefaultAndDiscard(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
	d := Discard()
	if d == nil {
		t.Fatal("Discard() returned nil")
	}
	d.Error("never printed")
}
