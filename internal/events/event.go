package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies what happened.
type Kind string

const (
	KindSessionStarted   Kind = "session_started"
	KindSessionRestarted Kind = "session_restarted"
	KindStepChanged      Kind = "step_changed"
	KindAttempt          Kind = "auth_attempt"
	KindCommitted        Kind = "auth_committed"
	KindModeChanged      Kind = "mode_changed"
	KindAdmin            Kind = "admin"
	KindDoor             Kind = "door"
	KindVoice            Kind = "voice"
	KindPolicy           Kind = "policy"
	KindSystem           Kind = "system"
)

// Level is the alert severity. Events with an empty level are not alerts.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelSuccess  Level = "SUCCESS"
	LevelWarning  Level = "WARNING"
	LevelDanger   Level = "DANGER"
	LevelCritical Level = "CRITICAL"
)

// Event is a single access-control intent.
type Event struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	Level      Level         `json:"level,omitempty"`
	Mode       string        `json:"mode,omitempty"`
	Step       string        `json:"step,omitempty"`
	Factor     string        `json:"factor,omitempty"`
	Outcome    string        `json:"outcome,omitempty"`
	Message    string        `json:"message,omitempty"`
	Source     string        `json:"source,omitempty"`
	Generation uint64        `json:"generation,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ns,omitempty"`
	At         time.Time     `json:"at"`
}

// IsAlert reports whether the event should reach the notifier.
func (e Event) IsAlert() bool {
	return e.Level != ""
}

// stamp fills in the id and timestamp if the poster left them empty.
func (e *Event) stamp(now time.Time) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = now
	}
}
