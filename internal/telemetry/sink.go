package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/doorguard/internal/events"
)

// Writer is the subset of *influxdb.Client the sink uses.
type Writer interface {
	WriteAuthAttempt(mode, factor, outcome string, at time.Time)
	WriteAuthCommit(mode, factor string, elapsed time.Duration, at time.Time)
	WriteDoorCycle(state string, ok bool, at time.Time)
	WriteVoice(key, outcome string, at time.Time)
}

// doorCycles maps door event outcomes to (state, ok) points.
// Countdown ticks and relock retries are not recorded.
var doorCycles = map[string]struct {
	state string
	ok    bool
}{
	"unlocked":      {"unlocked", true},
	"locked":        {"locked", true},
	"unlock_failed": {"unlocked", false},
	"relock_failed": {"locked", false},
}

// Sink writes access events as time-series points.
type Sink struct {
	w Writer
}

// NewSink creates a sink writing through w.
func NewSink(w Writer) *Sink {
	return &Sink{w: w}
}

// Handle writes the point for e, if it has one.
func (s *Sink) Handle(_ context.Context, e events.Event) error {
	switch e.Kind {
	case events.KindAttempt:
		s.w.WriteAuthAttempt(e.Mode, e.Factor, e.Outcome, e.At)
	case events.KindCommitted:
		s.w.WriteAuthCommit(e.Mode, e.Factor, e.Elapsed, e.At)
	case events.KindDoor:
		if c, ok := doorCycles[e.Outcome]; ok {
			s.w.WriteDoorCycle(c.state, c.ok, e.At)
		}
	case events.KindVoice:
		s.w.WriteVoice(e.Message, e.Outcome, e.At)
	}
	return nil
}
