package telemetry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nerrad567/doorguard/internal/events"
)

type recordingWriter struct {
	points []string
}

func (r *recordingWriter) WriteAuthAttempt(mode, factor, outcome string, _ time.Time) {
	r.points = append(r.points, fmt.Sprintf("attempt %s %s %s", mode, factor, outcome))
}

func (r *recordingWriter) WriteAuthCommit(mode, factor string, elapsed time.Duration, _ time.Time) {
	r.points = append(r.points, fmt.Sprintf("commit %s %s %v", mode, factor, elapsed))
}

func (r *recordingWriter) WriteDoorCycle(state string, ok bool, _ time.Time) {
	r.points = append(r.points, fmt.Sprintf("door %s %v", state, ok))
}

func (r *recordingWriter) WriteVoice(key, outcome string, _ time.Time) {
	r.points = append(r.points, fmt.Sprintf("voice %s %s", key, outcome))
}

func TestSink_Handle(t *testing.T) {
	tests := []struct {
		name  string
		event events.Event
		want  string
	}{
		{
			name:  "attempt",
			event: events.Event{Kind: events.KindAttempt, Mode: "any", Factor: "rfid", Outcome: "failure"},
			want:  "attempt any rfid failure",
		},
		{
			name:  "commit",
			event: events.Event{Kind: events.KindCommitted, Mode: "sequential", Factor: "all", Elapsed: 4 * time.Second},
			want:  "commit sequential all 4s",
		},
		{
			name:  "unlocked",
			event: events.Event{Kind: events.KindDoor, Outcome: "unlocked"},
			want:  "door unlocked true",
		},
		{
			name:  "relock failed",
			event: events.Event{Kind: events.KindDoor, Outcome: "relock_failed"},
			want:  "door locked false",
		},
		{
			name:  "countdown",
			event: events.Event{Kind: events.KindDoor, Outcome: "countdown"},
		},
		{
			name:  "voice",
			event: events.Event{Kind: events.KindVoice, Message: "access_denied", Outcome: "suppressed"},
			want:  "voice access_denied suppressed",
		},
		{
			name:  "step change",
			event: events.Event{Kind: events.KindStepChanged, Step: "rfid"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{}
			if err := NewSink(w).Handle(context.Background(), tt.event); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if tt.want == "" {
				if len(w.points) != 0 {
					t.Errorf("points = %v, want none", w.points)
				}
				return
			}
			if len(w.points) != 1 || w.points[0] != tt.want {
				t.Errorf("points = %v, want [%s]", w.points, tt.want)
			}
		})
	}
}
