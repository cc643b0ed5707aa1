package audit

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/doorguard/internal/events"
)

func TestEntryFor(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		event      events.Event
		wantOK     bool
		wantAction string
		wantType   string
		wantID     string
	}{
		{
			name:       "failed attempt",
			event:      events.Event{Kind: events.KindAttempt, Factor: "rfid", Outcome: "failure", Mode: "sequential"},
			wantOK:     true,
			wantAction: "auth_failure",
			wantType:   EntityFactor,
			wantID:     "rfid",
		},
		{
			name:       "committed",
			event:      events.Event{Kind: events.KindCommitted, Generation: 12, Factor: "passcode"},
			wantOK:     true,
			wantAction: "access_granted",
			wantType:   EntitySession,
			wantID:     "12",
		},
		{
			name:       "door relocked",
			event:      events.Event{Kind: events.KindDoor, Outcome: "locked"},
			wantOK:     true,
			wantAction: "door_locked",
			wantType:   EntityDoor,
		},
		{
			name:   "door countdown",
			event:  events.Event{Kind: events.KindDoor, Outcome: "countdown"},
			wantOK: false,
		},
		{
			name:       "admin denied",
			event:      events.Event{Kind: events.KindAdmin, Outcome: "denied", Generation: 3},
			wantOK:     true,
			wantAction: "admin_denied",
			wantType:   EntityAdmin,
			wantID:     "3",
		},
		{
			name:       "mode changed",
			event:      events.Event{Kind: events.KindModeChanged, Mode: "any"},
			wantOK:     true,
			wantAction: "mode_changed",
			wantType:   EntityPolicy,
			wantID:     "any",
		},
		{
			name:       "card enrolled",
			event:      events.Event{Kind: events.KindPolicy, Outcome: "card_added", Source: "api"},
			wantOK:     true,
			wantAction: "policy_card_added",
			wantType:   EntityPolicy,
		},
		{
			name:   "step change ignored",
			event:  events.Event{Kind: events.KindStepChanged, Step: "rfid"},
			wantOK: false,
		},
		{
			name:   "voice ignored",
			event:  events.Event{Kind: events.KindVoice, Outcome: "emitted"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.event.At = at
			got, ok := EntryFor(tt.event)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", got.Action, tt.wantAction)
			}
			if got.EntityType != tt.wantType {
				t.Errorf("EntityType = %q, want %q", got.EntityType, tt.wantType)
			}
			if got.EntityID != tt.wantID {
				t.Errorf("EntityID = %q, want %q", got.EntityID, tt.wantID)
			}
			if !got.CreatedAt.Equal(at) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, at)
			}
			if got.Source == "" {
				t.Error("Source is empty")
			}
		})
	}
}

func TestSink_WritesThroughDispatcher(t *testing.T) {
	repo := testRepo(t)
	d := events.NewDispatcher(8, nil)
	d.Register("audit", NewSink(repo))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Post(events.Event{Kind: events.KindAttempt, Factor: "face", Outcome: "success", Mode: "sequential"})
	d.Post(events.Event{Kind: events.KindStepChanged, Step: "fingerprint"})
	d.Post(events.Event{Kind: events.KindDoor, Outcome: "unlocked", Level: events.LevelSuccess})
	cancel()
	<-done

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("Total = %d, want 2", res.Total)
	}
	got := map[string]bool{}
	for _, e := range res.Entries {
		got[e.Action] = true
	}
	if !got["auth_success"] || !got["door_unlocked"] {
		t.Errorf("actions = %v, want auth_success and door_unlocked", got)
	}
}
