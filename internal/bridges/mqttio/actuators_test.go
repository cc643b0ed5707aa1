package mqttio

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/doorguard/internal/door"
	"github.com/nerrad567/doorguard/internal/voice"
)

// ackWith makes the fake device answer every command on cmdTopic with
// status on ackTopic.
func ackWith(t *testing.T, bus *fakeBus, cmdTopic, ackTopic, status, errText string) {
	t.Helper()
	bus.onPublish = func(topic string, payload []byte) {
		if topic != cmdTopic {
			return
		}
		var cmd CommandMessage
		if err := json.Unmarshal(payload, &cmd); err != nil {
			t.Errorf("command payload: %v", err)
			return
		}
		go func() {
			b, _ := json.Marshal(AckMessage{CommandID: cmd.ID, Status: status, Error: errText})
			bus.mu.Lock()
			h := bus.handlers[ackTopic]
			bus.mu.Unlock()
			_ = h(ackTopic, b)
		}()
	}
}

func TestRelay_SetEnergized(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{"acknowledged", AckOK, nil},
		{"board failure", AckFailed, ErrDeviceFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newFakeBus()
			r := NewRelay(bus)
			if err := r.Subscribe(); err != nil {
				t.Fatalf("Subscribe() error = %v", err)
			}
			ackWith(t, bus, "doorguard/actuator/lock/set", "doorguard/actuator/lock/done", tt.status, "coil open")

			err := r.SetEnergized(context.Background(), false)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetEnergized() error = %v, want %v", err, tt.wantErr)
			}

			cmds := bus.sentTo("doorguard/actuator/lock/set")
			if len(cmds) != 1 {
				t.Fatalf("commands = %d, want 1", len(cmds))
			}
			var cmd CommandMessage
			if err := json.Unmarshal(cmds[0].payload, &cmd); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if cmd.Energized == nil || *cmd.Energized {
				t.Errorf("Energized = %v, want false", cmd.Energized)
			}
			if cmds[0].retained {
				t.Error("relay command published retained")
			}
		})
	}
}

func TestRelay_NoAck(t *testing.T) {
	bus := newFakeBus()
	r := NewRelay(bus)
	if err := r.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := r.SetEnergized(ctx, true); !errors.Is(err, ErrNoAck) {
		t.Errorf("SetEnergized() error = %v, want ErrNoAck", err)
	}
	if len(r.acks.waiters) != 0 {
		t.Errorf("waiters = %d, want 0 after timeout", len(r.acks.waiters))
	}
}

func TestRelay_PublishError(t *testing.T) {
	bus := newFakeBus()
	bus.failWith = errors.New("not connected")
	r := NewRelay(bus)
	if err := r.SetEnergized(context.Background(), true); err == nil {
		t.Error("SetEnergized() error = nil, want publish error")
	}
}

func TestBuzzer_Beep(t *testing.T) {
	bus := newFakeBus()
	b := NewBuzzer(bus)
	if err := b.Beep(context.Background(), door.PatternAlarm); err != nil {
		t.Fatalf("Beep() error = %v", err)
	}
	cmds := bus.sentTo("doorguard/actuator/buzzer/set")
	if len(cmds) != 1 {
		t.Fatalf("commands = %d, want 1", len(cmds))
	}
	var cmd CommandMessage
	_ = json.Unmarshal(cmds[0].payload, &cmd)
	if cmd.Pattern != "alarm" {
		t.Errorf("Pattern = %q, want alarm", cmd.Pattern)
	}
}

func TestSpeaker_Speak(t *testing.T) {
	t.Run("done acknowledged", func(t *testing.T) {
		bus := newFakeBus()
		s := NewSpeaker(bus)
		if err := s.Subscribe(); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		ackWith(t, bus, "doorguard/actuator/speaker/set", "doorguard/actuator/speaker/done", AckOK, "")

		start := time.Now()
		if err := s.Speak(context.Background(), "Please look at the camera for face recognition"); err != nil {
			t.Fatalf("Speak() error = %v", err)
		}
		if time.Since(start) > time.Second {
			t.Error("Speak() waited for the estimate despite an acknowledgement")
		}
	})

	t.Run("synthesis failure", func(t *testing.T) {
		bus := newFakeBus()
		s := NewSpeaker(bus)
		if err := s.Subscribe(); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		ackWith(t, bus, "doorguard/actuator/speaker/set", "doorguard/actuator/speaker/done", AckFailed, "no voice")

		if err := s.Speak(context.Background(), "Access denied"); !errors.Is(err, voice.ErrSynthesis) {
			t.Errorf("Speak() error = %v, want ErrSynthesis", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		bus := newFakeBus()
		s := NewSpeaker(bus)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := s.Speak(ctx, "Door locked"); !errors.Is(err, context.Canceled) {
			t.Errorf("Speak() error = %v, want context.Canceled", err)
		}
	})
}

func TestSpeechEstimate(t *testing.T) {
	if got := speechEstimate(""); got != speechBase {
		t.Errorf("speechEstimate(\"\") = %v, want %v", got, speechBase)
	}
	if got := speechEstimate("door is now locked"); got != speechBase+4*speechPerWord {
		t.Errorf("speechEstimate(4 words) = %v, want %v", got, speechBase+4*speechPerWord)
	}
}

func TestPanel_Open(t *testing.T) {
	bus := newFakeBus()
	p := NewPanel(bus)
	if err := p.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Open(context.Background()) }()

	waitUntil(t, func() bool { return len(bus.sentTo("doorguard/admin/panel/open")) == 1 })
	var open PanelMessage
	_ = json.Unmarshal(bus.sentTo("doorguard/admin/panel/open")[0].payload, &open)

	if err := bus.deliver(t, "doorguard/admin/panel/closed", PanelMessage{ID: "other"}); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	select {
	case err := <-done:
		t.Fatalf("Open() returned %v on an unrelated close", err)
	case <-time.After(30 * time.Millisecond):
	}

	if err := bus.deliver(t, "doorguard/admin/panel/closed", PanelMessage{ID: open.ID}); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Open() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Open() did not return after close")
	}
}

func TestPanel_OpenCancelled(t *testing.T) {
	bus := newFakeBus()
	p := NewPanel(bus)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Open(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Open() error = %v, want DeadlineExceeded", err)
	}
}
