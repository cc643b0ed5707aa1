package mqttio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/doorguard/internal/door"
	"github.com/nerrad567/doorguard/internal/voice"
)

const (
	// defaultAckTimeout bounds a relay command when the caller's context
	// has no deadline.
	defaultAckTimeout = 3 * time.Second

	// Speech duration estimate used when the speaker never reports done.
	speechBase    = time.Second
	speechPerWord = 400 * time.Millisecond
)

// acks correlates command IDs with acknowledgements from one device.
type acks struct {
	mu      sync.Mutex
	waiters map[string]chan AckMessage
}

func newAcks() *acks {
	return &acks{waiters: make(map[string]chan AckMessage)}
}

func (a *acks) register(id string) chan AckMessage {
	ch := make(chan AckMessage, 1)
	a.mu.Lock()
	a.waiters[id] = ch
	a.mu.Unlock()
	return ch
}

func (a *acks) forget(id string) {
	a.mu.Lock()
	delete(a.waiters, id)
	a.mu.Unlock()
}

func (a *acks) handle(_ string, payload []byte) error {
	var m AckMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	a.mu.Lock()
	ch, ok := a.waiters[m.CommandID]
	delete(a.waiters, m.CommandID)
	a.mu.Unlock()
	if ok {
		ch <- m
	}
	return nil
}

// Relay drives the lock relay board. Every command is acknowledged by the
// board once the output has switched.
type Relay struct {
	bus  Bus
	acks *acks
	now  func() time.Time
}

// NewRelay creates a relay driver on bus.
func NewRelay(bus Bus) *Relay {
	return &Relay{bus: bus, acks: newAcks(), now: time.Now}
}

// Subscribe listens for relay acknowledgements.
func (r *Relay) Subscribe() error {
	return r.bus.Subscribe(topics.ActuatorAck(deviceLock), r.bus.QoS(), r.acks.handle)
}

// SetEnergized switches the relay and waits for the board to confirm.
// Energized means locked.
func (r *Relay) SetEnergized(ctx context.Context, energized bool) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultAckTimeout)
		defer cancel()
	}

	cmd := CommandMessage{
		ID:        uuid.NewString(),
		Timestamp: r.now().UTC(),
		Command:   "set",
		Energized: &energized,
	}
	ch := r.acks.register(cmd.ID)
	defer r.acks.forget(cmd.ID)

	if err := r.bus.PublishJSON(topics.Actuator(deviceLock), cmd, false); err != nil {
		return err
	}
	select {
	case ack := <-ch:
		if ack.Status != AckOK {
			return fmt.Errorf("%w: relay: %s", ErrDeviceFailed, ack.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: relay: %w", ErrNoAck, ctx.Err())
	}
}

// Buzzer sends feedback patterns. The buzzer does not acknowledge.
type Buzzer struct {
	bus Bus
	now func() time.Time
}

// NewBuzzer creates a buzzer driver on bus.
func NewBuzzer(bus Bus) *Buzzer {
	return &Buzzer{bus: bus, now: time.Now}
}

// Beep publishes pattern p.
func (b *Buzzer) Beep(_ context.Context, p door.Pattern) error {
	return b.bus.PublishJSON(topics.Actuator(deviceBuzzer), CommandMessage{
		ID:        uuid.NewString(),
		Timestamp: b.now().UTC(),
		Command:   "beep",
		Pattern:   string(p),
	}, false)
}

// Speaker sends text to the TTS bridge and waits for playback to finish.
// If the bridge never reports done, Speak returns after an estimate of the
// utterance length so the voice queue keeps moving.
type Speaker struct {
	bus  Bus
	acks *acks
	now  func() time.Time
}

// NewSpeaker creates a speaker driver on bus.
func NewSpeaker(bus Bus) *Speaker {
	return &Speaker{bus: bus, acks: newAcks(), now: time.Now}
}

// Subscribe listens for playback completion.
func (s *Speaker) Subscribe() error {
	return s.bus.Subscribe(topics.ActuatorAck(deviceSpeaker), s.bus.QoS(), s.acks.handle)
}

// Speak implements voice.Speaker.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	cmd := CommandMessage{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC(),
		Command:   "say",
		Text:      text,
	}
	ch := s.acks.register(cmd.ID)
	defer s.acks.forget(cmd.ID)

	if err := s.bus.PublishJSON(topics.Actuator(deviceSpeaker), cmd, false); err != nil {
		return fmt.Errorf("%w: %w", voice.ErrSynthesis, err)
	}

	t := time.NewTimer(speechEstimate(text))
	defer t.Stop()
	select {
	case ack := <-ch:
		if ack.Status != AckOK {
			return fmt.Errorf("%w: %s", voice.ErrSynthesis, ack.Error)
		}
		return nil
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func speechEstimate(text string) time.Duration {
	return speechBase + time.Duration(len(strings.Fields(text)))*speechPerWord
}

// Panel hands control to the admin panel and waits for it to close.
type Panel struct {
	bus    Bus
	closed latest[PanelMessage]
	now    func() time.Time
}

// NewPanel creates an admin panel driver on bus.
func NewPanel(bus Bus) *Panel {
	return &Panel{bus: bus, closed: newLatest[PanelMessage](), now: time.Now}
}

// Subscribe listens for the panel closing.
func (p *Panel) Subscribe() error {
	return p.bus.Subscribe(topics.AdminPanelClosed(), p.bus.QoS(), func(_ string, payload []byte) error {
		var m PanelMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("%w: %w", ErrBadPayload, err)
		}
		p.closed.put(m)
		return nil
	})
}

// Open publishes the handoff and blocks until the panel reports closed for
// this handoff or ctx ends.
func (p *Panel) Open(ctx context.Context) error {
	for {
		if _, ok := p.closed.take(); !ok {
			break
		}
	}
	msg := PanelMessage{ID: uuid.NewString(), Source: "doorguard", Timestamp: p.now().UTC()}
	if err := p.bus.PublishJSON(topics.AdminPanelOpen(), msg, false); err != nil {
		return err
	}
	for {
		select {
		case m := <-p.closed.ch:
			if m.ID == "" || m.ID == msg.ID {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
