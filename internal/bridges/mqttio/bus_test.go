package mqttio

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/doorguard/internal/infrastructure/mqtt"
)

type sent struct {
	topic    string
	payload  []byte
	retained bool
}

// fakeBus records publishes and lets tests deliver messages to handlers.
type fakeBus struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published []sent
	failWith  error
	onPublish func(topic string, payload []byte)
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBus) Publish(topic string, payload []byte, _ byte, retained bool) error {
	b.mu.Lock()
	if b.failWith != nil {
		err := b.failWith
		b.mu.Unlock()
		return err
	}
	b.published = append(b.published, sent{topic: topic, payload: payload, retained: retained})
	hook := b.onPublish
	b.mu.Unlock()
	if hook != nil {
		hook(topic, payload)
	}
	return nil
}

func (b *fakeBus) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Publish(topic, payload, 1, retained)
}

func (b *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) QoS() byte { return 1 }

func (b *fakeBus) deliver(t *testing.T, topic string, v any) error {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b.mu.Lock()
	h, ok := b.handlers[topic]
	b.mu.Unlock()
	if !ok {
		t.Fatalf("no handler subscribed to %s", topic)
	}
	return h(topic, payload)
}

func (b *fakeBus) sentTo(topic string) []sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sent
	for _, s := range b.published {
		if s.topic == topic {
			out = append(out, s)
		}
	}
	return out
}

func TestLatest_KeepsNewest(t *testing.T) {
	box := newLatest[int]()
	box.put(1)
	box.put(2)
	box.put(3)

	v, ok := box.take()
	if !ok || v != 3 {
		t.Errorf("take() = %d, %v, want 3, true", v, ok)
	}
	if _, ok := box.take(); ok {
		t.Error("take() on empty box returned a value")
	}
}

func TestDevices_SubscribesEverything(t *testing.T) {
	bus := newFakeBus()
	d := NewDevices(bus)
	if err := d.Subscribe(bus); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	for _, topic := range []string{
		"doorguard/sensor/face",
		"doorguard/sensor/fingerprint",
		"doorguard/sensor/rfid",
		"doorguard/actuator/lock/done",
		"doorguard/actuator/speaker/done",
		"doorguard/admin/panel/closed",
	} {
		if _, ok := bus.handlers[topic]; !ok {
			t.Errorf("no subscription on %s", topic)
		}
	}
	s := d.Sensors()
	if s.Camera == nil || s.Face == nil || s.Fingerprint == nil || s.Card == nil {
		t.Errorf("Sensors() = %+v, want all set", s)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}
