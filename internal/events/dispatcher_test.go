package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSink) Handle(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingSink) get() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func waitForCount(t *testing.T, r *recordingSink, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.get(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(r.get()))
	return nil
}

func TestDispatcher_DeliversInOrderToAllSinks(t *testing.T) {
	d := NewDispatcher(16, nil)
	first := &recordingSink{}
	second := &recordingSink{err: errors.New("sink offline")}
	d.Register("first", first)
	d.Register("second", second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	kinds := []Kind{KindSessionStarted, KindAttempt, KindCommitted, KindDoor}
	for _, k := range kinds {
		if !d.Post(Event{Kind: k}) {
			t.Fatalf("Post(%s) dropped", k)
		}
	}

	for _, sink := range []*recordingSink{first, second} {
		got := waitForCount(t, sink, len(kinds))
		for i, e := range got {
			if e.Kind != kinds[i] {
				t.Errorf("event %d kind = %s, want %s", i, e.Kind, kinds[i])
			}
			if e.ID == "" || e.At.IsZero() {
				t.Errorf("event %d not stamped: %+v", i, e)
			}
		}
	}
}

func TestDispatcher_PostNeverBlocks(t *testing.T) {
	d := NewDispatcher(2, nil)

	done := make(chan struct{})
	go func() {
		for range 10 {
			d.Post(Event{Kind: KindVoice})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Post blocked with no consumer")
	}
	if got := d.Dropped(); got != 8 {
		t.Errorf("Dropped() = %d, want 8", got)
	}
}

func TestDispatcher_PanickingSinkIsolated(t *testing.T) {
	d := NewDispatcher(4, nil)
	d.Register("bad", SinkFunc(func(context.Context, Event) error { panic("boom") }))
	good := &recordingSink{}
	d.Register("good", good)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Post(Event{Kind: KindSystem})
	waitForCount(t, good, 1)
}

func TestDispatcher_DrainsOnCancel(t *testing.T) {
	d := NewDispatcher(8, nil)
	sink := &recordingSink{}
	d.Register("sink", sink)

	for range 3 {
		d.Post(Event{Kind: KindAttempt})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	if got := len(sink.get()); got != 3 {
		t.Errorf("delivered %d events after cancel, want 3", got)
	}
}

func TestEvent_IsAlert(t *testing.T) {
	if (Event{Kind: KindAttempt}).IsAlert() {
		t.Error("event without level reported as alert")
	}
	if !(Event{Kind: KindDoor, Level: LevelCritical}).IsAlert() {
		t.Error("critical event not reported as alert")
	}
}
