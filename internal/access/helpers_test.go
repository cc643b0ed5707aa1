package access

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/doorguard/internal/events"
	"github.com/nerrad567/doorguard/internal/infrastructure/config"
	"github.com/nerrad567/doorguard/internal/policy"
)

const (
	testFingerprint = 7
	testPasscode    = "4821"
	testAdminCode   = "908172"
	testAdminCard   = "DEADBEEF"
)

var testCard = policy.CardID{0x01, 0x02, 0x03, 0x04}

func testAccessConfig() config.AccessConfig {
	return config.AccessConfig{
		MaxAttempts:          5,
		FaceMatchThreshold:   5,
		SensorErrorTolerance: 3,
		FaceSettleDelay:      10 * time.Millisecond,
		FramePollInterval:    time.Millisecond,
		SensorPollInterval:   time.Millisecond,
		FingerprintTimeout:   50 * time.Millisecond,
		CardTimeout:          50 * time.Millisecond,
		PasscodeTimeout:      time.Second,
		RetryDelay:           5 * time.Millisecond,
		RestartDelay:         20 * time.Millisecond,
		AdminCardID:          testAdminCard,
		AdminPromptTimeout:   time.Second,
		AdminFailureDelay:    10 * time.Millisecond,
	}
}

func testSnapshot(mode policy.Mode) policy.Snapshot {
	return policy.NewSnapshot(mode, testPasscode, []policy.CardID{testCard}, []int{testFingerprint})
}

// eventRecorder captures posted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Post(e events.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

func (r *eventRecorder) find(kind events.Kind, outcome string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Kind == kind && (outcome == "" || e.Outcome == outcome) {
			out = append(out, e)
		}
	}
	return out
}

// recordingVoice captures cue keys.
type recordingVoice struct {
	mu     sync.Mutex
	keys   []string
	resets int
}

func (v *recordingVoice) Speak(key, _ string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys = append(v.keys, key)
	return true
}

func (v *recordingVoice) SpeakImmediate(key, custom string) bool {
	return v.Speak(key, custom)
}

func (v *recordingVoice) ResetSessionAnnouncements() {
	v.mu.Lock()
	v.resets++
	v.mu.Unlock()
}

func (v *recordingVoice) spoke(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, k := range v.keys {
		if k == key {
			return true
		}
	}
	return false
}

func (v *recordingVoice) resetCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resets
}

// fakeCamera returns an empty frame on every call, optionally gated.
type fakeCamera struct {
	gate <-chan struct{}
}

func (c *fakeCamera) NextFrame(ctx context.Context) (Frame, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return Frame{}, nil
}

// fakeMatcher recognises every frame unless told otherwise. A non-nil
// script is played first: a nil entry is a match, anything else is
// returned as the error. Once the script runs out no frame matches.
type fakeMatcher struct {
	mu        sync.Mutex
	unknown   bool
	script    []error
	processed int
}

func (m *fakeMatcher) ProcessFrame(context.Context, Frame) (FaceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed++
	if m.script != nil {
		if len(m.script) == 0 {
			return FaceResult{Detected: true}, nil
		}
		err := m.script[0]
		m.script = m.script[1:]
		if err != nil {
			return FaceResult{}, err
		}
	} else if m.unknown {
		return FaceResult{Detected: true}, nil
	}
	return FaceResult{Detected: true, Recognized: true, Confidence: 0.93, Identity: "alice"}, nil
}

func (m *fakeMatcher) frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed
}

// fakeFingerprint reports a finger once enabled, optionally gated.
type fakeFingerprint struct {
	mu      sync.Mutex
	gate    <-chan struct{}
	touched bool
	id      int
	err     error
	reads   int
}

func (f *fakeFingerprint) set(touched bool, id int) {
	f.mu.Lock()
	f.touched, f.id = touched, id
	f.mu.Unlock()
}

func (f *fakeFingerprint) TryRead(ctx context.Context) (FingerprintRead, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return FingerprintRead{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return FingerprintRead{}, f.err
	}
	return FingerprintRead{Touched: f.touched, ID: f.id}, nil
}

// fakeCardReader returns a queued card, or waits out the timeout.
type fakeCardReader struct {
	cards chan policy.CardID
}

func newFakeCardReader() *fakeCardReader {
	return &fakeCardReader{cards: make(chan policy.CardID, 4)}
}

func (r *fakeCardReader) ReadWithTimeout(ctx context.Context, timeout time.Duration) (policy.CardID, bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case id := <-r.cards:
		return id, true, nil
	case <-t.C:
		return policy.CardID{}, false, nil
	case <-ctx.Done():
		return policy.CardID{}, false, ctx.Err()
	}
}

// fakeVerifier accepts one admin passcode.
type fakeVerifier struct{ code string }

func (v fakeVerifier) VerifyAdminPasscode(code string) (bool, error) {
	return code == v.code, nil
}

// fakePanel blocks in Open until closed.
type fakePanel struct {
	opened chan struct{}
	close  chan struct{}
}

func newFakePanel() *fakePanel {
	return &fakePanel{opened: make(chan struct{}, 1), close: make(chan struct{})}
}

func (p *fakePanel) Open(ctx context.Context) error {
	p.opened <- struct{}{}
	select {
	case <-p.close:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
