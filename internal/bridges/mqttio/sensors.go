package mqttio

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/doorguard/internal/access"
	"github.com/nerrad567/doorguard/internal/policy"
)

// maxFrameAge discards recogniser verdicts that sat in the mailbox while
// nobody was polling.
const maxFrameAge = 2 * time.Second

// FaceFeed receives recogniser verdicts. It serves as both the camera and
// the matcher: each frame is the sidecar's JSON verdict, and ProcessFrame
// decodes it.
type FaceFeed struct {
	box latest[[]byte]
	now func() time.Time
}

// NewFaceFeed creates an empty feed.
func NewFaceFeed() *FaceFeed {
	return &FaceFeed{box: newLatest[[]byte](), now: time.Now}
}

// Subscribe attaches the feed to the bus.
func (f *FaceFeed) Subscribe(bus Bus) error {
	return bus.Subscribe(topics.Sensor(sensorFace), bus.QoS(), f.handle)
}

func (f *FaceFeed) handle(_ string, payload []byte) error {
	if !json.Valid(payload) {
		return ErrBadPayload
	}
	f.box.put(append([]byte(nil), payload...))
	return nil
}

// NextFrame blocks until a verdict arrives or ctx ends.
func (f *FaceFeed) NextFrame(ctx context.Context) (access.Frame, error) {
	select {
	case b := <-f.box.ch:
		return access.Frame(b), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProcessFrame decodes a verdict. Verdicts older than two seconds count as
// no face.
func (f *FaceFeed) ProcessFrame(_ context.Context, frame access.Frame) (access.FaceResult, error) {
	var m FaceMessage
	if err := json.Unmarshal(frame, &m); err != nil {
		return access.FaceResult{}, fmt.Errorf("%w: face verdict: %w", access.ErrSensorRead, err)
	}
	if !m.Timestamp.IsZero() && f.now().Sub(m.Timestamp) > maxFrameAge {
		return access.FaceResult{}, nil
	}
	return access.FaceResult{
		Detected:   m.Detected,
		Recognized: m.Recognized,
		Confidence: m.Confidence,
		Identity:   m.Identity,
	}, nil
}

// FingerprintFeed receives reads from the fingerprint module.
type FingerprintFeed struct {
	box latest[FingerprintMessage]
}

// NewFingerprintFeed creates an empty feed.
func NewFingerprintFeed() *FingerprintFeed {
	return &FingerprintFeed{box: newLatest[FingerprintMessage]()}
}

// Subscribe attaches the feed to the bus.
func (f *FingerprintFeed) Subscribe(bus Bus) error {
	return bus.Subscribe(topics.Sensor(sensorFingerprint), bus.QoS(), f.handle)
}

func (f *FingerprintFeed) handle(_ string, payload []byte) error {
	var m FingerprintMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	f.box.put(m)
	return nil
}

// TryRead returns the newest unread message, or an untouched read when
// there is none.
func (f *FingerprintFeed) TryRead(_ context.Context) (access.FingerprintRead, error) {
	m, ok := f.box.take()
	if !ok {
		return access.FingerprintRead{}, nil
	}
	switch m.Error {
	case "":
	case FingerprintErrQuality:
		return access.FingerprintRead{}, fmt.Errorf("%w: poor image", access.ErrSensorQuality)
	default:
		return access.FingerprintRead{}, fmt.Errorf("%w: fingerprint %s", access.ErrSensorRead, m.Error)
	}
	id := m.ID
	if !m.Touched {
		id = -1
	}
	return access.FingerprintRead{Touched: m.Touched, ID: id}, nil
}

// CardFeed receives card presentations from the RFID reader.
type CardFeed struct {
	box latest[string]
}

// NewCardFeed creates an empty feed.
func NewCardFeed() *CardFeed {
	return &CardFeed{box: newLatest[string]()}
}

// Subscribe attaches the feed to the bus.
func (f *CardFeed) Subscribe(bus Bus) error {
	return bus.Subscribe(topics.Sensor(sensorRFID), bus.QoS(), f.handle)
}

func (f *CardFeed) handle(_ string, payload []byte) error {
	var m CardMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	if m.UID == "" {
		return fmt.Errorf("%w: empty uid", ErrBadPayload)
	}
	f.box.put(m.UID)
	return nil
}

// ReadWithTimeout waits up to timeout for a card. A UID that is not a
// valid card identifier is reported as a sensor read error.
func (f *CardFeed) ReadWithTimeout(ctx context.Context, timeout time.Duration) (policy.CardID, bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case uid := <-f.box.ch:
		id, err := policy.ParseCardID(uid)
		if err != nil {
			return policy.CardID{}, false, fmt.Errorf("%w: %w", access.ErrSensorRead, err)
		}
		return id, true, nil
	case <-t.C:
		return policy.CardID{}, false, nil
	case <-ctx.Done():
		return policy.CardID{}, false, ctx.Err()
	}
}
