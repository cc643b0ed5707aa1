package access

import (
	"context"
	"time"

	"github.com/nerrad567/doorguard/internal/policy"
)

// Frame is one opaque camera frame.
type Frame []byte

// FaceResult is the matcher's verdict on a frame.
type FaceResult struct {
	Detected   bool    `json:"detected"`
	Recognized bool    `json:"recognized"`
	Confidence float64 `json:"confidence"`
	Identity   string  `json:"identity,omitempty"`
}

// Camera yields frames. NextFrame blocks until a frame is available or ctx
// ends.
type Camera interface {
	NextFrame(ctx context.Context) (Frame, error)
}

// FaceMatcher recognises enrolled faces.
type FaceMatcher interface {
	ProcessFrame(ctx context.Context, frame Frame) (FaceResult, error)
}

// FingerprintRead is one poll of the fingerprint sensor.
type FingerprintRead struct {
	// Touched is false when no finger was on the sensor.
	Touched bool
	// ID is the matched template, or negative when the sensor found no match.
	ID int
}

// FingerprintReader polls the fingerprint sensor once. Errors wrap
// ErrSensorQuality for a poor image and ErrSensorRead for anything else.
type FingerprintReader interface {
	TryRead(ctx context.Context) (FingerprintRead, error)
}

// CardReader waits up to timeout for a card. ok is false when no card was
// presented.
type CardReader interface {
	ReadWithTimeout(ctx context.Context, timeout time.Duration) (id policy.CardID, ok bool, err error)
}

// Sensors groups the factor collaborators. A nil reader disables its
// factor in Any mode and fails its step in Sequential mode.
type Sensors struct {
	Camera      Camera
	Face        FaceMatcher
	Fingerprint FingerprintReader
	Card        CardReader
}

// Speaker is the voice surface the engine uses.
type Speaker interface {
	Speak(key, custom string) bool
	SpeakImmediate(key, custom string) bool
}

// AdminVerifier checks the admin passcode.
type AdminVerifier interface {
	VerifyAdminPasscode(code string) (bool, error)
}

// AdminPanel is the external administration UI. Open blocks until the
// operator closes it or ctx ends.
type AdminPanel interface {
	Open(ctx context.Context) error
}

// Logger is the logging surface the engine needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopSpeaker struct{}

func (noopSpeaker) Speak(string, string) bool          { return false }
func (noopSpeaker) SpeakImmediate(string, string) bool { return false }
