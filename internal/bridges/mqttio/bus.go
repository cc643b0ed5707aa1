package mqttio

import (
	"errors"

	"github.com/nerrad567/doorguard/internal/infrastructure/mqtt"
)

// Bus is the part of the MQTT client the bridges use. *mqtt.Client
// satisfies it.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	QoS() byte
}

// Logger is the logging surface the bridges need.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

var (
	// ErrDeviceFailed is returned when a device acknowledges a command
	// with a failure status.
	ErrDeviceFailed = errors.New("mqttio: device reported failure")

	// ErrNoAck is returned when a device does not acknowledge a command in
	// time.
	ErrNoAck = errors.New("mqttio: no acknowledgement")

	// ErrBadPayload is returned by handlers for messages that do not parse.
	ErrBadPayload = errors.New("mqttio: malformed payload")
)

var topics = mqtt.Topics{}

// Device names used in actuator topics.
const (
	deviceLock    = "lock"
	deviceBuzzer  = "buzzer"
	deviceSpeaker = "speaker"
)

// Sensor names used in sensor topics.
const (
	sensorFace        = "face"
	sensorFingerprint = "fingerprint"
	sensorRFID        = "rfid"
)

// latest is a one-slot mailbox that keeps the newest value.
type latest[T any] struct {
	ch chan T
}

func newLatest[T any]() latest[T] {
	return latest[T]{ch: make(chan T, 1)}
}

// put stores v, discarding any unread older value.
func (l latest[T]) put(v T) {
	for {
		select {
		case l.ch <- v:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}

// take returns the stored value without waiting.
func (l latest[T]) take() (T, bool) {
	select {
	case v := <-l.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}
