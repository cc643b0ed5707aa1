package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementAuthAttempt = "auth_attempt"
	MeasurementAuthCommit  = "auth_commit"
	MeasurementDoorCycle   = "door_cycle"
	MeasurementVoice       = "voice"
)

// WriteAuthAttempt records one verification outcome for a factor.
//
// Parameters:
//   - mode: "sequential" or "any"
//   - factor: "face", "fingerprint", "rfid", "passcode" or "admin"
//   - outcome: "success", "failure", "timeout", "sensor_error" or "exhausted"
//   - at: When the attempt finished
func (c *Client) WriteAuthAttempt(mode, factor, outcome string, at time.Time) {
	c.WritePointWithTime(MeasurementAuthAttempt,
		map[string]string{"mode": mode, "factor": factor, "outcome": outcome},
		map[string]any{"count": 1},
		at,
	)
}

// WriteAuthCommit records a session commit and how long the session took
// from start to the winning result.
func (c *Client) WriteAuthCommit(mode, factor string, elapsed time.Duration, at time.Time) {
	c.WritePointWithTime(MeasurementAuthCommit,
		map[string]string{"mode": mode, "factor": factor},
		map[string]any{"elapsed_ms": elapsed.Milliseconds()},
		at,
	)
}

// WriteDoorCycle records a lock transition. ok is false when the relay
// command failed.
func (c *Client) WriteDoorCycle(state string, ok bool, at time.Time) {
	c.WritePointWithTime(MeasurementDoorCycle,
		map[string]string{"state": state},
		map[string]any{"ok": ok},
		at,
	)
}

// WriteVoice records a voice gate decision: "emitted", "suppressed" or
// "dropped".
func (c *Client) WriteVoice(key, outcome string, at time.Time) {
	c.WritePointWithTime(MeasurementVoice,
		map[string]string{"key": key, "outcome": outcome},
		map[string]any{"count": 1},
		at,
	)
}

// WritePoint writes a custom point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with an explicit timestamp.
// Dropped silently when the client is not connected.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
