package mqttio

import "time"

// FaceMessage is published by the recogniser sidecar for every processed
// camera frame.
// Topic: doorguard/sensor/face
type FaceMessage struct {
	Detected   bool      `json:"detected"`
	Recognized bool      `json:"recognized"`
	Confidence float64   `json:"confidence"`
	Identity   string    `json:"identity,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
}

// Fingerprint read errors reported by the sensor module.
const (
	FingerprintErrQuality  = "quality"
	FingerprintErrHardware = "hardware"
)

// FingerprintMessage is one read from the fingerprint module.
// Topic: doorguard/sensor/fingerprint
type FingerprintMessage struct {
	// Touched is false for "finger lifted" notifications.
	Touched bool `json:"touched"`
	// ID is the matched template, -1 when the finger did not match.
	ID int `json:"id"`
	// Error is empty, "quality" or "hardware".
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// CardMessage is one card presentation.
// Topic: doorguard/sensor/rfid
type CardMessage struct {
	UID       string    `json:"uid"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// CommandMessage is sent to an actuator.
// Topic: doorguard/actuator/{device}/set
type CommandMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`

	// Energized is set for relay commands. Energized means locked.
	Energized *bool `json:"energized,omitempty"`
	// Pattern is set for buzzer commands.
	Pattern string `json:"pattern,omitempty"`
	// Text is set for speaker commands.
	Text string `json:"text,omitempty"`
}

// Acknowledgement statuses.
const (
	AckOK     = "ok"
	AckFailed = "failed"
)

// AckMessage answers a CommandMessage.
// Topic: doorguard/actuator/{device}/done
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// PanelMessage is exchanged with the admin panel.
// Topics: doorguard/admin/panel/open, doorguard/admin/panel/closed
type PanelMessage struct {
	ID        string    `json:"id"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Keypad actions.
const (
	KeypadSubmit = "submit"
	KeypadCancel = "cancel"
)

// KeypadMessage is a kiosk keypad entry.
// Topic: doorguard/input/keypad
type KeypadMessage struct {
	Action string `json:"action"`
	Code   string `json:"code,omitempty"`
}

// Hotkeys.
const (
	HotkeyAdmin   = "admin"
	HotkeyRestart = "restart"
	HotkeyExit    = "exit"
)

// HotkeyMessage is a kiosk hotkey press.
// Topic: doorguard/input/hotkey
type HotkeyMessage struct {
	Key string `json:"key"`
}
