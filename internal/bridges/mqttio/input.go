package mqttio

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// defaultExitWindow is how long an armed exit waits for the second press.
const defaultExitWindow = 5 * time.Second

// Kiosk is the part of the access orchestrator driven by kiosk input.
type Kiosk interface {
	SubmitPasscode(code string) error
	CancelPasscode() error
	TriggerAdmin(source string) error
	RestartSession() error
}

// ExitConfirm wires the exit hotkey. The first press arms the exit and
// calls Prompt; a second press within Window calls Confirm. A nil Confirm
// disables the hotkey.
type ExitConfirm struct {
	Prompt  func()
	Confirm func()
	Window  time.Duration // default 5s
}

// Input routes keypad and hotkey messages to the orchestrator. Rejected
// input (wrong step, admin already active) is logged and dropped.
type Input struct {
	kiosk  Kiosk
	exit   ExitConfirm
	logger Logger
	now    func() time.Time

	mu      sync.Mutex
	armedAt time.Time
}

// NewInput creates an input router.
func NewInput(kiosk Kiosk, exit ExitConfirm, logger Logger) *Input {
	if logger == nil {
		logger = noopLogger{}
	}
	if exit.Window <= 0 {
		exit.Window = defaultExitWindow
	}
	return &Input{kiosk: kiosk, exit: exit, logger: logger, now: time.Now}
}

// Subscribe attaches the router to the keypad and hotkey topics.
func (in *Input) Subscribe(bus Bus) error {
	if err := bus.Subscribe(topics.Keypad(), bus.QoS(), in.handleKeypad); err != nil {
		return err
	}
	return bus.Subscribe(topics.Hotkey(), bus.QoS(), in.handleHotkey)
}

func (in *Input) handleKeypad(_ string, payload []byte) error {
	var m KeypadMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	var err error
	switch m.Action {
	case KeypadSubmit:
		err = in.kiosk.SubmitPasscode(m.Code)
	case KeypadCancel:
		err = in.kiosk.CancelPasscode()
	default:
		return fmt.Errorf("%w: keypad action %q", ErrBadPayload, m.Action)
	}
	if err != nil {
		in.logger.Info("keypad input rejected", "action", m.Action, "error", err)
	}
	return nil
}

func (in *Input) handleHotkey(_ string, payload []byte) error {
	var m HotkeyMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	var err error
	switch m.Key {
	case HotkeyAdmin:
		in.disarm()
		err = in.kiosk.TriggerAdmin("hotkey")
	case HotkeyRestart:
		in.disarm()
		err = in.kiosk.RestartSession()
	case HotkeyExit:
		in.exitPressed()
	default:
		return fmt.Errorf("%w: hotkey %q", ErrBadPayload, m.Key)
	}
	if err != nil {
		in.logger.Info("hotkey rejected", "key", m.Key, "error", err)
	}
	return nil
}

// exitPressed arms the exit on the first press and confirms it on a second
// press inside the window.
func (in *Input) exitPressed() {
	if in.exit.Confirm == nil {
		return
	}
	now := in.now()
	in.mu.Lock()
	confirmed := !in.armedAt.IsZero() && now.Sub(in.armedAt) < in.exit.Window
	if confirmed {
		in.armedAt = time.Time{}
	} else {
		in.armedAt = now
	}
	in.mu.Unlock()

	if confirmed {
		in.logger.Info("exit confirmed from kiosk")
		in.exit.Confirm()
		return
	}
	in.logger.Info("exit requested, waiting for confirmation", "window", in.exit.Window)
	if in.exit.Prompt != nil {
		in.exit.Prompt()
	}
}

func (in *Input) disarm() {
	in.mu.Lock()
	in.armedAt = time.Time{}
	in.mu.Unlock()
}
