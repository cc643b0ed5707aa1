package access

import "errors"

var (
	// ErrSensorRead marks a transient hardware or transport failure.
	ErrSensorRead = errors.New("access: sensor read failed")

	// ErrSensorQuality marks a read the sensor rejected as too poor to match,
	// such as a smudged fingerprint image.
	ErrSensorQuality = errors.New("access: sensor quality too low")

	// ErrAttemptsExhausted is reported when a sequential step runs out of
	// attempts and the session restarts.
	ErrAttemptsExhausted = errors.New("access: attempts exhausted")

	// ErrDoorCycleActive is returned when an operation needs a live session
	// but the door is unlocked and the session has completed.
	ErrDoorCycleActive = errors.New("access: door cycle in progress")

	// ErrAdminActive is returned when the admin override already owns the
	// session.
	ErrAdminActive = errors.New("access: admin override active")

	// ErrAdminNotActive is returned by admin input when no prompt is open.
	ErrAdminNotActive = errors.New("access: admin override not active")

	// ErrAdminDenied is returned when the admin passcode is wrong.
	ErrAdminDenied = errors.New("access: admin passcode rejected")

	// ErrPasscodeNotExpected is returned when a passcode arrives while the
	// session is not waiting for one.
	ErrPasscodeNotExpected = errors.New("access: passcode not expected")

	// ErrStaleGeneration is returned when an operation names a session that
	// has already been replaced.
	ErrStaleGeneration = errors.New("access: stale session generation")

	// ErrNotRunning is returned before Start or after Stop.
	ErrNotRunning = errors.New("access: orchestrator not running")
)
