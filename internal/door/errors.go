package door

import "errors"

var (
	// ErrActuator wraps relay failures.
	ErrActuator = errors.New("door: actuator failure")

	// ErrAlreadyUnlocked is returned by Unlock while a cycle is running.
	ErrAlreadyUnlocked = errors.New("door: already unlocked")

	// ErrManualIntervention is reported when relock failed after a retry.
	ErrManualIntervention = errors.New("door: relock failed, manual intervention required")
)
