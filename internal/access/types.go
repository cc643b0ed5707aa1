package access

import (
	"time"

	"github.com/nerrad567/doorguard/internal/policy"
)

// Step is the session's position in the authentication flow.
type Step string

const (
	StepFace        Step = "face"
	StepFingerprint Step = "fingerprint"
	StepRfid        Step = "rfid"
	StepPasscode    Step = "passcode"
	StepAnyAuth     Step = "any_auth"
	StepAdmin       Step = "admin"
	StepCompleted   Step = "completed"
)

// Factor is one verification method.
type Factor string

const (
	FactorFace        Factor = "face"
	FactorFingerprint Factor = "fingerprint"
	FactorRfid        Factor = "rfid"
	FactorPasscode    Factor = "passcode"
)

// sequentialOrder is the fixed factor order of the sequential policy.
var sequentialOrder = []Step{StepFace, StepFingerprint, StepRfid, StepPasscode}

// factorOf maps a sequential step to the factor it verifies.
func factorOf(s Step) Factor {
	switch s {
	case StepFace:
		return FactorFace
	case StepFingerprint:
		return FactorFingerprint
	case StepRfid:
		return FactorRfid
	case StepPasscode:
		return FactorPasscode
	default:
		return ""
	}
}

// firstStep is where a fresh session in mode m begins.
func firstStep(m policy.Mode) Step {
	if m == policy.ModeAny {
		return StepAnyAuth
	}
	return StepFace
}

// SuccessRecord is one verified factor. Records are never modified once
// committed to a session.
type SuccessRecord struct {
	Method     Factor    `json:"method"`
	Identifier string    `json:"identifier"`
	Details    string    `json:"details,omitempty"`
	At         time.Time `json:"at"`
}

// StepResult is one observation fed to the sequential controller.
type StepResult struct {
	// Matched is a recognised face frame or a verified credential.
	Matched bool
	// Cancelled is an explicit passcode cancel.
	Cancelled bool
	// AdminCard is the admin card seen by the card reader.
	AdminCard bool
	// Err is a sensor failure wrapping ErrSensorRead or ErrSensorQuality.
	Err error

	Identifier string
	Details    string
}

// Decision tells the orchestrator what to do after a result.
type Decision struct {
	Next  Step
	Delay time.Duration

	// Continue keeps the worker on Next after Delay.
	Continue bool
	// Restart ends the session; a new one starts after Delay.
	Restart bool
	// Unlock means the session committed and the door should open.
	Unlock bool
	// Admin means the admin override took the session. AdminGeneration is
	// the generation it owns.
	Admin           bool
	AdminGeneration uint64
	// Stale means the result belonged to a superseded session.
	Stale bool

	// Reason is the error behind a restart, if any.
	Reason error
}

// Status is a point-in-time view of the session for dashboards and the API.
type Status struct {
	Generation  uint64          `json:"generation"`
	Mode        policy.Mode     `json:"mode"`
	Step        Step            `json:"step"`
	Attempts    map[Factor]int  `json:"attempts"`
	FaceMatches int             `json:"face_matches"`
	Successes   []SuccessRecord `json:"successes"`
	Detail      string          `json:"detail,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	Door        DoorState       `json:"door"`
	Running     bool            `json:"running"`
}

// DoorState mirrors the actuator's lock state in Status.
type DoorState struct {
	Locked   bool      `json:"locked"`
	Deadline time.Time `json:"deadline,omitzero"`
	Fault    bool      `json:"fault"`
}
