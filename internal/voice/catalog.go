package voice

import "time"

// Message keys.
const (
	KeySystemReady    = "system_ready"
	KeyModeSequential = "mode_sequential"
	KeyModeAny        = "mode_any"

	KeyStepFace        = "step_face"
	KeyStepFingerprint = "step_fingerprint"
	KeyStepRfid        = "step_rfid"
	KeyStepPasscode    = "step_passcode"

	KeyFaceVerified        = "face_verified"
	KeyFingerprintVerified = "fingerprint_verified"
	KeyCardVerified        = "card_verified"
	KeyPasscodeVerified    = "passcode_verified"

	KeyFingerprintFailed = "fingerprint_failed"
	KeyCardFailed        = "card_failed"
	KeyPasscodeFailed    = "passcode_failed"
	KeyTimeout           = "timeout"
	KeyAttemptsExhausted = "attempts_exhausted"
	KeySensorError       = "sensor_error"

	KeyAccessGranted = "access_granted"
	KeyDoorUnlocked  = "door_unlocked"
	KeyDoorLocked    = "door_locked"
	KeyDoorFault     = "door_fault"

	KeyAdminPrompt  = "admin_prompt"
	KeyAdminGranted = "admin_granted"
	KeyAdminDenied  = "admin_denied"

	KeyShutdownConfirm = "shutdown_confirm"
	KeyShutdown        = "shutdown"

	KeyClick   = "click"
	KeySuccess = "success"
)

// DefaultMessages is the built-in catalogue. Empty entries are silent.
func DefaultMessages() map[string]string {
	return map[string]string{
		KeySystemReady:    "System ready.",
		KeyModeSequential: "High security mode. All four checks are required.",
		KeyModeAny:        "Fast access mode. Use any method to unlock.",

		KeyStepFace:        "Please look at the camera.",
		KeyStepFingerprint: "Place your finger on the sensor.",
		KeyStepRfid:        "Tap your card on the reader.",
		KeyStepPasscode:    "Enter your passcode.",

		KeyFaceVerified:        "Face verified.",
		KeyFingerprintVerified: "Fingerprint verified.",
		KeyCardVerified:        "Card verified.",
		KeyPasscodeVerified:    "",

		KeyFingerprintFailed: "Fingerprint not recognised.",
		KeyCardFailed:        "Card not recognised.",
		KeyPasscodeFailed:    "Wrong passcode.",
		KeyTimeout:           "Time is up. Please try again.",
		KeyAttemptsExhausted: "Too many attempts. Starting over.",
		KeySensorError:       "Sensor problem. Please try again.",

		KeyAccessGranted: "Access granted.",
		KeyDoorUnlocked:  "Door unlocked.",
		KeyDoorLocked:    "Door locked.",
		KeyDoorFault:     "Door fault. Please contact an administrator.",

		KeyAdminPrompt:  "Admin mode. Enter the admin passcode.",
		KeyAdminGranted: "Admin access granted.",
		KeyAdminDenied:  "Admin access denied.",

		KeyShutdownConfirm: "Confirm again to shut down.",
		KeyShutdown:        "System shutting down.",

		KeyClick:   "",
		KeySuccess: "",
	}
}

// DefaultCooldowns is the built-in per-key cooldown table.
func DefaultCooldowns() map[string]time.Duration {
	return map[string]time.Duration{
		KeyStepFace:        30 * time.Second,
		KeyStepFingerprint: 20 * time.Second,
		KeyStepRfid:        20 * time.Second,
		KeyStepPasscode:    20 * time.Second,

		KeyModeSequential: 300 * time.Second,
		KeyModeAny:        300 * time.Second,
		KeySystemReady:    60 * time.Second,

		KeyDoorUnlocked: 10 * time.Second,
		KeyDoorLocked:   15 * time.Second,

		KeySensorError: 15 * time.Second,
	}
}

// sessionOnceKeys fire at most once per session.
var sessionOnceKeys = map[string]bool{
	KeyModeSequential: true,
	KeyModeAny:        true,
	KeySystemReady:    true,
}
