package policy

import "fmt"

const (
	minPasscodeLen = 4
	maxPasscodeLen = 8

	minAdminPasscodeLen = 4
	maxAdminPasscodeLen = 12

	// MaxFingerprintID is the highest template slot a sensor can address.
	MaxFingerprintID = 65535
)

// ValidatePasscode checks a door passcode: 4 to 8 ASCII digits.
func ValidatePasscode(code string) error {
	return validateDigits("passcode", code, minPasscodeLen, maxPasscodeLen)
}

// ValidateAdminPasscode checks an admin passcode: 4 to 12 ASCII digits,
// enterable on the kiosk keypad.
func ValidateAdminPasscode(code string) error {
	return validateDigits("admin passcode", code, minAdminPasscodeLen, maxAdminPasscodeLen)
}

// ValidateFingerprintID checks a template slot number.
func ValidateFingerprintID(id int) error {
	if id < 0 || id > MaxFingerprintID {
		return fmt.Errorf("%w: fingerprint id %d out of range 0..%d", ErrValidation, id, MaxFingerprintID)
	}
	return nil
}

func validateDigits(field, code string, minLen, maxLen int) error {
	if len(code) < minLen || len(code) > maxLen {
		return fmt.Errorf("%w: %s must be %d to %d digits", ErrValidation, field, minLen, maxLen)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %s must contain digits only", ErrValidation, field)
		}
	}
	return nil
}
