package policy

import "errors"

var (
	// ErrValidation wraps every rejected setter input.
	ErrValidation = errors.New("policy: validation failed")

	// ErrNotSeeded is returned by Repository.Load before the first Seed.
	ErrNotSeeded = errors.New("policy: store not seeded")

	// ErrNotFound is returned when removing a card or fingerprint that is
	// not enrolled.
	ErrNotFound = errors.New("policy: not found")

	// ErrAlreadyEnrolled is returned when adding a duplicate card or fingerprint.
	ErrAlreadyEnrolled = errors.New("policy: already enrolled")

	// ErrAdminPasscodeNotSet is returned when verifying an admin passcode
	// before one has been configured.
	ErrAdminPasscodeNotSet = errors.New("policy: admin passcode not set")
)
