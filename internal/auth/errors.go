package auth

import "errors"

var (
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrForbidden          = errors.New("auth: insufficient permissions")
	ErrThrottled          = errors.New("auth: too many failed attempts")
)
