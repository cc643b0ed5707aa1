// Package auth issues and validates operator tokens for the control API.
//
// Doorguard has no user accounts. An operator proves presence by entering
// the admin passcode (the same secret the door's admin override asks for)
// and receives a short-lived HS256 JWT carrying the admin role. Tokens are
// validated by signature and expiry only, with no database lookup.
//
// Repeated failed logins from one client are throttled by Throttle so the
// API cannot be used to brute-force the admin passcode.
package auth
