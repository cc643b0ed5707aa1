// Package api implements the operator REST API and WebSocket status push
// for Doorguard.
//
// This package provides:
//   - Kiosk endpoints mirroring the keypad and hotkeys (passcode entry,
//     admin hotkey, admin prompt answers)
//   - Operator endpoints for session restart, mode switching, policy
//     edits, mode history, the audit trail, voice tests and shutdown
//   - JWT authentication issued against the admin passcode, with
//     ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Security
//
// Kiosk endpoints are unauthenticated: they carry exactly what the
// physical keypad can send. Everything else requires a bearer token from
// POST /api/v1/auth/login, which is throttled per client address.
// WebSocket connections use single-use tickets so tokens never appear in
// URLs.
//
// # Live updates
//
// The server's EventSink is registered on the event dispatcher. Clients
// subscribe to the "events" channel for the raw stream and to "status"
// for a fresh session snapshot after each change.
package api
