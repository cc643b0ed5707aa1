// Package panel serves the kiosk display: the page shown on the screen
// beside the door.
//
// The page polls GET /api/v1/status for the current step, attempt counts
// and lock state, and drives the unauthenticated kiosk endpoints from an
// on-screen keypad. The assets are embedded in the binary; a directory on
// disk can be served instead while the page is being worked on.
package panel
