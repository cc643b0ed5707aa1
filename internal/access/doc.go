// Package access is the authentication engine of the door.
//
// It owns the single live Session and decides, for every sensor result,
// what happens next. Two policies are supported:
//
//   - Sequential: face, fingerprint, card and passcode must all verify in
//     that order. One goroutine (Sequential) drives the steps.
//   - Any: the first factor to verify unlocks the door. The Arbiter runs
//     one goroutine per sensor plus one per submitted passcode, and the
//     first to Commit wins.
//
// Both policies route their decisions through one transition table keyed by
// (mode, step, event), see Lookup.
//
// # Generations
//
// Every session start bumps Session.Generation. Workers carry the
// generation they were started with and every result is checked against
// it, so a late result from a superseded worker is discarded even if the
// worker has not yet noticed its context was cancelled.
//
// # Admin override
//
// The admin card, seen by either policy's card reader, or the admin hotkey
// moves the session to StepAdmin. That bumps the generation, so no factor
// worker can commit afterwards. AdminOverride then prompts for the admin
// passcode and hands over to the admin panel. It never unlocks the door.
//
// # Orchestrator
//
// Orchestrator is the façade used by cmd/doorguard and the API. It takes a
// policy snapshot at each session start, wires the door's relock callback
// back into a fresh session, and posts every transition to the event
// dispatcher.
package access
