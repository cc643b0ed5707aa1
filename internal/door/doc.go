// Package door drives the lock relay and the buzzer.
//
// The relay follows the fail-secure convention: energized means locked.
// Unlock de-energizes it, starts a countdown that reports the seconds left
// once per second, and relocks at the deadline. Relock is idempotent. If
// the relay refuses to relock, the actuator retries once; if that also
// fails it raises a manual-intervention event and keeps running. Every
// failure path drives the relay toward locked.
package door
