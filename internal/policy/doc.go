// Package policy is the door's configuration store.
//
// It holds the door passcode, the enrolled card identifiers, the registered
// fingerprint template ids, the current authentication mode with a bounded
// history of mode changes, and the admin passcode hash.
//
// All writes go through validated setters. A rejected value returns an error
// wrapping ErrValidation and leaves both the persisted and in-memory policy
// untouched. A write is persisted before the in-memory copy changes, so a
// failed write also leaves the policy as it was.
//
// Authentication workers never read the Store mid-session. They take a
// Snapshot when a session starts and use that immutable copy until the
// session ends.
//
// # Persistence
//
// SQLiteRepository stores the policy in the shared Doorguard database
// (tables policy, policy_cards, policy_fingerprints, mode_history).
// MemoryRepository keeps it in process for tests and bench runs.
package policy
