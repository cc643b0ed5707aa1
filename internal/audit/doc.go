// Package audit records the access audit trail in SQLite.
//
// Every authentication attempt, granted session, door cycle, admin override
// step, mode switch and policy edit is written to the audit_logs table by
// Sink, which runs on the event dispatcher goroutine. The operator API lists
// the trail through Repository.List with optional action, entity and time
// filters.
//
// Details never carry passcodes or full card identifiers.
package audit
