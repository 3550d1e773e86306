// Package store provides persistence for the hub.
//
// # Entities
//
//   - Principal: a person known to the system, keyed by the stable identity
//     key issued by the external identity provider. Carries a role (user or
//     admin), an email-verification flag, and — while an admin session is
//     live — an opaque session token and its expiry.
//   - EscalationRequest: a pending request to promote a principal to admin,
//     at most one per subject. Re-requesting overwrites the previous token.
//   - ActivityEntry: append-only record of admin-attributable actions.
//   - Project: a construction project owned by a principal.
//
// # Invariants
//
// Session token and expiry are written together in single statements, so the
// pair is always both present or both absent. A principal demoted to user
// loses any live session in the same statement. Escalation approval is a
// conditional update (approved = 0 AND unexpired), making tokens single-use
// under concurrent approval clicks.
//
// # Implementation
//
// SQLiteStore implements Store using modernc.org/sqlite with WAL mode.
// Timestamps are stored as RFC3339 UTC strings, which compare correctly
// both lexicographically and chronologically.
package store
