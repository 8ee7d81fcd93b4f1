// Package anchor manages the proof lifecycle of tracked files.
//
// A Manager is bound to one project root. Every operation runs one
// load → mutate → save cycle over the registry in <root>/.anchor; nothing
// is cached between operations, so a Manager never serves a stale view.
//
// # Lifecycle
//
//	untracked ──anchor──▶ pending ──upgrade (attested)──▶ confirmed
//	                        │  ▲                              │
//	          upgrade       │  │ anchor (new digest)          │ anchor (new digest)
//	         (rejected)     ▼  │                              ▼
//	                       failed ◀──────────────────────── pending
//
// Re-anchoring unchanged content that is pending or confirmed does nothing
// and makes no external call. A failed record is retried from submission.
// A confirmed record is never demoted: if resubmitting changed content
// fails, the record and its completed proof stay as they were. A file that
// cannot be read leaves its record untouched.
//
// # Errors
//
// Operations return *Error values whose Code is one of the ErrCode
// constants. Lower-level errors (registry, filesystem, timestamp service)
// are wrapped, never returned bare.
//
// # Limits
//
// Bulk operations refuse more than MaxFilesToAnchor files, and anchor
// messages longer than MaxMessageLength runes are rejected rather than
// truncated. Both checks happen before anything is mutated.
package anchor
