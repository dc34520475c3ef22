// Package attendance provides type-safe Go definitions for attendance sessions
// and the deterministic identity scheme that makes offline synchronization safe.
//
// # Overview
//
// A Session is the unit of synchronization. It belongs to exactly one class, one
// recorder (teacher) and one calendar date, and that triple is its natural key.
// A session owns its records; records are never synchronized individually.
//
// # Identity
//
// IdentifierFor derives the canonical identifier from the natural key. It is a pure
// function: no randomness, no clock. Two devices recording the same class on the
// same day for the same teacher converge on one stored document, and a retried or
// double-submitted write targets the document it already wrote.
//
//	id, err := attendance.IdentifierFor("c1", "t1", "2024-03-04")
//	// id = "c1_t1_20240304"
//
// # Derived fields
//
// Stats are always recomputed from the record list before a write (see Refresh).
// A caller-supplied stats blob is never trusted.
//
// # Lifecycle
//
//	draft -> draft      (repeated saves)
//	draft -> submitted  (final; immutable afterwards)
//	submitted -> locked (archival, outside this module)
//
// The offline status is transient and local: a queued session carries it until it
// is synchronized, at which point its intended status replaces it.
package attendance
