// Package journal records the outcome of every fetch and parse attempt.
//
// Each (dataset, Mode) pair owns one append-only history.log: one JSON
// object per line, never edited or truncated by this package. A History is
// built by reading that file top to bottom into an in-memory index keyed by
// fingerprint, where the last event for a fingerprint wins.
//
// # Crash Safety
//
// Appends hold a single lock across the file write and the index update, so
// a reader never observes one without the other. A process killed mid-write
// leaves at most one partial trailing line. Readers skip lines that do not
// decode, and the appender terminates a partial trailing line before writing,
// so the journal always reflects exactly the events that completed before
// the crash.
//
// # Outcomes
//
// Success and Error are the two outcomes the engine writes. Unknown stands
// for a decodable line whose outcome this version does not recognise (for
// example, one written by a newer release); it participates in last-write-
// wins but counts neither as completed nor as failed.
package journal
