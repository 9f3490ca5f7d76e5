// Package engine implements the request queue and the resumable fetch/load
// runs that walk it.
//
// A run proceeds in three phases:
//
//  1. Enumerate builds the Cartesian product of a dataset's dimensions as a
//     Queue of Requests, each identified by its Fingerprint.
//  2. Dedup, ActiveSubset and Exclude narrow the queue to the work that still
//     needs doing, cross-referencing the journal. Errors builds a retry queue
//     from previously failed fingerprints instead.
//  3. Engine.Download or Engine.Load executes the queue, sequentially or on a
//     bounded worker pool, appending one event per finished request.
//
// RESUMABILITY:
//
// The journal is the only state carried between runs. Re-running the same
// enumeration against the same journal converges toward an empty queue as
// requests succeed. A crashed or rate-limited run loses nothing: every
// request that finished is already journaled and every other one is still
// eligible.
//
// CONCURRENCY:
//
// Requests are independent. Under the worker pool, event order across
// fingerprints is unspecified but each append is atomic with its index
// update. The queue must be deduplicated before a run so that no two workers
// ever process the same fingerprint.
//
// MATCHING:
//
// Queue filters join journal fingerprints against queue entries through a
// Matcher. SerialMatcher, IndexedMatcher and ParallelMatcher always agree on
// the result; IndexedMatcher is the default.
package engine
