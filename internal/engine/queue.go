package engine

import (
	"iter"
	"slices"

	"github.com/roach88/statfetch/internal/catalog"
	"github.com/roach88/statfetch/internal/fingerprint"
	"github.com/roach88/statfetch/internal/journal"
)

// Queue is the ordered set of Requests for one dataset.
//
// Order is enumeration order and only serves as a stable iteration order.
// Every filtering method removes elements in place and never reorders or
// adds them.
type Queue struct {
	dataset *catalog.Dataset
	reqs    []Request
}

// NewQueue builds a queue over already-constructed requests.
func NewQueue(ds *catalog.Dataset, reqs []Request) *Queue {
	return &Queue{dataset: ds, reqs: slices.Clone(reqs)}
}

// Enumerate builds the Cartesian product of the dataset's dimensions, in
// declaration order with the last dimension varying fastest. A dimension
// without values fails the whole enumeration.
func Enumerate(ds *catalog.Dataset, layout Layout) (*Queue, error) {
	if err := ds.CheckEnumerable(); err != nil {
		return nil, NewEnumerationError(ds.Name, err)
	}

	total := 1
	for _, dim := range ds.Params {
		total *= len(dim.Values)
	}

	q := &Queue{dataset: ds, reqs: make([]Request, 0, total)}
	idx := make([]int, len(ds.Params))
	for {
		params := make(map[string]string, len(ds.Params))
		for d, dim := range ds.Params {
			params[dim.Name] = dim.Values[idx[d]].Code
		}
		req, err := NewRequest(ds, params, layout)
		if err != nil {
			return nil, err
		}
		q.reqs = append(q.reqs, req)

		// Advance the odometer from the last dimension.
		d := len(idx) - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < len(ds.Params[d].Values) {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return q, nil
		}
	}
}

// Dataset returns the dataset the queue belongs to.
func (q *Queue) Dataset() *catalog.Dataset { return q.dataset }

// Len returns the number of requests.
func (q *Queue) Len() int { return len(q.reqs) }

// At returns the i-th request.
func (q *Queue) At(i int) Request { return q.reqs[i] }

// All iterates requests in order.
func (q *Queue) All() iter.Seq2[int, Request] {
	return func(yield func(int, Request) bool) {
		for i, r := range q.reqs {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Fingerprints returns the request fingerprints in order.
func (q *Queue) Fingerprints() []fingerprint.Fingerprint {
	out := make([]fingerprint.Fingerprint, len(q.reqs))
	for i, r := range q.reqs {
		out[i] = r.fp
	}
	return out
}

// First returns the first request, if any.
func (q *Queue) First() (Request, bool) {
	if len(q.reqs) == 0 {
		return Request{}, false
	}
	return q.reqs[0], true
}

// Dedup keeps the first request for each fingerprint and returns how many
// were removed.
func (q *Queue) Dedup() int {
	seen := make(map[fingerprint.Fingerprint]struct{}, len(q.reqs))
	return q.retain(func(_ int, r Request) bool {
		if _, dup := seen[r.fp]; dup {
			return false
		}
		seen[r.fp] = struct{}{}
		return true
	})
}

// ActiveSubset removes requests the API cannot serve and returns how many
// were removed.
//
// Requests matching a forbidden combination are always dropped. Every other
// request must resolve to active catalog values: with strict set, the first
// one that does not aborts with a schema mismatch and leaves the queue
// unchanged; otherwise it is dropped.
func (q *Queue) ActiveSubset(strict bool) (int, error) {
	keep := make([]bool, len(q.reqs))
	for i, r := range q.reqs {
		if q.dataset.Forbidden(r.params) {
			continue
		}
		if err := q.dataset.Resolve(r.params); err != nil {
			if strict {
				return 0, NewSchemaMismatchError(q.dataset.Name, err)
			}
			continue
		}
		keep[i] = true
	}
	return q.retain(func(i int, _ Request) bool { return keep[i] }), nil
}

// Exclude removes every request whose latest event in h is a Success, using
// the indexed matcher. It returns how many were removed.
func (q *Queue) Exclude(h *journal.History) int {
	return q.ExcludeWith(h, IndexedMatcher{})
}

// ExcludeWith is Exclude with an explicit matching strategy.
func (q *Queue) ExcludeWith(h *journal.History, m Matcher) int {
	marks := m.Mark(q.reqs, completed(h))
	return q.retain(func(i int, _ Request) bool { return !marks[i] })
}

// KeepCompleted removes every request whose latest event in h is not a
// Success. Loading uses it to skip payloads that were never fetched.
func (q *Queue) KeepCompleted(h *journal.History) int {
	return q.KeepCompletedWith(h, IndexedMatcher{})
}

// KeepCompletedWith is KeepCompleted with an explicit matching strategy.
func (q *Queue) KeepCompletedWith(h *journal.History, m Matcher) int {
	marks := m.Mark(q.reqs, completed(h))
	return q.retain(func(i int, _ Request) bool { return marks[i] })
}

// Errors returns a new queue holding, in order, the requests whose latest
// event in h is an Error inside scope. The receiver is not modified.
func (q *Queue) Errors(h *journal.History, scope journal.Scope) *Queue {
	return q.ErrorsWith(h, scope, IndexedMatcher{})
}

// ErrorsWith is Errors with an explicit matching strategy.
func (q *Queue) ErrorsWith(h *journal.History, scope journal.Scope, m Matcher) *Queue {
	failed := h.Errors(scope)
	fps := make([]fingerprint.Fingerprint, 0, len(failed))
	for fp := range failed {
		fps = append(fps, fp)
	}

	marks := m.Mark(q.reqs, fps)
	out := &Queue{dataset: q.dataset}
	for i, r := range q.reqs {
		if marks[i] {
			out.reqs = append(out.reqs, r)
		}
	}
	return out
}

// retain keeps the requests for which keep returns true, preserving order,
// and returns the number removed.
func (q *Queue) retain(keep func(int, Request) bool) int {
	before := len(q.reqs)
	kept := q.reqs[:0]
	for i, r := range q.reqs {
		if keep(i, r) {
			kept = append(kept, r)
		}
	}
	clear(q.reqs[len(kept):])
	q.reqs = kept
	return before - len(kept)
}

func completed(h *journal.History) []fingerprint.Fingerprint {
	var out []fingerprint.Fingerprint
	for _, ev := range h.Events() {
		if ev.Outcome.Kind == journal.OutcomeSuccess {
			out = append(out, ev.Fingerprint)
		}
	}
	return out
}
