package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Quota caps how many requests one run may dispatch. Statistics APIs often
// grant a daily allowance per key; a run that reaches its quota stops
// dispatching and the next run resumes from the journal.
//
// A Quota is safe for concurrent use. A limit of zero or less is unlimited.
type Quota struct {
	limit int64
	used  atomic.Int64
}

// NewQuota creates a quota allowing limit requests.
func NewQuota(limit int) *Quota {
	return &Quota{limit: int64(limit)}
}

// Take claims one request. It returns a *QuotaExceededError once the limit
// has been handed out; the counter never passes the limit.
func (q *Quota) Take() error {
	if q == nil || q.limit <= 0 {
		return nil
	}
	for {
		n := q.used.Load()
		if n >= q.limit {
			return &QuotaExceededError{Limit: int(q.limit)}
		}
		if q.used.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Exhausted reports whether every request of a limited quota is taken.
func (q *Quota) Exhausted() bool {
	return q != nil && q.limit > 0 && q.used.Load() >= q.limit
}

// Used returns how many requests were claimed.
func (q *Quota) Used() int {
	if q == nil {
		return 0
	}
	return int(q.used.Load())
}

// Limit returns the configured limit.
func (q *Quota) Limit() int {
	if q == nil {
		return 0
	}
	return int(q.limit)
}

// QuotaExceededError is returned by Take once the quota is spent.
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("request quota of %d exhausted", e.Limit)
}

// IsQuotaExceeded reports whether err is or wraps a *QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
