package journal

import (
	"fmt"
	"strings"
	"time"
)

// ScopeKind selects the window errors are searched in.
type ScopeKind string

const (
	// ScopeHistory searches the whole journal (default).
	ScopeHistory ScopeKind = "history"
	// ScopeLast keeps only failures recorded by the most recent run.
	ScopeLast ScopeKind = "last"
	// ScopeRun keeps only failures recorded by one named run.
	ScopeRun ScopeKind = "run"
	// ScopeSince keeps only failures recorded at or after a point in time.
	ScopeSince ScopeKind = "since"
)

// Scope is the window over which failed fingerprints are collected. In every
// scope a fingerprint counts as failed only when its latest event is an
// Error; the scope then narrows by when and by whom that event was written.
type Scope struct {
	Kind  ScopeKind
	RunID string
	Since time.Time
}

// HistoryScope returns the whole-journal scope.
func HistoryScope() Scope { return Scope{Kind: ScopeHistory} }

// LastRunScope returns the most-recent-run scope.
func LastRunScope() Scope { return Scope{Kind: ScopeLast} }

// RunScope returns the scope of a single run.
func RunScope(id string) Scope { return Scope{Kind: ScopeRun, RunID: id} }

// SinceScope returns the scope of events at or after t.
func SinceScope(t time.Time) Scope { return Scope{Kind: ScopeSince, Since: t} }

// ParseScope parses "history", "last", "run:<id>" or "since:<RFC3339>".
// The empty string is the history scope.
func ParseScope(s string) (Scope, error) {
	kind, arg, _ := strings.Cut(s, ":")
	switch ScopeKind(kind) {
	case "", ScopeHistory:
		return HistoryScope(), nil
	case ScopeLast:
		return LastRunScope(), nil
	case ScopeRun:
		if arg == "" {
			return Scope{}, fmt.Errorf("invalid scope %q: run scope requires an id", s)
		}
		return RunScope(arg), nil
	case ScopeSince:
		t, err := time.Parse(time.RFC3339, arg)
		if err != nil {
			return Scope{}, fmt.Errorf("invalid scope %q: %w", s, err)
		}
		return SinceScope(t), nil
	default:
		return Scope{}, fmt.Errorf("invalid scope %q: must be history, last, run:<id> or since:<time>", s)
	}
}

// String returns the form accepted by ParseScope.
func (s Scope) String() string {
	switch s.Kind {
	case ScopeRun:
		return "run:" + s.RunID
	case ScopeSince:
		return "since:" + s.Since.UTC().Format(time.RFC3339)
	case "":
		return string(ScopeHistory)
	default:
		return string(s.Kind)
	}
}

// contains reports whether ev falls in the scope. lastRun is the run ID of
// the most recent run in the journal.
func (s Scope) contains(ev Event, lastRun string) bool {
	switch s.Kind {
	case ScopeLast:
		return lastRun != "" && ev.RunID == lastRun
	case ScopeRun:
		return ev.RunID == s.RunID
	case ScopeSince:
		return !ev.At.Before(s.Since)
	default:
		return true
	}
}
