package engine

import "time"

// Clock supplies timestamps for journal events and request durations.
//
// Events are ordered by their position in the journal file, not by their
// timestamps; the clock only feeds the "since" scope and reporting.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
