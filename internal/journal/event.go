package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/statfetch/internal/fingerprint"
)

// Mode distinguishes the raw fetch step from the parse step.
type Mode string

const (
	// ModeDownload records network fetches.
	ModeDownload Mode = "download"
	// ModeLoad records local parses of fetched payloads.
	ModeLoad Mode = "load"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDownload, ModeLoad:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be download or load", s)
	}
}

// OutcomeKind is the variant of an Outcome.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeError   OutcomeKind = "error"
	OutcomeUnknown OutcomeKind = "unknown"
)

// Outcome is the result of one attempt. Size and Duration are set for
// Success, Detail for Error.
type Outcome struct {
	Kind     OutcomeKind
	Size     int64
	Duration time.Duration
	Detail   string
}

// Success builds a successful outcome.
func Success(size int64, d time.Duration) Outcome {
	return Outcome{Kind: OutcomeSuccess, Size: size, Duration: d}
}

// Failure builds an error outcome.
func Failure(detail string) Outcome {
	return Outcome{Kind: OutcomeError, Detail: detail}
}

// Unknown builds an outcome for an unrecognised journal entry.
func Unknown() Outcome {
	return Outcome{Kind: OutcomeUnknown}
}

// Event is one journal fact.
type Event struct {
	Fingerprint fingerprint.Fingerprint
	Mode        Mode
	Outcome     Outcome
	RunID       string
	At          time.Time
}

// line is the on-disk shape of an Event.
type line struct {
	Fingerprint string    `json:"fingerprint"`
	Mode        Mode      `json:"mode"`
	Outcome     string    `json:"outcome"`
	Size        int64     `json:"size,omitempty"`
	DurationMS  int64     `json:"duration_ms,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
	At          time.Time `json:"at"`
}

// Encode returns the journal line for ev, newline included. Durations are
// stored at millisecond resolution.
func Encode(ev Event) ([]byte, error) {
	if ev.Fingerprint == "" {
		return nil, errors.New("encode event: empty fingerprint")
	}
	switch ev.Outcome.Kind {
	case OutcomeSuccess, OutcomeError:
	default:
		return nil, fmt.Errorf("encode event: outcome %q cannot be written", ev.Outcome.Kind)
	}

	data, err := json.Marshal(line{
		Fingerprint: string(ev.Fingerprint),
		Mode:        ev.Mode,
		Outcome:     string(ev.Outcome.Kind),
		Size:        ev.Outcome.Size,
		DurationMS:  ev.Outcome.Duration.Milliseconds(),
		Detail:      ev.Outcome.Detail,
		RunID:       ev.RunID,
		At:          ev.At.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses one journal line. A line that is not a JSON object or has no
// fingerprint is an error; an unrecognised outcome decodes as Unknown.
func Decode(data []byte) (Event, error) {
	var l line
	if err := json.Unmarshal(data, &l); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if l.Fingerprint == "" {
		return Event{}, errors.New("decode event: missing fingerprint")
	}

	ev := Event{
		Fingerprint: fingerprint.Fingerprint(l.Fingerprint),
		Mode:        l.Mode,
		RunID:       l.RunID,
		At:          l.At,
	}
	switch OutcomeKind(l.Outcome) {
	case OutcomeSuccess:
		ev.Outcome = Success(l.Size, time.Duration(l.DurationMS)*time.Millisecond)
	case OutcomeError:
		ev.Outcome = Failure(l.Detail)
	default:
		ev.Outcome = Unknown()
		ev.Outcome.Detail = l.Detail
	}
	return ev, nil
}
