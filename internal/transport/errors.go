package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call.
type Kind string

const (
	// KindNetwork means no response was received.
	KindNetwork Kind = "network"
	// KindRateLimited means the service refused the call for exceeding its
	// usage policy. Callers must stop issuing requests.
	KindRateLimited Kind = "rate_limited"
	// KindServer means the service failed to answer the call.
	KindServer Kind = "server"
	// KindClient means the service rejected the call as invalid.
	KindClient Kind = "client"
)

// Error is a failed call to the statistics API.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" %d", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// RateLimited reports whether the call was refused for rate limiting. The
// engine stops a run when it sees an error that reports true.
func (e *Error) RateLimited() bool { return e.Kind == KindRateLimited }

// KindOf returns the kind of a transport error, or "" if err is not one.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// IsRateLimited reports whether err is a rate-limited transport error.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }
