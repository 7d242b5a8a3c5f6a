package forwarder

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUpstreamUnavailable indicates the backend could not be reached or
	// stopped responding (refused, timed out, TLS failure, reset).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamCancelled indicates the inbound client went away before the
	// upstream exchange completed.
	ErrUpstreamCancelled = errors.New("upstream call cancelled")
)

// Error is a failed exchange with a backend.
type Error struct {
	Op     string // "build", "send" or "read_body"
	Target string
	Kind   error // ErrUpstreamUnavailable or ErrUpstreamCancelled
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("forward [%s] target=%s: %v: %v", e.Op, e.Target, e.Kind, e.Cause)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// Timeout reports whether the failure was a deadline rather than a refusal.
func (e *Error) Timeout() bool {
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Cause, &netErr) && netErr.Timeout()
}

// Classify wraps an upstream I/O failure, attributing it to the client when
// ctx (the inbound request context) has already been cancelled.
func Classify(ctx context.Context, op, target string, err error) *Error {
	kind := ErrUpstreamUnavailable
	if ctx.Err() != nil {
		kind = ErrUpstreamCancelled
	}

	return &Error{
		Op:     op,
		Target: target,
		Kind:   kind,
		Cause:  err,
	}
}

// IsCancelled reports whether err stems from the inbound client leaving.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrUpstreamCancelled)
}

// IsTimeout reports whether err is an upstream deadline.
func IsTimeout(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Timeout()
}
