package gaea

import (
	"errors"
	"fmt"
)

// Terminal conditions. Once observed, no further calls for the account are
// meaningful; the caller is expected to pause the account and stop.
var (
	ErrTokenExpired = errors.New("token expired (401)")
	ErrForbidden    = errors.New("forbidden (403)")
)

// Terminal reports whether err means the account's credential is dead.
func Terminal(err error) bool {
	return errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrForbidden)
}

// TransientError is a retryable failure of one remote call: transport
// errors, non-terminal HTTP statuses, and logically-unsuccessful response
// bodies. The client retries these itself; when attempts are exhausted the
// last one is returned to the caller.
type TransientError struct {
	Op     string // operation name, e.g. "ping"
	Status int    // HTTP status, 0 for transport errors
	Msg    string // server-provided message, if any
	Err    error  // underlying cause, if any
}

func (e *TransientError) Error() string {
	switch {
	case e.Err != nil && e.Status > 0:
		return fmt.Sprintf("%s: http %d: %v", e.Op, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Msg)
	default:
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
}

func (e *TransientError) Unwrap() error { return e.Err }
