package session

import "errors"

// ErrClosed indicates the session can no longer accept input.
var ErrClosed = errors.New("session closed")

// ClosedReason describes why a session stopped accepting input.
type ClosedReason int32

const (
	ClosedUnknown ClosedReason = iota
	ClosedProcessExited
	ClosedPTYClosed
	ClosedByCaller
)

// ClosedError reports a closed session without exposing low-level I/O details.
type ClosedError struct {
	Reason ClosedReason
	Cause  error
}

func (e *ClosedError) Error() string {
	switch e.Reason {
	case ClosedProcessExited:
		return "session closed (process exited)"
	case ClosedPTYClosed:
		return "session closed (pty disconnected)"
	default:
		return "session closed"
	}
}

func (e *ClosedError) Unwrap() error { return e.Cause }

func (e *ClosedError) Is(target error) bool { return target == ErrClosed }
