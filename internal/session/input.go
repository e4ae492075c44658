package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// SendInput writes bytes to the child's PTY.
func (s *Session) SendInput(input []byte) error {
	if s == nil {
		return &ClosedError{Reason: ClosedUnknown}
	}
	if len(input) == 0 {
		return nil
	}
	if s.closed.Load() {
		return &ClosedError{Reason: ClosedByCaller}
	}
	if s.exited.Load() {
		return &ClosedError{Reason: ClosedProcessExited}
	}
	pty := s.currentPTY()
	if pty == nil {
		return &ClosedError{Reason: ClosedPTYClosed}
	}

	s.writeMu.Lock()
	n, err := pty.Write(input)
	s.writeMu.Unlock()
	if err != nil {
		if isPTYClosedWriteError(err) {
			return &ClosedError{Reason: ClosedPTYClosed, Cause: err}
		}
		return fmt.Errorf("session: pty write: %w", err)
	}
	if n != len(input) {
		return fmt.Errorf("session: partial write: wrote %d of %d", n, len(input))
	}
	return nil
}

func isPTYClosedWriteError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, syscall.EIO),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.EBADF),
		errors.Is(err, os.ErrClosed),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}
