package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/regenrek/termflow/internal/limits"
	"github.com/regenrek/termflow/internal/logging"
)

// Resize clamps the size and resizes the surface and the PTY. The PTY side
// is best-effort; the child is told through SIGWINCH on unix.
func (s *Session) Resize(cols, rows int) error {
	if s == nil {
		return &ClosedError{Reason: ClosedUnknown}
	}
	if cols <= 0 || rows <= 0 {
		return nil
	}
	if s.closed.Load() {
		return &ClosedError{Reason: ClosedByCaller}
	}
	cols, rows = limits.Clamp(cols, rows)

	s.sizeMu.Lock()
	if cols == s.cols && rows == s.rows {
		s.sizeMu.Unlock()
		return nil
	}
	s.cols, s.rows = cols, rows
	s.sizeMu.Unlock()

	s.surface.Resize(cols, rows)
	if s.exited.Load() {
		return nil
	}

	pty := s.currentPTY()
	if pty == nil {
		return nil
	}
	if err := pty.Resize(cols, rows); err != nil {
		logging.LogEvery(
			context.Background(),
			"session.pty.resize",
			2*time.Second,
			slog.LevelDebug,
			"session: pty resize failed",
			slog.Any("err", err),
			slog.Int("cols", cols),
			slog.Int("rows", rows),
		)
		return nil
	}
	setPTYSlaveWinsizeBestEffort(pty, cols, rows)
	signalWINCHForPTY(s.PID(), pty)
	return nil
}
