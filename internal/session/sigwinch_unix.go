//go:build unix

package session

import (
	"context"
	"log/slog"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/regenrek/termflow/internal/logging"
)

var killProcessGroup = syscall.Kill

var ioctlGetPGRP = func(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCGPGRP)
}

var ioctlSetWinsize = func(fd int, cols, rows int) error {
	return unix.IoctlSetWinsize(fd, unix.TIOCSWINSZ, &unix.Winsize{
		Row: uint16(rows), //nolint:gosec
		Col: uint16(cols), //nolint:gosec
	})
}

type ptyController interface {
	Control(fn func(fd uintptr)) error
}

type ptySlave interface {
	Slave() *os.File
}

// foregroundPGRP returns the process group that owns the terminal. The slave
// end is the controlling terminal, so it is asked first.
func foregroundPGRP(pty any) (int, bool) {
	if pty == nil {
		return 0, false
	}
	if slave, ok := pty.(ptySlave); ok {
		if f := slave.Slave(); f != nil {
			pgrp, err := ioctlGetPGRP(int(f.Fd()))
			if err == nil && pgrp > 0 {
				return pgrp, true
			}
		}
	}

	ctrl, ok := pty.(ptyController)
	if !ok {
		return 0, false
	}
	pgrp := 0
	var ioctlErr error
	if err := ctrl.Control(func(fd uintptr) {
		pgrp, ioctlErr = ioctlGetPGRP(int(fd))
	}); err != nil || ioctlErr != nil {
		return 0, false
	}
	if pgrp <= 0 {
		return 0, false
	}
	return pgrp, true
}

func signalWINCHForPTY(pid int, pty any) {
	if pid <= 0 {
		return
	}
	target := pid
	if pgrp, ok := foregroundPGRP(pty); ok {
		target = pgrp
	}
	logging.LogEvery(
		context.Background(),
		"session.winch",
		2*time.Second,
		slog.LevelDebug,
		"session: SIGWINCH sent",
		slog.Int("pgrp", target),
		slog.Int("pid", pid),
	)
	_ = killProcessGroup(-target, syscall.SIGWINCH)
}

func setPTYSlaveWinsizeBestEffort(pty any, cols, rows int) {
	if cols <= 0 || rows <= 0 || pty == nil {
		return
	}
	slave, ok := pty.(ptySlave)
	if !ok {
		return
	}
	f := slave.Slave()
	if f == nil {
		return
	}
	if err := ioctlSetWinsize(int(f.Fd()), cols, rows); err != nil {
		logging.LogEvery(
			context.Background(),
			"session.pty.resize.slave",
			2*time.Second,
			slog.LevelDebug,
			"session: pty slave winsize set failed",
			slog.Any("err", err),
			slog.Int("cols", cols),
			slog.Int("rows", rows),
		)
	}
}
