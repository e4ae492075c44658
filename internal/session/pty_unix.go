//go:build unix

package session

import (
	"os/exec"
	"syscall"
)

// setupPTYCommand makes the child a session leader with the PTY slave
// (its stdin, fd 0) as controlling terminal.
func setupPTYCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}
}
