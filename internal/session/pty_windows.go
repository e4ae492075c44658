//go:build windows

package session

import "os/exec"

// setupPTYCommand is a no-op on Windows; ConPTY owns console setup.
func setupPTYCommand(_ *exec.Cmd) {}

func setPTYSlaveWinsizeBestEffort(_ any, _, _ int) {}

func signalWINCHForPTY(_ int, _ any) {}
