package logging

import "strings"

type Mode uint8

const (
	ModeCLI Mode = iota + 1
	// ModeSession is used by commands that keep a PTY session alive.
	ModeSession
)

// ModeFromArgs picks ModeSession for long-running commands (run, bench).
func ModeFromArgs(args []string) Mode {
	for _, arg := range args[min(1, len(args)):] {
		arg = strings.ToLower(strings.TrimSpace(arg))
		if arg == "" || strings.HasPrefix(arg, "-") {
			continue
		}
		if arg == "run" || arg == "bench" {
			return ModeSession
		}
		return ModeCLI
	}
	return ModeCLI
}

func (m Mode) String() string {
	switch m {
	case ModeSession:
		return "session"
	default:
		return "cli"
	}
}
