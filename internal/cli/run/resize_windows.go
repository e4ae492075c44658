//go:build windows

package run

import "context"

// Windows consoles have no SIGWINCH; the session keeps its start size.
func watchResize(context.Context, func()) func() { return func() {} }
