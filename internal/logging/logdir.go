package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

var logDirWarnOnce sync.Once

// ensureLogDir creates dir with 0700 or, when it already exists, makes sure it
// is a directory and not readable by others. Directories named by the user
// (explicit) are only warned about; the runtime dir is tightened in place.
func ensureLogDir(dir string, explicit bool) error {
	if dir == "" || dir == "." {
		return nil
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("logging: create log dir: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("logging: stat log dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("logging: log dir %q is not a directory", dir)
	}
	if !shareable(info) {
		return nil
	}
	switch {
	case explicit:
		warnLogDir("log dir is group/world accessible; consider chmod 0700", dir, info)
	case ownedBySelf(info):
		if err := os.Chmod(dir, 0o700); err != nil {
			return fmt.Errorf("logging: chmod log dir: %w", err)
		}
	default:
		warnLogDir("log dir is not owned by current user; permissions unchanged", dir, info)
	}
	return nil
}

func warnLogDir(msg, dir string, info fs.FileInfo) {
	logDirWarnOnce.Do(func() {
		slog.Warn(msg, slog.String("path", dir), slog.String("mode", info.Mode().Perm().String()))
	})
}
