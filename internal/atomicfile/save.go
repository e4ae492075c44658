// Package atomicfile replaces files through a temp file and rename so readers
// never observe a partially written config.
package atomicfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrExists is returned when Options.Overwrite is false and the target exists.
var ErrExists = errors.New("atomicfile: file exists")

type Options struct {
	// Perm defaults to 0600.
	Perm os.FileMode
	// DirPerm is used for missing parent directories and defaults to 0700.
	DirPerm os.FileMode
	// Overwrite allows replacing an existing file.
	Overwrite bool
}

// Save writes data to path, replacing any existing file.
func Save(path string, data []byte, perm os.FileMode) error {
	return Write(path, data, Options{Perm: perm, Overwrite: true})
}

// Write stages data in a sibling temp file and renames it over path.
func Write(path string, data []byte, opts Options) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("atomicfile: path is required")
	}
	if opts.Perm == 0 {
		opts.Perm = 0o600
	}
	if opts.DirPerm == 0 {
		opts.DirPerm = 0o700
	}
	if !opts.Overwrite {
		if err := ensureAbsent(path); err != nil {
			return err
		}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, opts.DirPerm); err != nil {
		return fmt.Errorf("atomicfile: create dir: %w", err)
	}
	name, err := stage(dir, filepath.Base(path), data, opts.Perm)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(name)
		}
	}()
	if !opts.Overwrite {
		// Link fails when path appeared after the first check.
		if err := os.Link(name, path); err == nil {
			committed = true
			_ = os.Remove(name)
			return nil
		} else if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	if err := replace(name, path); err != nil {
		return err
	}
	committed = true
	_ = os.Chmod(path, opts.Perm)
	return nil
}

func ensureAbsent(path string) error {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrExists, path)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("atomicfile: stat target: %w", err)
	}
}

func stage(dir, base string, data []byte, perm os.FileMode) (string, error) {
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("atomicfile: create temp: %w", err)
	}
	name := tmp.Name()
	fail := func(op string, err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("atomicfile: %s temp: %w", op, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail("chmod", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("atomicfile: close temp: %w", err)
	}
	return name, nil
}

// replace renames src over dst. Windows refuses to rename onto an existing
// file, so the target is removed and the rename retried once.
func replace(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if removeErr := os.Remove(dst); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
		return fmt.Errorf("atomicfile: replace file: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("atomicfile: replace file: %w", err)
	}
	return nil
}
