package run

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var errNotDir = errors.New("not a directory")

// CwdError reports a --cwd value the child cannot start in.
type CwdError struct {
	Dir string
	Err error
}

func (e *CwdError) Error() string {
	return fmt.Sprintf("run: cwd %s: %v", e.Dir, e.Err)
}

func (e *CwdError) Unwrap() error { return e.Err }

// resolveCwd makes dir absolute against base, or the process cwd when base
// is empty, and checks that it is a directory.
func resolveCwd(dir, base string) (string, error) {
	if !filepath.IsAbs(dir) {
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return "", &CwdError{Dir: dir, Err: err}
			}
			base = wd
		}
		dir = filepath.Join(base, dir)
	}
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return "", &CwdError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return "", &CwdError{Dir: dir, Err: errNotDir}
	}
	return dir, nil
}
