// Package appdirs resolves where termflow keeps its config file and logs.
package appdirs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/regenrek/termflow/internal/identity"
)

const (
	// ConfigDirEnv overrides the directory holding termflow.yaml.
	ConfigDirEnv = "TERMFLOW_CONFIG_DIR"
	// RuntimeDirEnv overrides the directory used for logs.
	RuntimeDirEnv = "TERMFLOW_RUNTIME_DIR"
)

// ConfigDir returns the per-user config directory without creating it.
func ConfigDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(ConfigDirEnv)); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("appdirs: resolve config dir: %w", err)
	}
	return filepath.Join(base, identity.AppSlug), nil
}

// RuntimeDir returns the log directory, creating it with 0700 when missing.
// It prefers $XDG_STATE_HOME and falls back to the user cache dir.
func RuntimeDir() (string, error) {
	dir, err := runtimeDirPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("appdirs: create runtime dir: %w", err)
	}
	return dir, nil
}

func runtimeDirPath() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(RuntimeDirEnv)); dir != "" {
		return dir, nil
	}
	if state := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); state != "" && filepath.IsAbs(state) {
		return filepath.Join(state, identity.AppSlug), nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("appdirs: resolve runtime dir: %w", err)
	}
	return filepath.Join(base, identity.AppSlug), nil
}
