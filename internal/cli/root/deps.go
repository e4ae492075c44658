package root

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/regenrek/termflow/internal/config"
	"github.com/regenrek/termflow/internal/identity"
	"github.com/regenrek/termflow/internal/session"
)

// Dependencies provides external services for CLI handlers.
type Dependencies struct {
	Version string
	AppName string
	// WorkDir anchors relative --cwd values; empty means the process cwd.
	WorkDir string

	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	// Config is the loader resolved at startup; handlers share its cache.
	Config *config.Loader
	// ConfigPath resolves the config file used when --config is not given.
	ConfigPath func() (string, error)
	// StartSession launches a PTY session.
	StartSession func(ctx context.Context, opts session.Options) (*session.Session, error)
}

// DefaultDependencies returns dependencies wired to production services.
func DefaultDependencies(version string) Dependencies {
	return Dependencies{
		Version:      version,
		AppName:      identity.CLIName,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		Stdin:        os.Stdin,
		ConfigPath:   config.DefaultPath,
		StartSession: session.Start,
	}
}

// LoadConfig loads path, falling back to the shared loader's file and then
// to ConfigPath. A path naming the shared loader's file is served from its
// cache. It returns the resolved path alongside the config.
func (d Dependencies) LoadConfig(path string) (config.Config, string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = d.Config.Path()
	}
	if path == "" && d.ConfigPath != nil {
		resolved, err := d.ConfigPath()
		if err != nil {
			return config.Config{}, "", err
		}
		path = resolved
	}
	if path == "" {
		return config.Config{}, "", nil
	}
	if d.Config.Path() != "" && filepath.Clean(path) == filepath.Clean(d.Config.Path()) {
		cfg, err := d.Config.Load()
		return cfg, path, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, path, err
	}
	return cfg, path, nil
}
