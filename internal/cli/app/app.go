// Package app assembles the termflow command line.
package app

import (
	"fmt"

	"github.com/regenrek/termflow/internal/cli/bench"
	"github.com/regenrek/termflow/internal/cli/configcmd"
	"github.com/regenrek/termflow/internal/cli/root"
	"github.com/regenrek/termflow/internal/cli/run"
	"github.com/regenrek/termflow/internal/cli/spec"
	"github.com/regenrek/termflow/internal/cli/version"
)

var registrars = []func(*root.Registry){
	run.Register,
	bench.Register,
	configcmd.Register,
	version.Register,
}

// NewRunner builds the runner for the embedded command tree.
func NewRunner(deps root.Dependencies) (*root.Runner, error) {
	specDoc, err := spec.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("cli: %w", err)
	}
	return root.NewRunner(specDoc, deps, Registry())
}

// Registry returns a registry with every termflow handler bound.
func Registry() *root.Registry {
	reg := root.NewRegistry()
	for _, register := range registrars {
		register(reg)
	}
	return reg
}
