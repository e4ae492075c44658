package root

import (
	"context"
	"errors"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/regenrek/termflow/internal/cli/spec"
	"github.com/regenrek/termflow/internal/identity"
)

// Runner runs one command tree against a fixed set of dependencies.
type Runner struct {
	doc *spec.Spec
	app *cli.Command
}

func NewRunner(doc *spec.Spec, deps Dependencies, reg *Registry) (*Runner, error) {
	app, err := BuildApp(doc, deps, reg)
	if err != nil {
		return nil, err
	}
	return &Runner{doc: doc, app: app}, nil
}

// Run parses args, where args[0] is the binary, and executes the matching
// handler. Help and --version use the name the binary was invoked as.
func (r *Runner) Run(ctx context.Context, args []string) error {
	if r == nil || r.app == nil {
		return errors.New("cli: runner not built")
	}
	name := identity.ResolveBinaryName(args)
	r.doc.App.Name = name
	r.app.Name = name
	return r.app.Run(ctx, withDefaultCommand(r.doc, args))
}

// withDefaultCommand appends the default command when only the binary was
// given.
func withDefaultCommand(doc *spec.Spec, args []string) []string {
	if doc == nil || len(args) != 1 {
		return args
	}
	def := strings.TrimSpace(doc.App.DefaultCommand)
	if def == "" {
		return args
	}
	return []string{args[0], def}
}
