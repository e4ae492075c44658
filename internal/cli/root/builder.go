package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/regenrek/termflow/internal/cli/output"
	"github.com/regenrek/termflow/internal/cli/spec"
)

// BuildApp constructs a CLI app from the spec and registry. The app never
// exits the process itself; exit codes travel back as cli.ExitCoder errors.
func BuildApp(specDoc *spec.Spec, deps Dependencies, reg *Registry) (*cli.Command, error) {
	if specDoc == nil {
		return nil, fmt.Errorf("spec is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if err := reg.EnsureHandlers(specDoc); err != nil {
		return nil, err
	}
	app := &cli.Command{
		Name:           specDoc.App.Name,
		Usage:          specDoc.App.Summary,
		Commands:       []*cli.Command{},
		Writer:         deps.Stdout,
		ErrWriter:      deps.Stderr,
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
	app.Before = func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if cmd != nil && cmd.Bool("version") {
			out := deps.Stdout
			if out == nil {
				out = io.Discard
			}
			_, _ = fmt.Fprintf(out, "%s %s\n", specDoc.App.Name, deps.Version)
			return ctx, cli.Exit("", 0)
		}
		return ctx, nil
	}
	globalFlags, err := buildFlags(specDoc.GlobalFlags)
	if err != nil {
		return nil, err
	}
	app.Flags = globalFlags
	for _, cmdSpec := range specDoc.Commands {
		cmd, err := buildCommand(cmdSpec, deps, reg)
		if err != nil {
			return nil, err
		}
		app.Commands = append(app.Commands, cmd)
	}
	if strings.TrimSpace(specDoc.App.DefaultCommand) != "" {
		app.Action = func(ctx context.Context, c *cli.Command) error {
			return runDefaultCommand(ctx, specDoc, deps, reg)
		}
	}
	return app, nil
}

func buildCommand(cmdSpec spec.Command, deps Dependencies, reg *Registry) (*cli.Command, error) {
	cmd := &cli.Command{
		Name:        cmdSpec.Name,
		Aliases:     cmdSpec.Aliases,
		Usage:       cmdSpec.Summary,
		Description: strings.TrimSpace(cmdSpec.Description),
		Hidden:      cmdSpec.Hidden,
	}
	flags, err := buildFlags(cmdSpec.Flags)
	if err != nil {
		return nil, fmt.Errorf("flags for %s: %w", cmdSpec.ID, err)
	}
	cmd.Flags = flags
	cmd.ArgsUsage = argsUsage(cmdSpec.Args)
	cmd.Arguments = buildArguments(cmdSpec.Args)
	for _, child := range cmdSpec.Subcommands {
		sub, err := buildCommand(child, deps, reg)
		if err != nil {
			return nil, err
		}
		cmd.Commands = append(cmd.Commands, sub)
	}
	if handler, ok := reg.HandlerFor(cmdSpec.ID); ok {
		cmd.Action = func(ctx context.Context, cliCmd *cli.Command) error {
			return runHandler(ctx, cliCmd, cmdSpec, deps, handler)
		}
	}
	return cmd, nil
}

func runDefaultCommand(ctx context.Context, specDoc *spec.Spec, deps Dependencies, reg *Registry) error {
	cmdSpec := specDoc.FindByID(strings.TrimSpace(specDoc.App.DefaultCommand))
	if cmdSpec == nil {
		return fmt.Errorf("default command %q not found", specDoc.App.DefaultCommand)
	}
	handler, ok := reg.HandlerFor(cmdSpec.ID)
	if !ok {
		return &MissingHandlerError{ID: cmdSpec.ID, Path: specDoc.PathOf(cmdSpec.ID)}
	}
	return runHandler(ctx, &cli.Command{Name: cmdSpec.Name}, *cmdSpec, deps, handler)
}

func runHandler(ctx context.Context, cliCmd *cli.Command, cmdSpec spec.Command, deps Dependencies, handler Handler) error {
	if handler == nil {
		return nil
	}
	commandCtx := CommandContext{
		Context: ctx,
		Args:    positionalArgs(cmdSpec, cliCmd),
		Spec:    cmdSpec,
		Cmd:     cliCmd,
		Deps:    deps,
		JSON:    cliCmd.Bool("json"),
		Yes:     cliCmd.Bool("yes"),
		Out:     orDiscard(deps.Stdout),
		ErrOut:  orDiscard(deps.Stderr),
		Stdin:   deps.Stdin,
	}
	if err := validateArgs(cmdSpec, cliCmd); err != nil {
		return err
	}
	if err := validateConstraints(cmdSpec, cliCmd); err != nil {
		return err
	}
	if commandCtx.JSON && (cmdSpec.JSON == nil || !cmdSpec.JSON.Supported) {
		return fmt.Errorf("command %s does not support --json", cmdSpec.Name)
	}
	start := time.Now()
	err := handler(commandCtx)
	if err == nil || !commandCtx.JSON {
		return err
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) && exitErr.Error() == "" {
		return err
	}
	meta := output.WithDuration(output.NewMeta(cmdSpec.ID, deps.Version), start)
	_ = output.WriteError(commandCtx.Out, meta, output.ErrorCode(err), err.Error(), nil)
	return cli.Exit("", 1)
}

func argsUsage(args []spec.Arg) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		name := strings.ToUpper(arg.Name)
		if arg.Variadic {
			name += "..."
		}
		if arg.Required {
			parts = append(parts, name)
		} else {
			parts = append(parts, fmt.Sprintf("[%s]", name))
		}
	}
	return strings.Join(parts, " ")
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// ExitCode maps a Run error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
