// Package configcmd implements `termflow config ...`.
package configcmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/regenrek/termflow/internal/atomicfile"
	"github.com/regenrek/termflow/internal/cli/output"
	"github.com/regenrek/termflow/internal/cli/root"
	"github.com/regenrek/termflow/internal/config"
)

const fileHeader = "# termflow configuration. Unset keys use built-in defaults.\n"

// Register registers the config handlers.
func Register(reg *root.Registry) {
	reg.Register("config.init", runInit)
	reg.Register("config.defaults", runDefaults)
	reg.Register("config.validate", runValidate)
	reg.Register("config.path", runPath)
}

func runInit(ctx root.CommandContext) error {
	start := time.Now()
	path, err := targetPath(ctx)
	if err != nil {
		return err
	}
	format, err := config.FormatFromPath(path)
	if err != nil {
		return err
	}
	overwrite := ctx.Cmd.Bool("force") || ctx.Yes
	if _, err := os.Stat(path); err == nil && !overwrite {
		ok, err := root.PromptConfirm(ctx.Stdin, ctx.ErrOut, fmt.Sprintf("Overwrite %s?", path))
		if err != nil {
			return fmt.Errorf("config: %s: %w (use --force to overwrite): %w", path, atomicfile.ErrExists, err)
		}
		if !ok {
			return fmt.Errorf("config: %s: %w (use --force to overwrite)", path, atomicfile.ErrExists)
		}
		overwrite = true
	}
	data, err := config.Encode(config.Defaults(), format)
	if err != nil {
		return err
	}
	err = atomicfile.Write(path, append([]byte(fileHeader), data...), atomicfile.Options{Perm: 0o600, Overwrite: overwrite})
	if errors.Is(err, atomicfile.ErrExists) {
		return fmt.Errorf("config: %w (use --force to overwrite)", err)
	}
	if err != nil {
		return err
	}
	if ctx.JSON {
		meta := output.WithDuration(output.NewMeta(ctx.Spec.ID, ctx.Deps.Version), start)
		return output.WriteSuccess(ctx.Out, meta, output.ConfigResult{Path: path, Status: "written"})
	}
	_, err = fmt.Fprintf(ctx.Out, "wrote %s\n", path)
	return err
}

func runDefaults(ctx root.CommandContext) error {
	format := config.Format(strings.TrimSpace(ctx.Cmd.String("format")))
	if format == "" {
		format = config.FormatYAML
	}
	data, err := config.Encode(config.Defaults(), format)
	if err != nil {
		return err
	}
	_, err = ctx.Out.Write(data)
	return err
}

func runValidate(ctx root.CommandContext) error {
	start := time.Now()
	path, err := targetPath(ctx)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: %s: %w", path, fs.ErrNotExist)
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if _, _, err := ctx.Deps.LoadConfig(path); err != nil {
		return err
	}
	if ctx.JSON {
		meta := output.WithDuration(output.NewMeta(ctx.Spec.ID, ctx.Deps.Version), start)
		return output.WriteSuccess(ctx.Out, meta, output.ConfigResult{Path: path, Status: "ok"})
	}
	_, err = fmt.Fprintf(ctx.Out, "%s: ok\n", path)
	return err
}

func runPath(ctx root.CommandContext) error {
	path, err := defaultPath(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.Out, path)
	return err
}

func targetPath(ctx root.CommandContext) (string, error) {
	if len(ctx.Args) > 0 {
		if path := strings.TrimSpace(ctx.Args[0]); path != "" {
			return path, nil
		}
	}
	return defaultPath(ctx)
}

func defaultPath(ctx root.CommandContext) (string, error) {
	if ctx.Deps.ConfigPath == nil {
		return "", errors.New("config: no default path available")
	}
	return ctx.Deps.ConfigPath()
}
