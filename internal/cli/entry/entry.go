package entry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/regenrek/termflow/internal/cli/app"
	"github.com/regenrek/termflow/internal/cli/root"
	"github.com/regenrek/termflow/internal/config"
	"github.com/regenrek/termflow/internal/identity"
	"github.com/regenrek/termflow/internal/logging"
)

// Run starts the CLI and returns the process exit code.
func Run(args []string, version string) int {
	appName := identity.ResolveBinaryName(args)
	mode := logging.ModeFromArgs(args)
	loader := config.NewLoader(configPathFromArgs(args))
	logCfg := logging.Config{}
	if loader.Path() != "" {
		cfg, err := loader.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: load config: %v\n", appName, err)
			return 1
		}
		logCfg = cfg.Logging
	}
	closeLogger, err := logging.Init(context.Background(), logCfg, logging.InitOptions{
		App:     identity.AppSlug,
		Version: version,
		Mode:    mode,
	})
	if err != nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
		slog.Error("init logging failed; using stderr fallback", "err", err)
	} else if closeLogger != nil {
		defer func() { _ = closeLogger() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := root.DefaultDependencies(version)
	deps.AppName = appName
	deps.Config = loader
	runner, err := app.NewRunner(deps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	if err := runner.Run(ctx, args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			if msg := strings.TrimSpace(exitErr.Error()); msg != "" {
				fmt.Fprintf(os.Stderr, "%s: %s\n", appName, msg)
			}
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	return 0
}

// configPathFromArgs finds the config file that should drive logging: the
// --config flag when given, otherwise the default path.
func configPathFromArgs(args []string) string {
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		switch {
		case arg == "--config" && i+1 < len(args):
			return strings.TrimSpace(args[i+1])
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimSpace(strings.TrimPrefix(arg, "--config="))
		}
	}
	if env := strings.TrimSpace(os.Getenv("TERMFLOW_CONFIG")); env != "" {
		return env
	}
	path, err := config.DefaultPath()
	if err != nil {
		return ""
	}
	return path
}
