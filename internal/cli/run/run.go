// Package run implements `termflow run`.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/regenrek/termflow/internal/cli/output"
	"github.com/regenrek/termflow/internal/cli/report"
	"github.com/regenrek/termflow/internal/cli/root"
	"github.com/regenrek/termflow/internal/config"
	"github.com/regenrek/termflow/internal/logging"
	"github.com/regenrek/termflow/internal/metrics"
	"github.com/regenrek/termflow/internal/pipeline"
	"github.com/regenrek/termflow/internal/session"
)

const (
	drainTimeout = time.Second
	drainPoll    = 5 * time.Millisecond
	// Exit code used when termflow is interrupted, as a shell would report.
	interruptedExitCode = 130
)

// Register registers the run handler.
func Register(reg *root.Registry) {
	reg.Register("run", runRun)
}

type runFlags struct {
	configPath  string
	command     string
	argv        []string
	cwd         string
	env         []string
	cols        int
	rows        int
	interactive bool
	metricsAddr string
	debug       bool
	noScreen    bool
	quiet       bool
}

func flagsFrom(ctx root.CommandContext) runFlags {
	cmd := ctx.Cmd
	return runFlags{
		configPath:  strings.TrimSpace(cmd.String("config")),
		command:     strings.TrimSpace(cmd.String("command")),
		argv:        ctx.Args,
		cwd:         strings.TrimSpace(cmd.String("cwd")),
		env:         cmd.StringSlice("env"),
		cols:        int(cmd.Int("cols")),
		rows:        int(cmd.Int("rows")),
		interactive: cmd.Bool("interactive"),
		metricsAddr: strings.TrimSpace(cmd.String("metrics-addr")),
		debug:       cmd.Bool("debug"),
		noScreen:    cmd.Bool("no-screen"),
		quiet:       cmd.Bool("quiet"),
	}
}

func runRun(ctx root.CommandContext) error {
	flags := flagsFrom(ctx)
	cfg, _, err := ctx.Deps.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}
	opts, err := sessionOptions(ctx, cfg, flags)
	if err != nil {
		return err
	}
	if ctx.Deps.StartSession == nil {
		return errors.New("run: no session starter configured")
	}

	var stdinFile *os.File
	if flags.interactive {
		f, ok := ctx.Stdin.(*os.File)
		if !ok || !term.IsTerminal(int(f.Fd())) {
			return errors.New("run: --interactive needs a terminal on stdin")
		}
		stdinFile = f
		if opts.Cols == 0 || opts.Rows == 0 {
			if w, h, err := term.GetSize(int(f.Fd())); err == nil {
				opts.Cols, opts.Rows = w, h
			}
		}
		out := ctx.Out
		opts.Handlers.Output = func(chunk []byte) { _, _ = out.Write(chunk) }
	}

	runCtx, cancel := context.WithCancel(ctx.Context)
	defer cancel()

	sess, err := ctx.Deps.StartSession(runCtx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	addr := flags.metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	metricsDone := serveMetrics(runCtx, addr, sess)

	if stdinFile != nil {
		stop, err := attachTerminal(runCtx, stdinFile, sess)
		if err != nil {
			return err
		}
		defer stop()
	}

	code, waitErr := sess.Wait(ctx.Context)
	if waitErr != nil {
		_ = sess.Kill()
		slog.Info("run: interrupted", slog.String("session", sess.ID()))
		cancel()
		<-metricsDone
		return cli.Exit("", interruptedExitCode)
	}
	waitDrained(sess.Pipeline(), drainTimeout)

	res := collectOutcome(sess, opts, code)
	cancel()
	<-metricsDone

	if err := writeResult(ctx, flags, res); err != nil {
		return err
	}
	if code != 0 {
		return cli.Exit("", code)
	}
	return nil
}

func sessionOptions(ctx root.CommandContext, cfg config.Config, flags runFlags) (session.Options, error) {
	pcfg, err := cfg.Pipeline()
	if err != nil {
		return session.Options{}, err
	}
	if flags.debug {
		pcfg.Debug = true
	}
	opts := session.Options{
		Cols:     cfg.Session.Cols,
		Rows:     cfg.Session.Rows,
		Env:      append(append([]string(nil), cfg.Session.Env...), flags.env...),
		Pipeline: pcfg,
	}
	if flags.cols > 0 {
		opts.Cols = flags.cols
	}
	if flags.rows > 0 {
		opts.Rows = flags.rows
	}
	if flags.interactive && flags.cols == 0 && flags.rows == 0 {
		// host terminal size wins over the config default
		opts.Cols, opts.Rows = 0, 0
	}
	if cfg.HostSignal() {
		opts.PipelineOptions = append(opts.PipelineOptions, pipeline.WithHostMemory(pipeline.RuntimeHeapSignal))
	}

	name, args, err := resolveCommand(flags, cfg.Session.Shell)
	if err != nil {
		return session.Options{}, err
	}
	opts.Command, opts.Args = name, args

	if flags.cwd != "" {
		dir, err := resolveCwd(flags.cwd, strings.TrimSpace(ctx.Deps.WorkDir))
		if err != nil {
			return session.Options{}, err
		}
		opts.Dir = dir
	}
	return opts, nil
}

// resolveCommand picks the program from --command, the positional argv, or
// the configured shell, in that order. An empty name means the login shell.
func resolveCommand(flags runFlags, shell string) (string, []string, error) {
	if flags.command != "" {
		parts, err := shellquote.Split(flags.command)
		if err != nil {
			slog.Debug("run: --command rejected", slog.String("command", logging.SanitizeCommand(flags.command)))
			return "", nil, fmt.Errorf("run: parse --command: %w", err)
		}
		if len(parts) == 0 {
			return "", nil, errors.New("run: --command is empty")
		}
		return parts[0], parts[1:], nil
	}
	if len(flags.argv) > 0 {
		return flags.argv[0], flags.argv[1:], nil
	}
	if shell = strings.TrimSpace(shell); shell != "" {
		parts, err := shellquote.Split(shell)
		if err != nil {
			return "", nil, fmt.Errorf("run: parse session.shell: %w", err)
		}
		if len(parts) > 0 {
			return parts[0], parts[1:], nil
		}
	}
	return "", nil, nil
}

func serveMetrics(ctx context.Context, addr string, sess *session.Session) <-chan struct{} {
	done := make(chan struct{})
	if addr == "" {
		close(done)
		return done
	}
	collector := metrics.NewCollector()
	collector.Add(metrics.PipelineSource(sess.ID(), sess.Pipeline()))
	reg := metrics.NewRegistry(collector)
	go func() {
		defer close(done)
		if err := metrics.ListenAndServe(ctx, addr, reg); err != nil {
			slog.Error("run: metrics server failed", slog.Any("err", err))
		}
	}()
	return done
}

func waitDrained(p *pipeline.Pipeline, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for p.Metrics().QueuedCount > 0 && time.Now().Before(deadline) {
		time.Sleep(drainPoll)
	}
}

type outcome struct {
	result output.RunResult
	snap   pipeline.Snapshot
	stress bool
	limits pipeline.Config
}

func collectOutcome(sess *session.Session, opts session.Options, code int) outcome {
	pipe := sess.Pipeline()
	snap := pipe.Metrics()
	stress := pipe.UnderStress()
	cols, rows := sess.Size()
	command := opts.Command
	if command == "" {
		command = "$SHELL"
	}
	return outcome{
		result: output.RunResult{
			SessionID: sess.ID(),
			Command:   append([]string{command}, opts.Args...),
			PID:       sess.PID(),
			ExitCode:  code,
			Cols:      cols,
			Rows:      rows,
			Title:     sess.Surface().Title(),
			Screen:    strings.TrimRight(sess.Surface().Screen(), "\n "),
			Metrics:   output.NewPipelineMetrics(snap, stress),
		},
		snap:   snap,
		stress: stress,
		limits: pipe.Config(),
	}
}

func writeResult(ctx root.CommandContext, flags runFlags, res outcome) error {
	if ctx.JSON {
		meta := output.NewMeta(ctx.Spec.ID, ctx.Deps.Version)
		return output.WriteSuccess(ctx.Out, meta, res.result)
	}
	if flags.quiet {
		return nil
	}
	out := ctx.Out
	if flags.interactive {
		// the screen was already streamed to the terminal
		out = ctx.ErrOut
		_, _ = io.WriteString(out, "\r\n")
	} else if !flags.noScreen && res.result.Screen != "" {
		if _, err := fmt.Fprintln(out, res.result.Screen); err != nil {
			return err
		}
	}
	rows := []report.Row{
		{Label: "command", Value: shellquote.Join(logging.SanitizeArgv(res.result.Command)...)},
		{Label: "exit code", Value: report.Status(res.result.ExitCode == 0, fmt.Sprint(res.result.ExitCode))},
		{Label: "size", Value: fmt.Sprintf("%dx%d", res.result.Cols, res.result.Rows)},
	}
	rows = append(rows, report.PipelineRows(res.snap, res.stress, res.limits)...)
	_, err := fmt.Fprintln(out, report.Render("termflow run", rows))
	return err
}
