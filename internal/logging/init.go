package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/regenrek/termflow/internal/appdirs"
)

type InitOptions struct {
	App     string
	Version string
	Mode    Mode
}

// Init installs the default slog logger. File config overrides the mode
// defaults and TERMFLOW_LOG_* variables override both. The returned func
// closes the log file, if any.
func Init(ctx context.Context, cfg Config, opts InitOptions) (func() error, error) {
	if opts.App == "" {
		opts.App = "termflow"
	}
	if opts.Mode == 0 {
		opts.Mode = ModeCLI
	}
	cfg, err := DefaultConfig(opts.Mode).Merge(cfg).WithEnv().Normalize()
	if err != nil {
		return nil, err
	}
	w, closeFn, err := openSink(cfg, opts.App)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     parseLevel(deref(cfg.Level, "info")),
		AddSource: deref(cfg.AddSource, false),
	}
	var h slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if Format(deref(cfg.Format, string(FormatText))) == FormatJSON {
		h = slog.NewJSONHandler(w, handlerOpts)
	}
	logger := slog.New(h).With(
		slog.String("app", opts.App),
		slog.String("version", opts.Version),
		slog.String("mode", opts.Mode.String()),
	)
	slog.SetDefault(logger)
	setIncludePayloads(deref(cfg.IncludePayloads, false))
	logger.DebugContext(ctx, "logging: initialized", slog.String("sink", deref(cfg.Sink, "")))
	return closeFn, nil
}

// Merge returns c with every field set in o taking precedence.
func (c Config) Merge(o Config) Config {
	override(&c.Level, o.Level)
	override(&c.Format, o.Format)
	override(&c.Sink, o.Sink)
	override(&c.File, o.File)
	override(&c.AddSource, o.AddSource)
	override(&c.IncludePayloads, o.IncludePayloads)
	override(&c.MaxSizeMB, o.MaxSizeMB)
	override(&c.MaxBackups, o.MaxBackups)
	override(&c.MaxAgeDays, o.MaxAgeDays)
	override(&c.Compress, o.Compress)
	return c
}

func override[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}

func deref[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func noopClose() error { return nil }

func openSink(cfg Config, app string) (io.Writer, func() error, error) {
	switch sink := Sink(deref(cfg.Sink, string(SinkStderr))); sink {
	case SinkNone:
		return io.Discard, noopClose, nil
	case SinkStderr:
		return os.Stderr, noopClose, nil
	case SinkFile:
		path := strings.TrimSpace(deref(cfg.File, ""))
		explicit := path != ""
		if !explicit {
			dir, err := appdirs.RuntimeDir()
			if err != nil {
				return nil, nil, err
			}
			path = filepath.Join(dir, app+".log")
		}
		if err := ensureLogDir(filepath.Dir(path), explicit); err != nil {
			return nil, nil, err
		}
		rot := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    deref(cfg.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: deref(cfg.MaxBackups, defaultMaxBackups),
			MaxAge:     deref(cfg.MaxAgeDays, defaultMaxAgeDays),
			Compress:   deref(cfg.Compress, true),
		}
		return rot, rot.Close, nil
	default:
		return nil, nil, fmt.Errorf("logging: unknown sink %q", sink)
	}
}
