// Package session runs a child process on a PTY and feeds its output through
// a pipeline into a headless display surface.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	xpty "github.com/charmbracelet/x/xpty"
	"github.com/google/uuid"

	"github.com/regenrek/termflow/internal/limits"
	"github.com/regenrek/termflow/internal/logging"
	"github.com/regenrek/termflow/internal/pipeline"
	"github.com/regenrek/termflow/internal/surface"
)

const (
	readBufferSize   = 32 * 1024
	responseQueueLen = 16
	exitDrainTimeout = 2 * time.Second
)

// Handlers are optional session callbacks.
type Handlers struct {
	// Output observes each raw PTY chunk before it enters the pipeline. The
	// slice is reused once the call returns.
	Output func(chunk []byte)
	// Exit is called once with the child's exit code, after the output read
	// before exit has been handed to the pipeline.
	Exit func(code int)
}

// Options describes how to start a session.
type Options struct {
	// ID defaults to a random UUID.
	ID string

	// Command is executed directly (no shell wrapping). Empty runs the
	// user's shell.
	Command string
	Args    []string
	Dir     string
	Env     []string

	Cols int
	Rows int

	Pipeline        pipeline.Config
	PipelineOptions []pipeline.Option
	Handlers        Handlers
}

// Session is one child process, its PTY, and the pipeline and surface that
// render its output. The session owns both exclusively.
type Session struct {
	id       string
	cmd      *exec.Cmd
	handlers Handlers

	pty     xpty.Pty
	ptyMu   sync.Mutex // guards pty pointer swaps during close
	writeMu sync.Mutex // serializes PTY writes

	surface *surface.Headless
	pipe    *pipeline.Pipeline

	sizeMu sync.Mutex
	cols   int
	rows   int

	responses chan []byte
	readDone  chan struct{}
	done      chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup

	closed   atomic.Bool
	exited   atomic.Bool
	exitCode atomic.Int64
}

// Start validates the pipeline config, then spawns the command on a new PTY.
func Start(ctx context.Context, opts Options) (*Session, error) {
	if err := opts.Pipeline.Validate(); err != nil {
		return nil, err
	}
	cols, rows := limits.Normalize(opts.Cols, opts.Rows)
	if err := limits.ValidateMax(cols, rows); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = uuid.NewString()
	}
	name := strings.TrimSpace(opts.Command)
	args := opts.Args
	if name == "" {
		name = detectShell()
		args = nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:        id,
		handlers:  opts.Handlers,
		cols:      cols,
		rows:      rows,
		responses: make(chan []byte, responseQueueLen),
		readDone:  make(chan struct{}),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	s.surface = surface.NewHeadless(surface.Options{
		Cols:      cols,
		Rows:      rows,
		Capacity:  opts.Pipeline.Buffer.MaxLines,
		Responses: responseWriter{s: s},
	})
	pipe, err := pipeline.New(s.surface, opts.Pipeline, opts.PipelineOptions...)
	if err != nil {
		cancel()
		return nil, err
	}
	s.pipe = pipe

	// #nosec G204 - the command is supplied by the user running termflow.
	cmd := exec.CommandContext(ctx, name, args...)
	if dir := strings.TrimSpace(opts.Dir); dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = buildEnv(id, opts.Env)
	setupPTYCommand(cmd)

	pty, err := xpty.NewPty(cols, rows)
	if err != nil {
		pipe.Dispose()
		cancel()
		return nil, fmt.Errorf("session: create pty: %w", err)
	}
	if err := pty.Start(cmd); err != nil {
		pipe.Dispose()
		cancel()
		_ = pty.Close()
		return nil, fmt.Errorf("session: start process: %w", err)
	}
	s.cmd = cmd
	s.pty = pty

	slog.Info("session: started",
		slog.String("id", id),
		slog.String("command", strings.Join(logging.SanitizeArgv(append([]string{name}, args...)), " ")),
		slog.Int("pid", s.PID()),
		slog.Int("cols", cols),
		slog.Int("rows", rows),
	)

	s.wg.Add(3)
	go s.readLoop()
	go s.responseLoop(ctx)
	go s.waitExit(ctx)
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) PID() int {
	if s == nil || s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *Session) Pipeline() *pipeline.Pipeline { return s.pipe }

func (s *Session) Surface() *surface.Headless { return s.surface }

// Done is closed once the child has exited and its output was read.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Exited() bool { return s.exited.Load() }

// ExitCode is the child's exit code, or -1 when it was killed by a signal.
// Only meaningful after Done.
func (s *Session) ExitCode() int { return int(s.exitCode.Load()) }

func (s *Session) Size() (cols, rows int) {
	s.sizeMu.Lock()
	defer s.sizeMu.Unlock()
	return s.cols, s.rows
}

// Wait blocks until the child exits or ctx ends.
func (s *Session) Wait(ctx context.Context) (int, error) {
	select {
	case <-s.done:
		return s.ExitCode(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Kill terminates the child process. Exit handling proceeds as for a
// normal exit.
func (s *Session) Kill() error {
	if s == nil || s.cmd == nil || s.cmd.Process == nil {
		return &ClosedError{Reason: ClosedUnknown}
	}
	if s.exited.Load() {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("session: kill: %w", err)
	}
	return nil
}

// Close stops the child, releases the PTY, disposes the pipeline and waits
// for the session goroutines. Safe to call more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()

	s.ptyMu.Lock()
	pty := s.pty
	s.pty = nil
	s.ptyMu.Unlock()
	if pty != nil {
		_ = pty.Close()
	}

	s.wg.Wait()
	s.pipe.Dispose()
	_ = s.surface.Close()
	slog.Debug("session: closed", slog.String("id", s.id))
	return nil
}

func (s *Session) currentPTY() xpty.Pty {
	s.ptyMu.Lock()
	defer s.ptyMu.Unlock()
	return s.pty
}

func (s *Session) readLoop() {
	defer s.wg.Done()
	defer close(s.readDone)

	buf := make([]byte, readBufferSize)
	for {
		pty := s.currentPTY()
		if pty == nil {
			return
		}
		n, err := pty.Read(buf)
		if n > 0 {
			if s.handlers.Output != nil {
				s.handlers.Output(buf[:n])
			}
			s.pipe.Write(buf[:n])
		}
		if err != nil {
			// EIO once the slave side is gone; any error ends the session output.
			return
		}
	}
}

func (s *Session) waitExit(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.done)

	_ = xpty.WaitProcess(ctx, s.cmd)
	code := -1
	if s.cmd.ProcessState != nil {
		code = s.cmd.ProcessState.ExitCode()
	}
	s.exitCode.Store(int64(code))
	s.exited.Store(true)

	// The parent keeps a slave handle for winsize ioctls; dropping it lets the
	// read loop hit EOF once the remaining output is consumed.
	if slave, ok := s.currentPTY().(interface{ Slave() *os.File }); ok {
		if f := slave.Slave(); f != nil {
			_ = f.Close()
		}
	}
	select {
	case <-s.readDone:
	case <-time.After(exitDrainTimeout):
		slog.Debug("session: output still open after exit", slog.String("id", s.id))
	}

	slog.Info("session: exited", slog.String("id", s.id), slog.Int("code", code))
	if s.handlers.Exit != nil {
		s.handlers.Exit(code)
	}
}

// responseLoop writes terminal replies (cursor reports, device attributes)
// back to the child outside the surface's write path.
func (s *Session) responseLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-s.responses:
			if err := s.SendInput(data); err != nil && !errors.Is(err, ErrClosed) {
				slog.Debug("session: terminal response dropped", slog.Any("err", err))
			}
		}
	}
}

type responseWriter struct {
	s *Session
}

func (w responseWriter) Write(p []byte) (int, error) {
	select {
	case w.s.responses <- append([]byte(nil), p...):
	default:
		logging.LogEvery(
			context.Background(),
			"session.response.overflow",
			5*time.Second,
			slog.LevelDebug,
			"session: terminal response queue full",
			slog.String("id", w.s.id),
		)
	}
	return len(p), nil
}
