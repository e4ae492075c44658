package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/regenrek/termflow/internal/logging"
)

// GovernorMetrics reports the last observed scrollback size.
type GovernorMetrics struct {
	BacklogLines int
	LastTrimTime time.Time
	Trims        uint64
}

// Governor trims surface scrollback once it exceeds
// MaxLines*TrimThreshold. Trimming lowers the capacity to
// MaxLines-TrimLines and discards retained scrollback; the loss of the
// oldest lines is the intended cost of bounding memory.
type Governor struct {
	cfg     BufferConfig
	clock   Clock
	backlog Backlog
	debug   bool

	mu        sync.Mutex
	lastLines int
	lastTrim  time.Time
	trims     uint64
	ticker    *periodic
	disposed  bool
}

func NewGovernor(cfg BufferConfig, backlog Backlog, opts ...Option) (*Governor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backlog == nil {
		return nil, ErrNilSurface
	}
	o := buildOptions(opts)
	return &Governor{cfg: cfg, clock: o.clock, backlog: backlog, debug: o.debug}, nil
}

// Start runs CheckAndTrim every GCInterval until Stop or Dispose.
func (g *Governor) Start() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed || g.ticker != nil {
		return
	}
	g.ticker = startPeriodic(g.clock, g.cfg.GCInterval, func() { g.CheckAndTrim() })
}

func (g *Governor) Stop() {
	if g == nil {
		return
	}
	g.mu.Lock()
	ticker := g.ticker
	g.ticker = nil
	g.mu.Unlock()
	ticker.stop()
}

// CheckAndTrim samples the backlog and trims when it is over threshold. It
// reports whether a trim happened.
func (g *Governor) CheckAndTrim() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return false
	}
	lines, ok := g.sampleLocked()
	if !ok {
		return false
	}
	if float64(lines) <= float64(g.cfg.MaxLines)*g.cfg.TrimThreshold {
		return false
	}
	return g.trimLocked(lines, "threshold")
}

// Trim unconditionally shrinks capacity and discards scrollback.
func (g *Governor) Trim() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return false
	}
	lines, ok := g.sampleLocked()
	if !ok {
		return false
	}
	return g.trimLocked(lines, "forced")
}

func (g *Governor) Metrics() GovernorMetrics {
	if g == nil {
		return GovernorMetrics{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return GovernorMetrics{BacklogLines: g.lastLines, LastTrimTime: g.lastTrim, Trims: g.trims}
}

// Dispose stops the periodic check; later calls are no-ops.
func (g *Governor) Dispose() {
	if g == nil {
		return
	}
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return
	}
	g.disposed = true
	ticker := g.ticker
	g.ticker = nil
	g.mu.Unlock()
	ticker.stop()
}

func (g *Governor) sampleLocked() (int, bool) {
	var lines int
	if err := surfaceCall(func() { lines = g.backlog.BacklogLen() }); err != nil {
		g.logSurfaceError(err)
		return 0, false
	}
	g.lastLines = lines
	return lines, true
}

func (g *Governor) trimLocked(lines int, reason string) bool {
	// trim_lines may reach max_lines; then only the discard applies.
	capacity := g.cfg.MaxLines - g.cfg.TrimLines
	err := surfaceCall(func() {
		if capacity > 0 {
			g.backlog.SetCapacity(capacity)
		}
		g.backlog.DiscardScrollback()
		g.lastLines = g.backlog.BacklogLen()
	})
	if err != nil {
		g.logSurfaceError(err)
		return false
	}
	g.lastTrim = g.clock.Now()
	g.trims++

	level := slog.LevelDebug
	if g.debug {
		level = slog.LevelInfo
	}
	slog.Log(context.Background(), level, "pipeline: scrollback trimmed",
		slog.String("reason", reason),
		slog.Int("lines", lines),
		slog.Int("capacity", capacity),
	)
	return true
}

func (g *Governor) logSurfaceError(err error) {
	logging.LogEvery(
		context.Background(),
		"pipeline.surface.backlog",
		5*time.Second,
		slog.LevelWarn,
		"pipeline: surface unavailable for scrollback check",
		slog.Any("err", err),
	)
}

// surfaceCall runs fn, turning a panic from the surface into an error so
// maintenance ticks cannot crash the host.
func surfaceCall(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: surface panic: %v", r)
		}
	}()
	fn()
	return nil
}
