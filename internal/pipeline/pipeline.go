package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/regenrek/termflow/internal/limits"
	"github.com/regenrek/termflow/internal/logging"
)

// Snapshot merges the metrics of all pipeline components.
type Snapshot struct {
	BufferLines   int
	MemoryUsageMB float64
	Throttled     bool
	LastGCTime    time.Time
	QueuedCount   int
	QueuedBytes   int
	DroppedFrames uint64
	Trims         uint64
	Warnings      uint64
}

// Pipeline owns one surface and the throttle, governor and memory monitor
// serving it. Memory warnings trigger an immediate scrollback check.
type Pipeline struct {
	cfg        Config
	surface    Surface
	throttle   *Throttle
	governor   *Governor
	monitor    *MemoryMonitor
	sampleTrim func() bool

	disposed    atomic.Bool
	disposeOnce sync.Once
}

// New validates cfg, applies MaxLines as the surface capacity and starts the
// periodic scrollback and memory checks.
func New(surface Surface, cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if surface == nil {
		return nil, ErrNilSurface
	}
	if cfg.Debug {
		opts = append(opts[:len(opts):len(opts)], WithDebug(true))
	}
	o := buildOptions(opts)

	throttle, err := NewThrottle(cfg.Throttle, surface, opts...)
	if err != nil {
		return nil, err
	}
	governor, err := NewGovernor(cfg.Buffer, surface, opts...)
	if err != nil {
		return nil, err
	}
	monitor, err := NewMemoryMonitor(cfg.Memory, surface, opts...)
	if err != nil {
		return nil, err
	}
	if err := surfaceCall(func() { surface.SetCapacity(cfg.Buffer.MaxLines) }); err != nil {
		slog.Warn("pipeline: set initial capacity failed", slog.Any("err", err))
	}

	p := &Pipeline{
		cfg:        cfg,
		surface:    surface,
		throttle:   throttle,
		governor:   governor,
		monitor:    monitor,
		sampleTrim: o.sampleTrim,
	}
	governor.Start()
	monitor.Start(p.onMemoryWarning)
	return p, nil
}

// Write forwards chunk to the throttle. Writes after Dispose are dropped.
func (p *Pipeline) Write(chunk []byte) {
	if p == nil || p.disposed.Load() {
		return
	}
	p.throttle.Write(chunk)
	if p.sampleTrim() {
		p.governor.CheckAndTrim()
	}
}

// Metrics returns a merged, read-only snapshot.
func (p *Pipeline) Metrics() Snapshot {
	if p == nil {
		return Snapshot{}
	}
	tm := p.throttle.Metrics()
	gm := p.governor.Metrics()
	mm := p.monitor.Metrics()
	return Snapshot{
		BufferLines:   gm.BacklogLines,
		MemoryUsageMB: mm.UsageMB,
		Throttled:     tm.Throttled,
		LastGCTime:    gm.LastTrimTime,
		QueuedCount:   tm.QueuedCount,
		QueuedBytes:   tm.QueuedBytes,
		DroppedFrames: tm.DroppedFrames,
		Trims:         gm.Trims,
		Warnings:      mm.Warnings,
	}
}

// ForceCleanup trims scrollback unconditionally and discards queued output.
func (p *Pipeline) ForceCleanup() {
	if p == nil || p.disposed.Load() {
		return
	}
	p.governor.Trim()
	p.throttle.ClearQueue()
}

// UnderStress reports whether the pipeline is throttled, backed up, close to
// its memory ceiling or repeatedly skipping frames.
func (p *Pipeline) UnderStress() bool {
	if p == nil {
		return false
	}
	m := p.Metrics()
	return m.Throttled ||
		m.QueuedCount > limits.StressQueuedChunks ||
		m.MemoryUsageMB > float64(p.cfg.Memory.MaxMemoryMB)*limits.StressMemoryShare ||
		m.DroppedFrames > limits.StressDroppedFrames
}

// Config returns the validated configuration.
func (p *Pipeline) Config() Config {
	if p == nil {
		return Config{}
	}
	return p.cfg
}

// Dispose stops all scheduled work. Safe to call more than once.
func (p *Pipeline) Dispose() {
	if p == nil {
		return
	}
	p.disposeOnce.Do(func() {
		p.disposed.Store(true)
		// The governor goes first so a warning already in flight cannot trim.
		p.governor.Dispose()
		p.monitor.Dispose()
		p.throttle.Dispose()
	})
}

func (p *Pipeline) onMemoryWarning(usageMB float64) {
	logging.LogEvery(
		context.Background(),
		"pipeline.memory.warning",
		10*time.Second,
		slog.LevelWarn,
		"pipeline: memory estimate over threshold",
		slog.Float64("usage_mb", usageMB),
		slog.Int("max_mb", p.cfg.Memory.MaxMemoryMB),
	)
	p.governor.CheckAndTrim()
}
