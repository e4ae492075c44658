package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/regenrek/termflow/internal/limits"
	"github.com/regenrek/termflow/internal/logging"
)

const bytesPerMB = 1024 * 1024

// MemoryMetrics is the monitor's last estimate.
type MemoryMetrics struct {
	UsageMB    float64
	Monitoring bool
	Warnings   uint64
}

// MemoryMonitor periodically estimates the memory held by the surface and
// reports when the estimate crosses MaxMemoryMB*WarningThreshold. The
// estimate is a heuristic: backlog lines * columns * 16 bytes plus a fixed
// per-session overhead, optionally raised by a share of a host signal.
type MemoryMonitor struct {
	cfg    MemoryConfig
	clock  Clock
	source BacklogSource
	host   HostMemoryFunc

	mu        sync.Mutex
	usageMB   float64
	warnings  uint64
	onWarning func(usageMB float64)
	ticker    *periodic
	disposed  bool

	// held for reading while onWarning runs; Dispose takes it to drain.
	callbacks sync.RWMutex
}

func NewMemoryMonitor(cfg MemoryConfig, source BacklogSource, opts ...Option) (*MemoryMonitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, ErrNilSurface
	}
	o := buildOptions(opts)
	return &MemoryMonitor{cfg: cfg, clock: o.clock, source: source, host: o.hostMemory}, nil
}

// Start begins periodic checks. onWarning may be nil. A second Start while
// running is a no-op.
func (m *MemoryMonitor) Start(onWarning func(usageMB float64)) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || m.ticker != nil {
		return
	}
	m.onWarning = onWarning
	m.ticker = startPeriodic(m.clock, m.cfg.CheckInterval, func() { m.Check() })
}

func (m *MemoryMonitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	ticker := m.ticker
	m.ticker = nil
	m.mu.Unlock()
	ticker.stop()
}

// Check recomputes the estimate, invokes the warning callback when over
// threshold and returns the estimate in MB.
func (m *MemoryMonitor) Check() float64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	if m.disposed {
		usage := m.usageMB
		m.mu.Unlock()
		return usage
	}
	usage, ok := m.estimateLocked()
	if !ok {
		usage = m.usageMB
		m.mu.Unlock()
		return usage
	}
	m.usageMB = usage
	var cb func(float64)
	if usage > float64(m.cfg.MaxMemoryMB)*m.cfg.WarningThreshold {
		m.warnings++
		cb = m.onWarning
	}
	m.mu.Unlock()

	if cb != nil {
		m.callbacks.RLock()
		m.mu.Lock()
		live := !m.disposed
		m.mu.Unlock()
		if live {
			cb(usage)
		}
		m.callbacks.RUnlock()
	}
	return usage
}

func (m *MemoryMonitor) Metrics() MemoryMetrics {
	if m == nil {
		return MemoryMetrics{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemoryMetrics{UsageMB: m.usageMB, Monitoring: m.ticker != nil, Warnings: m.warnings}
}

// Dispose stops monitoring and drops the callback. It returns once no
// warning callback is running, so onWarning must not call Dispose. Safe to
// call twice.
func (m *MemoryMonitor) Dispose() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	m.onWarning = nil
	ticker := m.ticker
	m.ticker = nil
	m.mu.Unlock()
	ticker.stop()
	m.callbacks.Lock()
	m.callbacks.Unlock()
}

func (m *MemoryMonitor) estimateLocked() (float64, bool) {
	var lines, cols int
	err := surfaceCall(func() {
		lines = m.source.BacklogLen()
		cols = m.source.Cols()
	})
	if err != nil {
		logging.LogEvery(
			context.Background(),
			"pipeline.surface.memory",
			5*time.Second,
			slog.LevelWarn,
			"pipeline: surface unavailable for memory check",
			slog.Any("err", err),
		)
		return 0, false
	}
	if lines < 0 {
		lines = 0
	}
	if cols < 0 {
		cols = 0
	}
	usage := float64(lines)*float64(cols)*limits.MemoryBytesPerCell/bytesPerMB + limits.MemorySessionOverheadMB
	if m.host != nil {
		if b, ok := m.host(); ok {
			if hostMB := float64(b) / bytesPerMB * limits.MemoryHostSignalFraction; hostMB > usage {
				usage = hostMB
			}
		}
	}
	return usage, true
}

// RuntimeHeapSignal reports the in-use heap of this process. It is a coarse
// host signal suitable for WithHostMemory.
func RuntimeHeapSignal() (uint64, bool) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse, true
}
