package pipeline

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

func smallMemoryConfig() MemoryConfig {
	return MemoryConfig{MaxMemoryMB: 10, CheckInterval: time.Second, WarningThreshold: 0.8}
}

func TestMemoryMonitorEstimate(t *testing.T) {
	surface := newFakeSurface()
	surface.setLines(1024)
	m, err := NewMemoryMonitor(DefaultMemoryConfig(), surface, WithClock(newFakeClock()))
	if err != nil {
		t.Fatalf("NewMemoryMonitor: %v", err)
	}
	defer m.Dispose()

	// 1024 lines * 80 cols * 16 bytes = 1.25 MiB, plus 2 MB overhead.
	if got := m.Check(); math.Abs(got-3.25) > 1e-9 {
		t.Fatalf("Check() = %v, want 3.25", got)
	}
	if got := m.Metrics().UsageMB; math.Abs(got-3.25) > 1e-9 {
		t.Fatalf("UsageMB = %v", got)
	}
}

func TestMemoryMonitorWarningCallback(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	surface.setLines(100)
	m, err := NewMemoryMonitor(smallMemoryConfig(), surface, WithClock(clock))
	if err != nil {
		t.Fatalf("NewMemoryMonitor: %v", err)
	}
	defer m.Dispose()

	var warnings []float64
	m.Start(func(mb float64) { warnings = append(warnings, mb) })

	clock.Advance(time.Second)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warning for small backlog: %v", warnings)
	}

	surface.setLines(10000)
	clock.Advance(time.Second)
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(warnings))
	}
	if warnings[0] <= 10*0.8 {
		t.Fatalf("warning estimate %v not above threshold", warnings[0])
	}

	clock.Advance(time.Second)
	if len(warnings) != 2 {
		t.Fatalf("expected a warning per check while over threshold, got %d", len(warnings))
	}
	if got := m.Metrics().Warnings; got != 2 {
		t.Fatalf("Warnings = %d, want 2", got)
	}
}

func TestMemoryMonitorStartStopIdempotent(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	surface.setLines(10000)
	m, err := NewMemoryMonitor(smallMemoryConfig(), surface, WithClock(clock))
	if err != nil {
		t.Fatalf("NewMemoryMonitor: %v", err)
	}
	defer m.Dispose()

	first, second := 0, 0
	m.Start(func(float64) { first++ })
	m.Start(func(float64) { second++ })
	if !m.Metrics().Monitoring {
		t.Fatalf("expected monitoring")
	}
	clock.Advance(time.Second)
	if first != 1 || second != 0 {
		t.Fatalf("second Start replaced callback: first=%d second=%d", first, second)
	}

	m.Stop()
	m.Stop()
	if m.Metrics().Monitoring {
		t.Fatalf("expected monitoring stopped")
	}
	clock.Advance(10 * time.Second)
	if first != 1 {
		t.Fatalf("checked after Stop: %d", first)
	}
}

func TestMemoryMonitorHostSignal(t *testing.T) {
	surface := newFakeSurface()
	host := func() (uint64, bool) { return 100 * bytesPerMB, true }
	m, err := NewMemoryMonitor(DefaultMemoryConfig(), surface, WithClock(newFakeClock()), WithHostMemory(host))
	if err != nil {
		t.Fatalf("NewMemoryMonitor: %v", err)
	}
	defer m.Dispose()

	if got := m.Check(); math.Abs(got-25) > 1e-9 {
		t.Fatalf("Check() = %v, want 25", got)
	}

	unavailable := func() (uint64, bool) { return 0, false }
	m2, err := NewMemoryMonitor(DefaultMemoryConfig(), surface, WithHostMemory(unavailable))
	if err != nil {
		t.Fatalf("NewMemoryMonitor: %v", err)
	}
	defer m2.Dispose()
	if got := m2.Check(); math.Abs(got-2) > 1e-9 {
		t.Fatalf("Check() = %v, want heuristic only", got)
	}
}

func TestMemoryMonitorSurfacePanic(t *testing.T) {
	m, err := NewMemoryMonitor(DefaultMemoryConfig(), panicBacklog{})
	if err != nil {
		t.Fatalf("NewMemoryMonitor: %v", err)
	}
	defer m.Dispose()
	if got := m.Check(); got != 0 {
		t.Fatalf("Check() = %v, want last estimate 0", got)
	}
}

func TestMemoryMonitorDispose(t *testing.T) {
	clock := newFakeClock()
	m, err := NewMemoryMonitor(smallMemoryConfig(), newFakeSurface(), WithClock(clock))
	if err != nil {
		t.Fatalf("NewMemoryMonitor: %v", err)
	}
	m.Start(nil)
	m.Dispose()
	m.Dispose()
	if clock.Pending() != 0 {
		t.Fatalf("expected ticker cancelled")
	}
	m.Start(nil)
	if m.Metrics().Monitoring {
		t.Fatalf("Start after Dispose resumed monitoring")
	}
}

func TestMemoryMonitorDisposeWaitsForRunningCallback(t *testing.T) {
	surface := newFakeSurface()
	surface.setLines(10000)
	m, err := NewMemoryMonitor(smallMemoryConfig(), surface, WithClock(newFakeClock()))
	if err != nil {
		t.Fatalf("NewMemoryMonitor: %v", err)
	}
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	m.Start(func(float64) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
	})

	go m.Check()
	<-entered

	disposed := make(chan struct{})
	go func() {
		m.Dispose()
		close(disposed)
	}()
	select {
	case <-disposed:
		t.Fatalf("Dispose returned while a warning callback was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-disposed:
	case <-time.After(5 * time.Second):
		t.Fatalf("Dispose did not return after the callback finished")
	}

	m.Check()
	if got := calls.Load(); got != 1 {
		t.Fatalf("callback ran %d times, want 1", got)
	}
}

func TestNewMemoryMonitorRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultMemoryConfig()
	cfg.WarningThreshold = 2
	if _, err := NewMemoryMonitor(cfg, newFakeSurface()); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRuntimeHeapSignal(t *testing.T) {
	if b, ok := RuntimeHeapSignal(); !ok || b == 0 {
		t.Fatalf("RuntimeHeapSignal() = %d, %v", b, ok)
	}
}
