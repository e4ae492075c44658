package pipeline

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	seq    int
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	seq     int
	fn      func()
	done    bool
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, when: c.now.Add(d), seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, firing due timers in deadline order.
// Callbacks run without the clock lock so they may schedule new timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.done || t.stopped || t.when.After(target) {
				continue
			}
			if next == nil || t.when.Before(next.when) || (t.when.Equal(next.when) && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.compactLocked()
			c.mu.Unlock()
			return
		}
		if next.when.After(c.now) {
			c.now = next.when
		}
		next.done = true
		c.mu.Unlock()
		next.fn()
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done && !t.stopped {
			n++
		}
	}
	return n
}

func (c *fakeClock) compactLocked() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.done && !t.stopped {
			live = append(live, t)
		}
	}
	c.timers = live
}

type fakeSurface struct {
	mu        sync.Mutex
	chunks    [][]byte
	lines     int
	cols      int
	capacity  int
	discards  int
	acceptErr func([]byte) error
	panicOn   string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{cols: 80}
}

func (s *fakeSurface) Accept(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOn != "" && string(chunk) == s.panicOn {
		panic("surface exploded")
	}
	if s.acceptErr != nil {
		if err := s.acceptErr(chunk); err != nil {
			return err
		}
	}
	s.chunks = append(s.chunks, append([]byte(nil), chunk...))
	return nil
}

func (s *fakeSurface) BacklogLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

func (s *fakeSurface) SetCapacity(lines int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity = lines
}

func (s *fakeSurface) DiscardScrollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discards++
	s.lines = 0
}

func (s *fakeSurface) Cols() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols
}

func (s *fakeSurface) setLines(n int) {
	s.mu.Lock()
	s.lines = n
	s.mu.Unlock()
}

func (s *fakeSurface) accepted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.chunks))
	for i, c := range s.chunks {
		out[i] = string(c)
	}
	return out
}

func (s *fakeSurface) state() (capacity, discards int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity, s.discards
}

type panicBacklog struct{}

func (panicBacklog) BacklogLen() int     { panic("backlog gone") }
func (panicBacklog) SetCapacity(int)     { panic("backlog gone") }
func (panicBacklog) DiscardScrollback()  { panic("backlog gone") }
func (panicBacklog) Cols() int           { panic("backlog gone") }
func (panicBacklog) Accept([]byte) error { panic("backlog gone") }

func testThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		DebounceInterval:    16 * time.Millisecond,
		MaxChunkCount:       100,
		HighVolumeThreshold: 10,
		ThrottleCooldown:    100 * time.Millisecond,
	}
}

func newTestThrottle(t *testing.T, surface *fakeSurface, clock *fakeClock) *Throttle {
	t.Helper()
	th, err := NewThrottle(testThrottleConfig(), surface, WithClock(clock))
	if err != nil {
		t.Fatalf("NewThrottle: %v", err)
	}
	t.Cleanup(th.Dispose)
	return th
}

func neverSample() bool { return false }
