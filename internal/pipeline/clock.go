package pipeline

import (
	"sync"
	"time"
)

// Clock is the time source used for debouncing and periodic maintenance.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback created by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// periodic re-arms a one-shot timer after each run so a slow callback never
// overlaps with the next tick.
type periodic struct {
	mu      sync.Mutex
	clock   Clock
	every   time.Duration
	fn      func()
	timer   Timer
	stopped bool
}

func startPeriodic(clock Clock, every time.Duration, fn func()) *periodic {
	p := &periodic{clock: clock, every: every, fn: fn}
	p.mu.Lock()
	p.timer = clock.AfterFunc(every, p.fire)
	p.mu.Unlock()
	return p
}

func (p *periodic) fire() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.fn()

	p.mu.Lock()
	if !p.stopped {
		p.timer = p.clock.AfterFunc(p.every, p.fire)
	}
	p.mu.Unlock()
}

func (p *periodic) stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
