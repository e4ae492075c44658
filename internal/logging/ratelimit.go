package logging

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Limiter lets through at most one event per key and interval, counting the
// events it held back.
type Limiter struct {
	mu      sync.Mutex
	maxKeys int
	now     func() time.Time
	entries map[string]*limiterEntry
}

type limiterEntry struct {
	last       time.Time
	suppressed int
}

// NewLimiter returns a limiter that tracks at most maxKeys keys, evicting the
// least recently emitted ones first.
func NewLimiter(maxKeys int) *Limiter {
	if maxKeys <= 0 {
		maxKeys = 1024
	}
	return &Limiter{maxKeys: maxKeys, now: time.Now, entries: make(map[string]*limiterEntry)}
}

// Allow reports whether an event for key may be emitted now. When it may,
// suppressed is the number of events dropped since the previous emission.
func (l *Limiter) Allow(key string, interval time.Duration) (ok bool, suppressed int) {
	if key == "" || interval <= 0 {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	if e != nil && now.Sub(e.last) < interval {
		e.suppressed++
		return false, 0
	}
	if e == nil {
		l.entries[key] = &limiterEntry{last: now}
		l.evictLocked()
		return true, 0
	}
	suppressed = e.suppressed
	e.last = now
	e.suppressed = 0
	return true, suppressed
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) evictLocked() {
	over := len(l.entries) - l.maxKeys
	if over <= 0 {
		return
	}
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return l.entries[keys[i]].last.Before(l.entries[keys[j]].last) })
	for _, k := range keys[:over] {
		delete(l.entries, k)
	}
}

var defaultLimiter = NewLimiter(1024)

// LogEvery logs through the default logger at most once per interval for key.
// Emitted records carry a "suppressed" attr when earlier events were dropped.
func LogEvery(ctx context.Context, key string, interval time.Duration, level slog.Level, msg string, attrs ...slog.Attr) {
	logEvery(ctx, defaultLimiter, key, interval, level, msg, attrs...)
}

func logEvery(ctx context.Context, l *Limiter, key string, interval time.Duration, level slog.Level, msg string, attrs ...slog.Attr) {
	if !slog.Default().Enabled(ctx, level) {
		return
	}
	ok, suppressed := l.Allow(key, interval)
	if !ok {
		return
	}
	if suppressed > 0 {
		attrs = append(attrs, slog.Int("suppressed", suppressed))
	}
	slog.LogAttrs(ctx, level, msg, attrs...)
}
