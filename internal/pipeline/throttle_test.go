package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeN(th *Throttle, prefix string, from, to int) {
	for i := from; i <= to; i++ {
		th.Write([]byte(fmt.Sprintf("%s%03d", prefix, i)))
	}
}

func TestThrottleLowVolumeDrainsImmediately(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	th := newTestThrottle(t, surface, clock)

	th.Write([]byte("a"))
	th.Write([]byte("b"))
	th.Write([]byte("c"))

	got := strings.Join(surface.accepted(), "")
	if got != "abc" {
		t.Fatalf("accepted = %q, want %q", got, "abc")
	}
	m := th.Metrics()
	if m.Throttled || m.QueuedCount != 0 || m.DroppedFrames != 0 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", clock.Pending())
	}
}

func TestThrottleEmptyWriteIgnored(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	th := newTestThrottle(t, surface, clock)

	th.Write(nil)
	th.Write([]byte{})
	if len(surface.accepted()) != 0 {
		t.Fatalf("expected nothing forwarded")
	}
}

func TestThrottleEntryAndExit(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	th := newTestThrottle(t, surface, clock)

	writeN(th, "c", 1, 10)
	if th.Metrics().Throttled {
		t.Fatalf("throttled after %d chunks; threshold not exceeded", 10)
	}
	writeN(th, "c", 11, 11)

	m := th.Metrics()
	if !m.Throttled {
		t.Fatalf("expected throttled after exceeding threshold")
	}
	if m.QueuedCount != 1 || m.DroppedFrames != 1 {
		t.Fatalf("unexpected metrics after trigger: %+v", m)
	}

	clock.Advance(16 * time.Millisecond)
	if got := len(surface.accepted()); got != 11 {
		t.Fatalf("accepted %d chunks after follow-up, want 11", got)
	}
	if !th.Metrics().Throttled {
		t.Fatalf("throttle released before cooldown")
	}

	clock.Advance(83 * time.Millisecond)
	if !th.Metrics().Throttled {
		t.Fatalf("throttle released early at 99ms")
	}
	clock.Advance(time.Millisecond)
	if th.Metrics().Throttled {
		t.Fatalf("expected throttle released after cooldown")
	}
}

func TestThrottleCooldownRearmedByTrigger(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	th := newTestThrottle(t, surface, clock)

	writeN(th, "a", 1, 11)
	clock.Advance(50 * time.Millisecond)
	writeN(th, "b", 1, 11)

	clock.Advance(99 * time.Millisecond)
	if !th.Metrics().Throttled {
		t.Fatalf("expected cooldown re-armed by second burst")
	}
	clock.Advance(time.Millisecond)
	if th.Metrics().Throttled {
		t.Fatalf("expected throttle released 100ms after last trigger")
	}
	if got := len(surface.accepted()); got != 22 {
		t.Fatalf("accepted %d chunks, want 22", got)
	}
}

func TestThrottleBoundedDrainAndOrder(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	th := newTestThrottle(t, surface, clock)

	writeN(th, "", 1, 250)
	if got := len(surface.accepted()); got != 10 {
		t.Fatalf("accepted %d chunks before throttling, want 10", got)
	}
	if got := th.Metrics().DroppedFrames; got != 240 {
		t.Fatalf("dropped frames = %d, want 240", got)
	}

	for _, want := range []int{110, 210, 250} {
		clock.Advance(16 * time.Millisecond)
		if got := len(surface.accepted()); got != want {
			t.Fatalf("accepted %d chunks, want %d", got, want)
		}
	}

	for i, chunk := range surface.accepted() {
		if chunk != fmt.Sprintf("%03d", i+1) {
			t.Fatalf("chunk %d = %q, out of order", i, chunk)
		}
	}
	m := th.Metrics()
	if m.QueuedCount != 0 || m.QueuedBytes != 0 {
		t.Fatalf("queue not empty: %+v", m)
	}

	clock.Advance(99 * time.Millisecond)
	if !th.Metrics().Throttled {
		t.Fatalf("expected throttled until 100ms after last deep drain")
	}
	clock.Advance(time.Millisecond)
	if th.Metrics().Throttled {
		t.Fatalf("expected throttle released")
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", clock.Pending())
	}
}

func TestThrottleConcurrentWritersKeepOrder(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	th := newTestThrottle(t, surface, clock)

	const writers = 4
	const perWriter = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				th.Write([]byte(fmt.Sprintf("%d:%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	for i := 0; i < 20 && th.Metrics().QueuedCount > 0; i++ {
		clock.Advance(16 * time.Millisecond)
	}

	chunks := surface.accepted()
	if len(chunks) != writers*perWriter {
		t.Fatalf("accepted %d chunks, want %d", len(chunks), writers*perWriter)
	}
	next := make([]int, writers)
	for _, chunk := range chunks {
		w, i, ok := strings.Cut(chunk, ":")
		if !ok {
			t.Fatalf("bad chunk %q", chunk)
		}
		wi, _ := strconv.Atoi(w)
		ii, _ := strconv.Atoi(i)
		if ii != next[wi] {
			t.Fatalf("writer %d: got chunk %d, want %d", wi, ii, next[wi])
		}
		next[wi]++
	}
}

func TestThrottleCopiesChunkOnEnqueue(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	th := newTestThrottle(t, surface, clock)

	writeN(th, "f", 1, 10)
	buf := []byte("orig")
	th.Write(buf)
	copy(buf, "XXXX")

	clock.Advance(16 * time.Millisecond)
	chunks := surface.accepted()
	if last := chunks[len(chunks)-1]; last != "orig" {
		t.Fatalf("queued chunk aliased caller buffer: %q", last)
	}
}

func TestThrottleSurfaceErrorClearsQueue(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	surface.acceptErr = func(chunk []byte) error {
		if string(chunk) == "c011" {
			return errors.New("surface closed")
		}
		return nil
	}
	th := newTestThrottle(t, surface, clock)

	writeN(th, "c", 1, 20)
	clock.Advance(16 * time.Millisecond)
	if got := th.Metrics().QueuedCount; got != 0 {
		t.Fatalf("queue not cleared after surface error: %d", got)
	}
	if got := len(surface.accepted()); got != 10 {
		t.Fatalf("accepted %d chunks, want 10", got)
	}

	clock.Advance(200 * time.Millisecond)
	th.Write([]byte("after"))
	chunks := surface.accepted()
	if chunks[len(chunks)-1] != "after" {
		t.Fatalf("throttle stopped accepting after surface error")
	}
}

func TestThrottleSurfacePanicRecovered(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	surface.panicOn = "boom"
	th := newTestThrottle(t, surface, clock)

	th.Write([]byte("x"))
	th.Write([]byte("boom"))
	th.Write([]byte("y"))

	if got := strings.Join(surface.accepted(), ","); got != "x,y" {
		t.Fatalf("accepted = %q, want %q", got, "x,y")
	}
}

func TestThrottleClearQueue(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	th := newTestThrottle(t, surface, clock)

	writeN(th, "c", 1, 30)
	th.ClearQueue()

	m := th.Metrics()
	if m.Throttled || m.QueuedCount != 0 {
		t.Fatalf("unexpected metrics after clear: %+v", m)
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected timers cancelled, got %d", clock.Pending())
	}
	clock.Advance(time.Second)
	if got := len(surface.accepted()); got != 10 {
		t.Fatalf("cleared chunks were forwarded: %d", got)
	}
}

func TestThrottleDisposeIdempotent(t *testing.T) {
	clock := newFakeClock()
	surface := newFakeSurface()
	th := newTestThrottle(t, surface, clock)

	writeN(th, "c", 1, 11)
	if clock.Pending() == 0 {
		t.Fatalf("expected pending follow-up and cooldown")
	}
	th.Dispose()
	th.Dispose()
	if clock.Pending() != 0 {
		t.Fatalf("expected no pending timers after dispose, got %d", clock.Pending())
	}

	th.Write([]byte("late"))
	clock.Advance(time.Second)
	if got := len(surface.accepted()); got != 10 {
		t.Fatalf("write after dispose reached surface: %d", got)
	}
	if m := th.Metrics(); m.QueuedCount != 0 {
		t.Fatalf("queue grew after dispose: %+v", m)
	}
}

func TestNewThrottleRejectsInvalidConfig(t *testing.T) {
	cfg := testThrottleConfig()
	cfg.DebounceInterval = 0
	if _, err := NewThrottle(cfg, newFakeSurface()); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewThrottle(testThrottleConfig(), nil); !errors.Is(err, ErrNilSurface) {
		t.Fatalf("expected ErrNilSurface, got %v", err)
	}
}

type discardSink struct{}

func (discardSink) Accept([]byte) error { return nil }

func BenchmarkThrottleWrite(b *testing.B) {
	clock := newFakeClock()
	cfg := DefaultThrottleConfig()
	th, err := NewThrottle(cfg, discardSink{}, WithClock(clock))
	if err != nil {
		b.Fatalf("NewThrottle: %v", err)
	}
	defer th.Dispose()
	chunk := []byte(strings.Repeat("x", 512) + "\n")

	b.SetBytes(int64(len(chunk)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		th.Write(chunk)
		if i%cfg.HighVolumeThreshold == 0 {
			clock.Advance(cfg.DebounceInterval)
		}
	}
}
