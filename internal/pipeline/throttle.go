package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/regenrek/termflow/internal/logging"
)

// ThrottleMetrics is a point-in-time view of the output queue.
type ThrottleMetrics struct {
	Throttled     bool
	QueuedCount   int
	QueuedBytes   int
	DroppedFrames uint64
}

// Throttle queues output chunks and drains them to a Sink in write order.
//
// Low-volume output drains inside Write. When more than HighVolumeThreshold
// chunks arrive within one frame (DebounceInterval), or the queue grows past
// it, the throttle enters throttled mode: drains are spaced at least one frame
// apart and forward at most MaxChunkCount chunks each. Leftover chunks are
// drained by a single pending follow-up timer. Throttled mode ends after
// ThrottleCooldown passes without another trigger.
type Throttle struct {
	cfg   ThrottleConfig
	clock Clock
	sink  Sink
	debug bool

	mu          sync.Mutex
	queue       chunkQueue
	throttled   bool
	lastDrain   time.Time
	frameStart  time.Time
	frameIntake int
	dropped     uint64
	disposed    bool

	cooldown    Timer
	cooldownGen uint64
	followUp    Timer
	followUpGen uint64
}

// NewThrottle validates cfg and returns an idle throttle draining into sink.
func NewThrottle(cfg ThrottleConfig, sink Sink, opts ...Option) (*Throttle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, ErrNilSurface
	}
	o := buildOptions(opts)
	return &Throttle{
		cfg:   cfg,
		clock: o.clock,
		sink:  sink,
		debug: o.debug,
	}, nil
}

// Write enqueues a copy of chunk and attempts a drain. It never returns an
// error; writes after Dispose are dropped silently.
func (t *Throttle) Write(chunk []byte) {
	if t == nil || len(chunk) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return
	}
	now := t.clock.Now()
	if t.frameStart.IsZero() || now.Sub(t.frameStart) >= t.cfg.DebounceInterval {
		t.frameStart = now
		t.frameIntake = 0
	}
	t.frameIntake++
	t.queue.push(bytes.Clone(chunk))
	t.drainLocked(now)
}

// ClearQueue discards pending chunks and leaves throttled mode.
func (t *Throttle) ClearQueue() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.queue.len() > 0 {
		slog.Debug("pipeline: output queue cleared", slog.Int("chunks", t.queue.len()), slog.Int("bytes", t.queue.size()))
	}
	t.queue.reset()
	t.throttled = false
	t.frameIntake = 0
	t.stopCooldownLocked()
	t.stopFollowUpLocked()
}

// Metrics returns the current queue state.
func (t *Throttle) Metrics() ThrottleMetrics {
	if t == nil {
		return ThrottleMetrics{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return ThrottleMetrics{
		Throttled:     t.throttled,
		QueuedCount:   t.queue.len(),
		QueuedBytes:   t.queue.size(),
		DroppedFrames: t.dropped,
	}
}

// Dispose cancels pending timers and drops the queue. Safe to call twice.
func (t *Throttle) Dispose() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return
	}
	t.disposed = true
	t.stopCooldownLocked()
	t.stopFollowUpLocked()
	t.queue.reset()
}

func (t *Throttle) drainLocked(now time.Time) {
	depth := t.queue.len()
	if depth == 0 {
		return
	}
	if depth > t.cfg.HighVolumeThreshold || t.intakeAt(now) > t.cfg.HighVolumeThreshold {
		if !t.throttled {
			t.throttled = true
			t.logTransition("pipeline: output throttled", depth)
		}
		t.armCooldownLocked()
	}

	if t.throttled && !t.lastDrain.IsZero() && now.Sub(t.lastDrain) < t.cfg.DebounceInterval {
		t.dropped++
		t.scheduleFollowUpLocked(now)
		return
	}

	limit := depth
	if t.throttled && limit > t.cfg.MaxChunkCount {
		limit = t.cfg.MaxChunkCount
	}
	for i := 0; i < limit; i++ {
		chunk := t.queue.pop()
		if err := t.forward(chunk); err != nil {
			t.failLocked(err, chunk)
			t.lastDrain = now
			return
		}
	}
	t.lastDrain = now

	if t.debug {
		logging.LogEvery(
			context.Background(),
			"pipeline.drain",
			time.Second,
			slog.LevelDebug,
			"pipeline: drained",
			slog.Int("chunks", limit),
			slog.Int("remaining", t.queue.len()),
			slog.Bool("throttled", t.throttled),
		)
	}
	if t.queue.len() > 0 {
		t.scheduleFollowUpLocked(now)
	}
}

// intakeAt returns the chunks written during the frame containing now.
func (t *Throttle) intakeAt(now time.Time) int {
	if t.frameStart.IsZero() || now.Sub(t.frameStart) >= t.cfg.DebounceInterval {
		return 0
	}
	return t.frameIntake
}

// forward hands one chunk to the sink, converting a panic into an error.
func (t *Throttle) forward(chunk []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: surface panic: %v", r)
		}
	}()
	return t.sink.Accept(chunk)
}

// failLocked drops the queue so a failing surface is not retried with the
// same backlog on every subsequent drain.
func (t *Throttle) failLocked(err error, chunk []byte) {
	logging.LogEvery(
		context.Background(),
		"pipeline.surface.accept",
		2*time.Second,
		slog.LevelError,
		"pipeline: surface rejected output; queue cleared",
		slog.Any("err", err),
		slog.Int("discarded_chunks", t.queue.len()),
		logging.PayloadAttr("chunk", chunk),
	)
	t.queue.reset()
	t.stopFollowUpLocked()
}

func (t *Throttle) scheduleFollowUpLocked(now time.Time) {
	if t.followUp != nil || t.disposed {
		return
	}
	delay := t.cfg.DebounceInterval - now.Sub(t.lastDrain)
	if t.lastDrain.IsZero() || delay < 0 {
		delay = 0
	}
	t.followUpGen++
	gen := t.followUpGen
	t.followUp = t.clock.AfterFunc(delay, func() { t.runFollowUp(gen) })
}

func (t *Throttle) runFollowUp(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || gen != t.followUpGen {
		return
	}
	t.followUp = nil
	t.drainLocked(t.clock.Now())
}

func (t *Throttle) stopFollowUpLocked() {
	t.followUpGen++
	if t.followUp != nil {
		t.followUp.Stop()
		t.followUp = nil
	}
}

func (t *Throttle) armCooldownLocked() {
	t.stopCooldownLocked()
	gen := t.cooldownGen
	t.cooldown = t.clock.AfterFunc(t.cfg.ThrottleCooldown, func() { t.endCooldown(gen) })
}

func (t *Throttle) endCooldown(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || gen != t.cooldownGen {
		return
	}
	t.cooldown = nil
	if !t.throttled {
		return
	}
	t.throttled = false
	t.frameIntake = 0
	t.logTransition("pipeline: output throttle released", t.queue.len())
	if t.queue.len() > 0 {
		t.scheduleFollowUpLocked(t.clock.Now())
	}
}

func (t *Throttle) stopCooldownLocked() {
	t.cooldownGen++
	if t.cooldown != nil {
		t.cooldown.Stop()
		t.cooldown = nil
	}
}

func (t *Throttle) logTransition(msg string, queued int) {
	level := slog.LevelDebug
	if t.debug {
		level = slog.LevelInfo
	}
	logging.LogEvery(
		context.Background(),
		"pipeline.throttle",
		time.Second,
		level,
		msg,
		slog.Int("queued", queued),
		slog.Uint64("dropped_frames", t.dropped),
	)
}
