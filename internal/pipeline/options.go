package pipeline

import (
	"math/rand/v2"

	"github.com/regenrek/termflow/internal/limits"
)

// HostMemoryFunc reports host memory in use, in bytes. ok=false means the
// signal is unavailable and the monitor falls back to its heuristic.
type HostMemoryFunc func() (bytes uint64, ok bool)

// Option customizes pipeline components.
type Option func(*options)

type options struct {
	clock      Clock
	debug      bool
	hostMemory HostMemoryFunc
	sampleTrim func() bool
}

func buildOptions(opts []Option) options {
	o := options{
		clock:      SystemClock(),
		debug:      debugFromEnv(),
		sampleTrim: defaultTrimSampler,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.clock == nil {
		o.clock = SystemClock()
	}
	if o.sampleTrim == nil {
		o.sampleTrim = defaultTrimSampler
	}
	return o
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDebug enables verbose drain/trim logging.
func WithDebug(enabled bool) Option {
	return func(o *options) { o.debug = o.debug || enabled }
}

// WithHostMemory enables the host memory signal for the monitor estimate.
func WithHostMemory(fn HostMemoryFunc) Option {
	return func(o *options) { o.hostMemory = fn }
}

// WithTrimSampler decides, per Pipeline.Write, whether to run an inline
// scrollback check.
func WithTrimSampler(fn func() bool) Option {
	return func(o *options) { o.sampleTrim = fn }
}

func defaultTrimSampler() bool {
	return rand.Float64() < limits.OpportunisticTrimRate
}
