package limits

import "time"

// Buffer governor bounds.
const (
	BufferMaxLinesMin     = 1_000
	BufferMaxLinesMax     = 100_000
	BufferMaxLinesDefault = 10_000

	BufferTrimThresholdMin     = 0.7
	BufferTrimThresholdMax     = 0.95
	BufferTrimThresholdDefault = 0.8

	BufferTrimLinesMin     = 100
	BufferTrimLinesMax     = 5_000
	BufferTrimLinesDefault = 1_000

	BufferGCIntervalMin     = 5 * time.Second
	BufferGCIntervalMax     = 60 * time.Second
	BufferGCIntervalDefault = 30 * time.Second
)

// Output throttle bounds. The default debounce matches a 60Hz frame.
const (
	ThrottleDebounceMin     = time.Millisecond
	ThrottleDebounceMax     = time.Second
	ThrottleDebounceDefault = 16 * time.Millisecond

	ThrottleMaxChunkCountMin     = 100
	ThrottleMaxChunkCountMax     = 10_000
	ThrottleMaxChunkCountDefault = 1_000

	ThrottleHighVolumeMin     = 10
	ThrottleHighVolumeMax     = 1_000
	ThrottleHighVolumeDefault = 100

	ThrottleCooldownMin     = 50 * time.Millisecond
	ThrottleCooldownMax     = 500 * time.Millisecond
	ThrottleCooldownDefault = 100 * time.Millisecond
)

// Memory monitor bounds.
const (
	MemoryMaxMBMin     = 10
	MemoryMaxMBMax     = 500
	MemoryMaxMBDefault = 100

	MemoryCheckIntervalMin     = time.Second
	MemoryCheckIntervalMax     = 30 * time.Second
	MemoryCheckIntervalDefault = 5 * time.Second

	MemoryWarningThresholdMin     = 0.7
	MemoryWarningThresholdMax     = 0.95
	MemoryWarningThresholdDefault = 0.8
)

// Memory estimate heuristic. The estimate is approximate by construction:
// it tracks scrollback growth, not exact heap usage.
const (
	MemoryBytesPerCell       = 16
	MemorySessionOverheadMB  = 2.0
	MemoryHostSignalFraction = 0.25
)

// Stress thresholds for Pipeline.UnderStress.
const (
	StressQueuedChunks  = 50
	StressDroppedFrames = 100
	StressMemoryShare   = 0.8
)

// PayloadInspectLimit bounds how many payload bytes are hashed when a chunk is
// logged in redacted form.
const PayloadInspectLimit = 4096

// OpportunisticTrimRate is the per-write probability of an inline scrollback
// check, bounding trim staleness between governor ticks.
const OpportunisticTrimRate = 0.01
