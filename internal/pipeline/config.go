package pipeline

import (
	"cmp"
	"time"

	"github.com/regenrek/termflow/internal/limits"
)

// BufferConfig configures the scrollback governor.
type BufferConfig struct {
	// MaxLines is the scrollback capacity ceiling.
	MaxLines int
	// TrimThreshold is the fraction of MaxLines at which a trim triggers.
	TrimThreshold float64
	// TrimLines is subtracted from MaxLines to get the post-trim capacity.
	TrimLines int
	// GCInterval is the period of the background scrollback check.
	GCInterval time.Duration
}

// ThrottleConfig configures output throttling.
type ThrottleConfig struct {
	// DebounceInterval is the minimum spacing between drains while throttled.
	DebounceInterval time.Duration
	// MaxChunkCount caps the chunks forwarded per drain while throttled.
	MaxChunkCount int
	// HighVolumeThreshold is the chunk count within one frame (or queue depth)
	// that switches the throttle into throttled mode.
	HighVolumeThreshold int
	// ThrottleCooldown is how long throttled mode lasts after the last trigger.
	ThrottleCooldown time.Duration
}

// MemoryConfig configures the memory monitor.
type MemoryConfig struct {
	MaxMemoryMB      int
	CheckInterval    time.Duration
	WarningThreshold float64
}

// Config is the full pipeline configuration.
type Config struct {
	Buffer   BufferConfig
	Throttle ThrottleConfig
	Memory   MemoryConfig
	// Debug enables verbose drain and trim logging.
	Debug bool
}

func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		MaxLines:      limits.BufferMaxLinesDefault,
		TrimThreshold: limits.BufferTrimThresholdDefault,
		TrimLines:     limits.BufferTrimLinesDefault,
		GCInterval:    limits.BufferGCIntervalDefault,
	}
}

func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		DebounceInterval:    limits.ThrottleDebounceDefault,
		MaxChunkCount:       limits.ThrottleMaxChunkCountDefault,
		HighVolumeThreshold: limits.ThrottleHighVolumeDefault,
		ThrottleCooldown:    limits.ThrottleCooldownDefault,
	}
}

func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxMemoryMB:      limits.MemoryMaxMBDefault,
		CheckInterval:    limits.MemoryCheckIntervalDefault,
		WarningThreshold: limits.MemoryWarningThresholdDefault,
	}
}

// DefaultConfig returns a configuration that passes Validate.
func DefaultConfig() Config {
	return Config{
		Buffer:   DefaultBufferConfig(),
		Throttle: DefaultThrottleConfig(),
		Memory:   DefaultMemoryConfig(),
	}
}

// Validate reports the first out-of-range field. Values are never clamped.
func (c BufferConfig) Validate() error {
	if err := checkRange("buffer.max_lines", c.MaxLines, limits.BufferMaxLinesMin, limits.BufferMaxLinesMax); err != nil {
		return err
	}
	if err := checkRange("buffer.trim_threshold", c.TrimThreshold, limits.BufferTrimThresholdMin, limits.BufferTrimThresholdMax); err != nil {
		return err
	}
	if err := checkRange("buffer.trim_lines", c.TrimLines, limits.BufferTrimLinesMin, limits.BufferTrimLinesMax); err != nil {
		return err
	}
	return checkRange("buffer.gc_interval", c.GCInterval, limits.BufferGCIntervalMin, limits.BufferGCIntervalMax)
}

func (c ThrottleConfig) Validate() error {
	if err := checkRange("throttle.debounce_interval", c.DebounceInterval, limits.ThrottleDebounceMin, limits.ThrottleDebounceMax); err != nil {
		return err
	}
	if err := checkRange("throttle.max_chunk_count", c.MaxChunkCount, limits.ThrottleMaxChunkCountMin, limits.ThrottleMaxChunkCountMax); err != nil {
		return err
	}
	if err := checkRange("throttle.high_volume_threshold", c.HighVolumeThreshold, limits.ThrottleHighVolumeMin, limits.ThrottleHighVolumeMax); err != nil {
		return err
	}
	return checkRange("throttle.throttle_cooldown", c.ThrottleCooldown, limits.ThrottleCooldownMin, limits.ThrottleCooldownMax)
}

func (c MemoryConfig) Validate() error {
	if err := checkRange("memory.max_memory_mb", c.MaxMemoryMB, limits.MemoryMaxMBMin, limits.MemoryMaxMBMax); err != nil {
		return err
	}
	if err := checkRange("memory.check_interval", c.CheckInterval, limits.MemoryCheckIntervalMin, limits.MemoryCheckIntervalMax); err != nil {
		return err
	}
	return checkRange("memory.warning_threshold", c.WarningThreshold, limits.MemoryWarningThresholdMin, limits.MemoryWarningThresholdMax)
}

func (c Config) Validate() error {
	if err := c.Buffer.Validate(); err != nil {
		return err
	}
	if err := c.Throttle.Validate(); err != nil {
		return err
	}
	return c.Memory.Validate()
}

func checkRange[T cmp.Ordered](field string, value, lo, hi T) error {
	// NaN compares false on both sides, so test for "inside" rather than "outside".
	if value >= lo && value <= hi {
		return nil
	}
	return &ConfigError{Field: field, Value: value, Min: lo, Max: hi}
}
