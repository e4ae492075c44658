package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig matches every configuration validation failure.
var ErrInvalidConfig = errors.New("pipeline: invalid config")

// ErrNilSurface is returned when a component is built without a display surface.
var ErrNilSurface = errors.New("pipeline: surface is required")

// ConfigError reports a single out-of-range configuration field.
type ConfigError struct {
	Field string
	Value any
	Min   any
	Max   any
	// Reason overrides the range message for cross-field checks.
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("pipeline: %s=%v: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("pipeline: %s=%v out of range [%v, %v]", e.Field, e.Value, e.Min, e.Max)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }
