package logging

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type Sink string

const (
	SinkStderr Sink = "stderr"
	SinkFile   Sink = "file"
	SinkNone   Sink = "none"
)

const (
	defaultMaxSizeMB  = 20
	defaultMaxBackups = 5
	defaultMaxAgeDays = 7
)

// EnvPrefix prefixes every environment override, e.g. TERMFLOW_LOG_LEVEL.
const EnvPrefix = "TERMFLOW_LOG_"

// Config is the `logging` section of termflow.yaml. Nil fields fall back to
// the mode defaults.
type Config struct {
	Level           *string `yaml:"level,omitempty" toml:"level,omitempty"`
	Format          *string `yaml:"format,omitempty" toml:"format,omitempty"`
	Sink            *string `yaml:"sink,omitempty" toml:"sink,omitempty"`
	File            *string `yaml:"file,omitempty" toml:"file,omitempty"`
	AddSource       *bool   `yaml:"add_source,omitempty" toml:"add_source,omitempty"`
	IncludePayloads *bool   `yaml:"include_payloads,omitempty" toml:"include_payloads,omitempty"`

	MaxSizeMB  *int  `yaml:"max_size_mb,omitempty" toml:"max_size_mb,omitempty"`
	MaxBackups *int  `yaml:"max_backups,omitempty" toml:"max_backups,omitempty"`
	MaxAgeDays *int  `yaml:"max_age_days,omitempty" toml:"max_age_days,omitempty"`
	Compress   *bool `yaml:"compress,omitempty" toml:"compress,omitempty"`
}

// DefaultConfig keeps one-shot commands quiet on stderr and sends
// long-running sessions to a rotated JSON file.
func DefaultConfig(mode Mode) Config {
	c := Config{
		Level:           ptr("error"),
		Format:          ptr(string(FormatText)),
		Sink:            ptr(string(SinkStderr)),
		AddSource:       ptr(false),
		IncludePayloads: ptr(false),
		MaxSizeMB:       ptr(defaultMaxSizeMB),
		MaxBackups:      ptr(defaultMaxBackups),
		MaxAgeDays:      ptr(defaultMaxAgeDays),
		Compress:        ptr(true),
	}
	if mode == ModeSession {
		c.Level = ptr("info")
		c.Format = ptr(string(FormatJSON))
		c.Sink = ptr(string(SinkFile))
	}
	return c
}

// WithEnv applies TERMFLOW_LOG_* overrides. Malformed numbers are ignored.
func (c Config) WithEnv() Config {
	lookup := func(name string) (string, bool) {
		v := strings.TrimSpace(os.Getenv(EnvPrefix + name))
		return v, v != ""
	}
	for name, dst := range map[string]**string{
		"LEVEL": &c.Level, "FORMAT": &c.Format, "SINK": &c.Sink, "FILE": &c.File,
	} {
		if v, ok := lookup(name); ok {
			*dst = ptr(v)
		}
	}
	for name, dst := range map[string]**bool{
		"ADD_SOURCE": &c.AddSource, "INCLUDE_PAYLOADS": &c.IncludePayloads, "COMPRESS": &c.Compress,
	} {
		if v, ok := lookup(name); ok {
			*dst = ptr(!isFalsy(v))
		}
	}
	for name, dst := range map[string]**int{
		"MAX_SIZE_MB": &c.MaxSizeMB, "MAX_BACKUPS": &c.MaxBackups, "MAX_AGE_DAYS": &c.MaxAgeDays,
	} {
		if v, ok := lookup(name); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = ptr(n)
			}
		}
	}
	return c
}

// Normalize lower-cases enum values, drops blanks, clamps negative rotation
// settings to zero and validates the result.
func (c Config) Normalize() (Config, error) {
	for _, s := range []**string{&c.Level, &c.Format, &c.Sink} {
		if *s != nil {
			v := strings.ToLower(strings.TrimSpace(**s))
			*s = nilIfEmpty(v)
		}
	}
	if c.File != nil {
		c.File = nilIfEmpty(strings.TrimSpace(*c.File))
	}
	for _, n := range []**int{&c.MaxSizeMB, &c.MaxBackups, &c.MaxAgeDays} {
		if *n != nil && **n < 0 {
			*n = ptr(0)
		}
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if c.Level != nil {
		switch *c.Level {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("logging.level: invalid %q", *c.Level)
		}
	}
	if c.Format != nil {
		switch Format(*c.Format) {
		case FormatText, FormatJSON:
		default:
			return fmt.Errorf("logging.format: invalid %q", *c.Format)
		}
	}
	if c.Sink != nil {
		switch Sink(*c.Sink) {
		case SinkStderr, SinkFile, SinkNone:
		default:
			return fmt.Errorf("logging.sink: invalid %q", *c.Sink)
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func nilIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func isFalsy(value string) bool {
	switch strings.ToLower(value) {
	case "0", "false", "no", "off":
		return true
	default:
		return false
	}
}
