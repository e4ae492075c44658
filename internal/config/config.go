// Package config loads termflow.yaml / termflow.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/regenrek/termflow/internal/appdirs"
	"github.com/regenrek/termflow/internal/limits"
	"github.com/regenrek/termflow/internal/logging"
	"github.com/regenrek/termflow/internal/pipeline"
)

// DefaultFileName is looked up in the config dir when no path is given.
const DefaultFileName = "termflow.yaml"

type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Config is the on-disk configuration. Unset fields keep their defaults.
type Config struct {
	Debug    *bool          `yaml:"debug,omitempty" toml:"debug,omitempty"`
	Buffer   BufferConfig   `yaml:"buffer,omitempty" toml:"buffer,omitempty"`
	Throttle ThrottleConfig `yaml:"throttle,omitempty" toml:"throttle,omitempty"`
	Memory   MemoryConfig   `yaml:"memory,omitempty" toml:"memory,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty" toml:"session,omitempty"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty" toml:"metrics,omitempty"`
	Logging  logging.Config `yaml:"logging,omitempty" toml:"logging,omitempty"`
}

type BufferConfig struct {
	MaxLines      *int      `yaml:"max_lines,omitempty" toml:"max_lines,omitempty"`
	TrimThreshold *float64  `yaml:"trim_threshold,omitempty" toml:"trim_threshold,omitempty"`
	TrimLines     *int      `yaml:"trim_lines,omitempty" toml:"trim_lines,omitempty"`
	GCInterval    *Duration `yaml:"gc_interval,omitempty" toml:"gc_interval,omitempty"`
}

type ThrottleConfig struct {
	DebounceInterval    *Duration `yaml:"debounce_interval,omitempty" toml:"debounce_interval,omitempty"`
	MaxChunkCount       *int      `yaml:"max_chunk_count,omitempty" toml:"max_chunk_count,omitempty"`
	HighVolumeThreshold *int      `yaml:"high_volume_threshold,omitempty" toml:"high_volume_threshold,omitempty"`
	ThrottleCooldown    *Duration `yaml:"throttle_cooldown,omitempty" toml:"throttle_cooldown,omitempty"`
}

type MemoryConfig struct {
	MaxMemoryMB      *int      `yaml:"max_memory_mb,omitempty" toml:"max_memory_mb,omitempty"`
	CheckInterval    *Duration `yaml:"check_interval,omitempty" toml:"check_interval,omitempty"`
	WarningThreshold *float64  `yaml:"warning_threshold,omitempty" toml:"warning_threshold,omitempty"`
	// HostSignal adds the process heap to the estimate.
	HostSignal *bool `yaml:"host_signal,omitempty" toml:"host_signal,omitempty"`
}

// SessionConfig holds PTY defaults for `termflow run`.
type SessionConfig struct {
	Shell string   `yaml:"shell,omitempty" toml:"shell,omitempty"`
	Cols  int      `yaml:"cols,omitempty" toml:"cols,omitempty"`
	Rows  int      `yaml:"rows,omitempty" toml:"rows,omitempty"`
	Env   []string `yaml:"env,omitempty" toml:"env,omitempty"`
}

type MetricsConfig struct {
	// Addr enables the Prometheus endpoint when set (":9464").
	Addr string `yaml:"addr,omitempty" toml:"addr,omitempty"`
}

// Defaults returns a fully populated configuration.
func Defaults() Config {
	p := pipeline.DefaultConfig()
	return Config{
		Debug: ptr(false),
		Buffer: BufferConfig{
			MaxLines:      ptr(p.Buffer.MaxLines),
			TrimThreshold: ptr(p.Buffer.TrimThreshold),
			TrimLines:     ptr(p.Buffer.TrimLines),
			GCInterval:    ptr(Duration(p.Buffer.GCInterval)),
		},
		Throttle: ThrottleConfig{
			DebounceInterval:    ptr(Duration(p.Throttle.DebounceInterval)),
			MaxChunkCount:       ptr(p.Throttle.MaxChunkCount),
			HighVolumeThreshold: ptr(p.Throttle.HighVolumeThreshold),
			ThrottleCooldown:    ptr(Duration(p.Throttle.ThrottleCooldown)),
		},
		Memory: MemoryConfig{
			MaxMemoryMB:      ptr(p.Memory.MaxMemoryMB),
			CheckInterval:    ptr(Duration(p.Memory.CheckInterval)),
			WarningThreshold: ptr(p.Memory.WarningThreshold),
			HostSignal:       ptr(false),
		},
		Session: SessionConfig{
			Cols: limits.SessionDefaultCols,
			Rows: limits.SessionDefaultRows,
		},
		Logging: logging.DefaultConfig(logging.ModeSession),
	}
}

// Pipeline overlays the file values on the pipeline defaults and validates
// the result. Out-of-range values are reported, never clamped.
func (c Config) Pipeline() (pipeline.Config, error) {
	p := pipeline.DefaultConfig()
	setInt(&p.Buffer.MaxLines, c.Buffer.MaxLines)
	setFloat(&p.Buffer.TrimThreshold, c.Buffer.TrimThreshold)
	setInt(&p.Buffer.TrimLines, c.Buffer.TrimLines)
	setDuration(&p.Buffer.GCInterval, c.Buffer.GCInterval)

	setDuration(&p.Throttle.DebounceInterval, c.Throttle.DebounceInterval)
	setInt(&p.Throttle.MaxChunkCount, c.Throttle.MaxChunkCount)
	setInt(&p.Throttle.HighVolumeThreshold, c.Throttle.HighVolumeThreshold)
	setDuration(&p.Throttle.ThrottleCooldown, c.Throttle.ThrottleCooldown)

	setInt(&p.Memory.MaxMemoryMB, c.Memory.MaxMemoryMB)
	setDuration(&p.Memory.CheckInterval, c.Memory.CheckInterval)
	setFloat(&p.Memory.WarningThreshold, c.Memory.WarningThreshold)

	if c.Debug != nil {
		p.Debug = *c.Debug
	}
	if err := p.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return p, nil
}

// HostSignal reports whether the heap signal feeds the memory estimate.
func (c Config) HostSignal() bool {
	return c.Memory.HostSignal != nil && *c.Memory.HostSignal
}

// Validate checks every section that has range rules.
func (c Config) Validate() error {
	if _, err := c.Pipeline(); err != nil {
		return err
	}
	if _, err := c.Logging.Normalize(); err != nil {
		return fmt.Errorf("config: logging: %w", err)
	}
	if err := limits.ValidateMax(c.Session.Cols, c.Session.Rows); err != nil {
		return fmt.Errorf("config: session: %w", err)
	}
	return nil
}

// DefaultPath returns <config dir>/termflow.yaml.
func DefaultPath() (string, error) {
	dir, err := appdirs.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultFileName), nil
}

// FormatFromPath picks the codec from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("config: unsupported file extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// Decode parses data strictly; unknown keys are errors.
func Decode(data []byte, format Format) (Config, error) {
	var cfg Config
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config: parse yaml: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse toml: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("config: unknown format %q", format)
	}
	return cfg, nil
}

// Encode renders cfg in the given format.
func Encode(cfg Config, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("config: encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("config: encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatTOML:
		data, err := toml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("config: encode toml: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("config: unknown format %q", format)
	}
}

// Load reads and validates path. A missing file yields an empty Config,
// which resolves to the defaults.
func Load(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Config{}, errors.New("config: empty path")
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Decode(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("%w (%s)", err, path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Loader caches the parsed file and reloads when it changes. One Loader is
// shared by the logging bootstrap and the command handlers of a process.
type Loader struct {
	path string

	mu       sync.Mutex
	lastRead fileState
	cached   Config
	reads    int
}

type fileState struct {
	modTime time.Time
	size    int64
}

func NewLoader(path string) *Loader {
	return &Loader{path: strings.TrimSpace(path)}
}

// Path is the file the loader reads; empty when none was resolved.
func (l *Loader) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Reads counts how many times the file was parsed.
func (l *Loader) Reads() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

// Load returns the cached config, reloading if the file's mtime or size changed.
func (l *Loader) Load() (Config, error) {
	if l == nil {
		return Config{}, errors.New("config: nil loader")
	}
	if l.path == "" {
		return Config{}, errors.New("config: empty path")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	info, err := os.Stat(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.cached = Config{}
			l.lastRead = fileState{}
			return l.cached, nil
		}
		return Config{}, fmt.Errorf("config: stat %s: %w", l.path, err)
	}
	state := fileState{modTime: info.ModTime(), size: info.Size()}
	if state == l.lastRead {
		return l.cached, nil
	}
	cfg, err := Load(l.path)
	if err != nil {
		return Config{}, err
	}
	l.reads++
	l.cached = cfg
	l.lastRead = state
	return cfg, nil
}

func ptr[T any](v T) *T { return &v }

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = v.Std()
	}
}
