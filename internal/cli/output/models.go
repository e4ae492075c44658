package output

import (
	"time"

	"github.com/regenrek/termflow/internal/pipeline"
)

// PipelineMetrics is the JSON form of a pipeline snapshot.
type PipelineMetrics struct {
	BufferLines   int        `json:"buffer_lines"`
	MemoryUsageMB float64    `json:"memory_usage_mb"`
	Throttled     bool       `json:"throttled"`
	LastTrim      *time.Time `json:"last_trim,omitempty"`
	QueuedChunks  int        `json:"queued_chunks"`
	QueuedBytes   int        `json:"queued_bytes"`
	DroppedFrames uint64     `json:"dropped_frames"`
	Trims         uint64     `json:"trims"`
	Warnings      uint64     `json:"memory_warnings"`
	UnderStress   bool       `json:"under_stress"`
}

func NewPipelineMetrics(s pipeline.Snapshot, underStress bool) PipelineMetrics {
	m := PipelineMetrics{
		BufferLines:   s.BufferLines,
		MemoryUsageMB: s.MemoryUsageMB,
		Throttled:     s.Throttled,
		QueuedChunks:  s.QueuedCount,
		QueuedBytes:   s.QueuedBytes,
		DroppedFrames: s.DroppedFrames,
		Trims:         s.Trims,
		Warnings:      s.Warnings,
		UnderStress:   underStress,
	}
	if !s.LastGCTime.IsZero() {
		last := s.LastGCTime.UTC()
		m.LastTrim = &last
	}
	return m
}

type RunResult struct {
	SessionID string          `json:"session_id"`
	Command   []string        `json:"command"`
	PID       int             `json:"pid"`
	ExitCode  int             `json:"exit_code"`
	Cols      int             `json:"cols"`
	Rows      int             `json:"rows"`
	Title     string          `json:"title,omitempty"`
	Screen    string          `json:"screen,omitempty"`
	Metrics   PipelineMetrics `json:"metrics"`
}

type BenchResult struct {
	Chunks        int             `json:"chunks"`
	ChunkBytes    int             `json:"chunk_bytes"`
	Writers       int             `json:"writers"`
	WriteDuration time.Duration   `json:"write_duration_ns"`
	WritesPerSec  float64         `json:"writes_per_sec"`
	MBPerSec      float64         `json:"mb_per_sec"`
	ThrottleSeen  bool            `json:"throttle_seen"`
	Scrollback    int             `json:"scrollback_lines"`
	Metrics       PipelineMetrics `json:"metrics"`
}

type ConfigResult struct {
	Path    string `json:"path"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
