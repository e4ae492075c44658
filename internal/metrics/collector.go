// Package metrics exports pipeline snapshots as Prometheus metrics.
package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/regenrek/termflow/internal/pipeline"
)

const namespace = "termflow"

// Source is one pipeline to export, usually a session.
type Source interface {
	ID() string
	Metrics() pipeline.Snapshot
	UnderStress() bool
}

type pipelineSource struct {
	id string
	p  *pipeline.Pipeline
}

func (s pipelineSource) ID() string                 { return s.id }
func (s pipelineSource) Metrics() pipeline.Snapshot { return s.p.Metrics() }
func (s pipelineSource) UnderStress() bool          { return s.p.UnderStress() }

// PipelineSource adapts a pipeline to Source under the given id.
func PipelineSource(id string, p *pipeline.Pipeline) Source {
	return pipelineSource{id: id, p: p}
}

// Collector reads every registered source at scrape time.
type Collector struct {
	mu      sync.RWMutex
	sources map[string]Source

	bufferLines *prometheus.Desc
	memoryMB    *prometheus.Desc
	throttled   *prometheus.Desc
	queued      *prometheus.Desc
	queuedBytes *prometheus.Desc
	dropped     *prometheus.Desc
	trims       *prometheus.Desc
	warnings    *prometheus.Desc
	lastTrim    *prometheus.Desc
	stress      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector() *Collector {
	labels := []string{"session"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		sources:     make(map[string]Source),
		bufferLines: desc("buffer_lines", "Scrollback lines observed at the last governor check."),
		memoryMB:    desc("memory_usage_mb", "Estimated memory held by the session surface, in MB."),
		throttled:   desc("throttled", "1 while the output throttle is in throttled mode."),
		queued:      desc("queued_chunks", "Output chunks waiting to be drained."),
		queuedBytes: desc("queued_bytes", "Bytes waiting to be drained."),
		dropped:     desc("dropped_frames_total", "Drain attempts skipped because the previous drain was too recent."),
		trims:       desc("trims_total", "Scrollback trims performed."),
		warnings:    desc("memory_warnings_total", "Memory checks that exceeded the warning threshold."),
		lastTrim:    desc("last_trim_timestamp_seconds", "Unix time of the last scrollback trim, 0 if none."),
		stress:      desc("under_stress", "1 while the pipeline reports stress."),
	}
}

// Add registers src, replacing any source with the same id.
func (c *Collector) Add(src Source) {
	if c == nil || src == nil {
		return
	}
	c.mu.Lock()
	c.sources[src.ID()] = src
	c.mu.Unlock()
}

func (c *Collector) Remove(id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.sources, id)
	c.mu.Unlock()
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.bufferLines, c.memoryMB, c.throttled, c.queued, c.queuedBytes,
		c.dropped, c.trims, c.warnings, c.lastTrim, c.stress,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	sources := make([]Source, 0, len(c.sources))
	for _, src := range c.sources {
		sources = append(sources, src)
	}
	c.mu.RUnlock()
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID() < sources[j].ID() })

	for _, src := range sources {
		id := src.ID()
		m := src.Metrics()
		lastTrim := 0.0
		if !m.LastGCTime.IsZero() {
			lastTrim = float64(m.LastGCTime.UnixNano()) / 1e9
		}
		gauge := func(d *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, id)
		}
		counter := func(d *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, id)
		}
		gauge(c.bufferLines, float64(m.BufferLines))
		gauge(c.memoryMB, m.MemoryUsageMB)
		gauge(c.throttled, boolValue(m.Throttled))
		gauge(c.queued, float64(m.QueuedCount))
		gauge(c.queuedBytes, float64(m.QueuedBytes))
		counter(c.dropped, float64(m.DroppedFrames))
		counter(c.trims, float64(m.Trims))
		counter(c.warnings, float64(m.Warnings))
		gauge(c.lastTrim, lastTrim)
		gauge(c.stress, boolValue(src.UnderStress()))
	}
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
