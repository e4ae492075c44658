// Package bench implements `termflow bench`: a synthetic output firehose
// pushed through the pipeline into a headless surface.
package bench

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/regenrek/termflow/internal/cli/output"
	"github.com/regenrek/termflow/internal/cli/report"
	"github.com/regenrek/termflow/internal/cli/root"
	"github.com/regenrek/termflow/internal/limits"
	"github.com/regenrek/termflow/internal/pipeline"
	"github.com/regenrek/termflow/internal/surface"
)

const (
	maxChunks     = 10_000_000
	maxChunkBytes = 1 << 20
	maxWriters    = 64
	sampleEvery   = 64
	pollInterval  = 5 * time.Millisecond
)

// Register registers the bench handler.
func Register(reg *root.Registry) {
	reg.Register("bench", runBench)
}

// Options control one bench run.
type Options struct {
	Chunks     int
	ChunkBytes int
	Writers    int
	Settle     time.Duration
	Cols       int
	Rows       int
	Pipeline   pipeline.Config
	PipeOpts   []pipeline.Option
}

// Result is what Run measured.
type Result struct {
	Options       Options
	WriteDuration time.Duration
	ThrottleSeen  bool
	Snapshot      pipeline.Snapshot
	UnderStress   bool
	// Scrollback is read from the surface after settling; Snapshot.BufferLines
	// is the governor's last sample.
	Scrollback int
}

func runBench(ctx root.CommandContext) error {
	start := time.Now()
	cfg, _, err := ctx.Deps.LoadConfig(strings.TrimSpace(ctx.Cmd.String("config")))
	if err != nil {
		return err
	}
	pcfg, err := cfg.Pipeline()
	if err != nil {
		return err
	}
	var popts []pipeline.Option
	if cfg.HostSignal() {
		popts = append(popts, pipeline.WithHostMemory(pipeline.RuntimeHeapSignal))
	}
	res, err := Run(ctx.Context, Options{
		Chunks:     int(ctx.Cmd.Int("chunks")),
		ChunkBytes: int(ctx.Cmd.Int("size")),
		Writers:    int(ctx.Cmd.Int("writers")),
		Settle:     ctx.Cmd.Duration("settle"),
		Cols:       cfg.Session.Cols,
		Rows:       cfg.Session.Rows,
		Pipeline:   pcfg,
		PipeOpts:   popts,
	})
	if err != nil {
		return err
	}
	if ctx.JSON {
		meta := output.WithDuration(output.NewMeta(ctx.Spec.ID, ctx.Deps.Version), start)
		return output.WriteSuccess(ctx.Out, meta, res.JSON())
	}
	_, err = fmt.Fprintln(ctx.Out, res.Render())
	return err
}

// Run writes opts.Chunks chunks split across opts.Writers goroutines, then
// waits up to opts.Settle for the queue to drain before sampling metrics.
func Run(ctx context.Context, opts Options) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	cols, rows := limits.Normalize(opts.Cols, opts.Rows)
	surf := surface.NewHeadless(surface.Options{Cols: cols, Rows: rows, Capacity: opts.Pipeline.Buffer.MaxLines})
	defer func() { _ = surf.Close() }()
	pipe, err := pipeline.New(surf, opts.Pipeline, opts.PipeOpts...)
	if err != nil {
		return Result{}, err
	}
	defer pipe.Dispose()

	payload := synthPayload(opts.ChunkBytes, cols)
	var (
		wg           sync.WaitGroup
		throttleMu   sync.Mutex
		throttleSeen bool
	)
	begin := time.Now()
	for w := range opts.Writers {
		count := opts.Chunks / opts.Writers
		if w < opts.Chunks%opts.Writers {
			count++
		}
		wg.Add(1)
		go func(count int) {
			defer wg.Done()
			seen := false
			for i := 0; i < count; i++ {
				if i%sampleEvery == 0 {
					if ctx.Err() != nil {
						return
					}
					seen = seen || pipe.Metrics().Throttled
				}
				pipe.Write(payload)
			}
			if seen {
				throttleMu.Lock()
				throttleSeen = true
				throttleMu.Unlock()
			}
		}(count)
	}
	wg.Wait()
	elapsed := time.Since(begin)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	deadline := time.Now().Add(opts.Settle)
	for pipe.Metrics().QueuedCount > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	snap := pipe.Metrics()
	slog.Info("bench: done",
		slog.Int("chunks", opts.Chunks),
		slog.Duration("elapsed", elapsed),
		slog.Uint64("dropped_frames", snap.DroppedFrames),
		slog.Int("queued", snap.QueuedCount),
	)
	return Result{
		Options:       opts,
		WriteDuration: elapsed,
		ThrottleSeen:  throttleSeen || snap.Throttled,
		Snapshot:      snap,
		UnderStress:   pipe.UnderStress(),
		Scrollback:    surf.BacklogLen(),
	}, nil
}

func (o Options) validate() error {
	switch {
	case o.Chunks < 1 || o.Chunks > maxChunks:
		return fmt.Errorf("bench: chunks=%d out of range [1, %d]", o.Chunks, maxChunks)
	case o.ChunkBytes < 1 || o.ChunkBytes > maxChunkBytes:
		return fmt.Errorf("bench: size=%d out of range [1, %d]", o.ChunkBytes, maxChunkBytes)
	case o.Writers < 1 || o.Writers > maxWriters:
		return fmt.Errorf("bench: writers=%d out of range [1, %d]", o.Writers, maxWriters)
	case o.Settle < 0:
		return fmt.Errorf("bench: settle must not be negative")
	}
	return nil
}

// synthPayload builds size bytes of printable lines no wider than cols, so
// every chunk scrolls the surface.
func synthPayload(size, cols int) []byte {
	var buf bytes.Buffer
	buf.Grow(size)
	line := 0
	for buf.Len() < size {
		text := fmt.Sprintf("line %06d ", line)
		for len(text) < min(cols-1, 72) {
			text += "."
		}
		buf.WriteString(text)
		buf.WriteString("\r\n")
		line++
	}
	return buf.Bytes()[:size]
}

func (r Result) writesPerSec() float64 {
	secs := r.WriteDuration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Options.Chunks) / secs
}

func (r Result) mbPerSec() float64 {
	return r.writesPerSec() * float64(r.Options.ChunkBytes) / (1 << 20)
}

// JSON returns the --json payload.
func (r Result) JSON() output.BenchResult {
	return output.BenchResult{
		Chunks:        r.Options.Chunks,
		ChunkBytes:    r.Options.ChunkBytes,
		Writers:       r.Options.Writers,
		WriteDuration: r.WriteDuration,
		WritesPerSec:  r.writesPerSec(),
		MBPerSec:      r.mbPerSec(),
		ThrottleSeen:  r.ThrottleSeen,
		Scrollback:    r.Scrollback,
		Metrics:       output.NewPipelineMetrics(r.Snapshot, r.UnderStress),
	}
}

// Render returns the human report.
func (r Result) Render() string {
	rows := []report.Row{
		{Label: "chunks", Value: fmt.Sprintf("%d x %d B (%d writers)", r.Options.Chunks, r.Options.ChunkBytes, r.Options.Writers)},
		{Label: "write time", Value: r.WriteDuration.Round(time.Microsecond).String()},
		{Label: "throughput", Value: fmt.Sprintf("%.0f writes/s, %.1f MB/s", r.writesPerSec(), r.mbPerSec())},
		{Label: "throttle engaged", Value: report.Status(r.ThrottleSeen, fmt.Sprint(r.ThrottleSeen))},
		{Label: "scrollback", Value: fmt.Sprintf("%d lines", r.Scrollback)},
	}
	rows = append(rows, report.PipelineRows(r.Snapshot, r.UnderStress, r.Options.Pipeline)...)
	return report.Render("termflow bench", rows)
}
