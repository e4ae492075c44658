package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/regenrek/termflow/internal/pipeline"
)

type stubSource struct {
	id     string
	snap   pipeline.Snapshot
	stress bool
}

func (s stubSource) ID() string                 { return s.id }
func (s stubSource) Metrics() pipeline.Snapshot { return s.snap }
func (s stubSource) UnderStress() bool          { return s.stress }

func TestCollectorEmitsPerSession(t *testing.T) {
	c := NewCollector()
	c.Add(stubSource{
		id: "a",
		snap: pipeline.Snapshot{
			BufferLines:   1200,
			MemoryUsageMB: 3.5,
			Throttled:     true,
			QueuedCount:   7,
			DroppedFrames: 42,
			LastGCTime:    time.Unix(1700000000, 0),
		},
		stress: true,
	})
	c.Add(stubSource{id: "b"})

	if got := testutil.CollectAndCount(c); got != 20 {
		t.Fatalf("CollectAndCount = %d, want 20", got)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetLabel()[0].GetValue() != "a" {
				continue
			}
			v := m.GetGauge().GetValue()
			if m.GetCounter() != nil {
				v = m.GetCounter().GetValue()
			}
			values[mf.GetName()] = v
		}
	}
	want := map[string]float64{
		"termflow_buffer_lines":                1200,
		"termflow_memory_usage_mb":             3.5,
		"termflow_throttled":                   1,
		"termflow_queued_chunks":               7,
		"termflow_dropped_frames_total":        42,
		"termflow_last_trim_timestamp_seconds": 1700000000,
		"termflow_under_stress":                1,
	}
	for name, w := range want {
		if values[name] != w {
			t.Fatalf("%s = %v, want %v", name, values[name], w)
		}
	}

	c.Remove("a")
	c.Remove("b")
	if got := testutil.CollectAndCount(c); got != 0 {
		t.Fatalf("CollectAndCount after remove = %d", got)
	}
}

func TestServeExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.Add(stubSource{id: "s1", snap: pipeline.Snapshot{BufferLines: 5}})
	reg := NewRegistry(c)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen unavailable: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, reg) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		cancel()
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), `termflow_buffer_lines{session="s1"} 5`) {
		t.Fatalf("metrics body missing session gauge:\n%s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
