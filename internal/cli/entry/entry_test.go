package entry

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TERMFLOW_RUNTIME_DIR", t.TempDir())
	t.Setenv("TERMFLOW_CONFIG", "")
	t.Setenv("TERMFLOW_CONFIG_DIR", "")
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	var out bytes.Buffer
	prevStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	t.Cleanup(func() { os.Stdout = prevStdout })
	t.Cleanup(func() { _ = r.Close() })
	fn()
	_ = w.Close()
	_, _ = io.Copy(&out, r)
	return out.String()
}

func TestRunVersionFlagExitsZero(t *testing.T) {
	isolateHome(t)
	var exit int
	out := captureStdout(t, func() { exit = Run([]string{"termflow", "--version"}, "test") })
	if exit != 0 {
		t.Fatalf("exit=%d", exit)
	}
	if !strings.Contains(out, "termflow test") {
		t.Fatalf("stdout=%q", out)
	}
}

func TestRunVersionCommandWrites(t *testing.T) {
	isolateHome(t)
	var exit int
	out := captureStdout(t, func() { exit = Run([]string{"termflow", "version"}, "test") })
	if exit != 0 {
		t.Fatalf("exit=%d", exit)
	}
	if !strings.Contains(out, "termflow test") {
		t.Fatalf("stdout=%q", out)
	}
}

func TestRunFailsOnInvalidConfig(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "termflow.yaml")
	if err := os.WriteFile(path, []byte("throttle:\n  high_volume_threshold: 5\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if exit := Run([]string{"termflow", "bench", "--config", path}, "test"); exit != 1 {
		t.Fatalf("exit=%d, want 1", exit)
	}
}

func TestConfigPathFromArgs(t *testing.T) {
	isolateHome(t)
	if got := configPathFromArgs([]string{"termflow", "run", "--config", "a.yaml"}); got != "a.yaml" {
		t.Fatalf("got %q", got)
	}
	if got := configPathFromArgs([]string{"termflow", "run", "--config=b.toml"}); got != "b.toml" {
		t.Fatalf("got %q", got)
	}
	if got := configPathFromArgs([]string{"termflow", "run", "--", "tool", "--config", "c.yaml"}); got == "c.yaml" {
		t.Fatalf("args after -- must not be read")
	}
	t.Setenv("TERMFLOW_CONFIG", "env.yaml")
	if got := configPathFromArgs([]string{"termflow", "bench"}); got != "env.yaml" {
		t.Fatalf("got %q", got)
	}
}
