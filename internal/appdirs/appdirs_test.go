package appdirs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestRuntimeDirOverrideCreated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runtime")
	t.Setenv(RuntimeDirEnv, dir)

	got, err := RuntimeDir()
	if err != nil {
		t.Fatalf("RuntimeDir() error: %v", err)
	}
	if got != dir {
		t.Fatalf("RuntimeDir() = %q, want %q", got, dir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("runtime dir not created: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o700 {
		t.Fatalf("runtime dir perm = %o, want 0700", info.Mode().Perm())
	}
}

func TestRuntimeDirPrefersXDGState(t *testing.T) {
	state := t.TempDir()
	t.Setenv(RuntimeDirEnv, "")
	t.Setenv("XDG_STATE_HOME", state)
	got, err := RuntimeDir()
	if err != nil {
		t.Fatalf("RuntimeDir() error: %v", err)
	}
	if got != filepath.Join(state, "termflow") {
		t.Fatalf("RuntimeDir() = %q", got)
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv(ConfigDirEnv, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error: %v", err)
	}
	if filepath.Base(dir) != "termflow" {
		t.Fatalf("ConfigDir() = %q", dir)
	}
	t.Setenv(ConfigDirEnv, "/etc/termflow-test")
	if dir, _ := ConfigDir(); dir != "/etc/termflow-test" {
		t.Fatalf("override ignored: %q", dir)
	}
}
