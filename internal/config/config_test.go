package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
	if cfg.FlushInterval != time.Millisecond || cfg.TickInterval != 2*time.Second || cfg.AvatarInterval != 10*time.Millisecond {
		t.Fatalf("unexpected default intervals %+v", cfg)
	}
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomsync.yaml")
	writeFile(t, path, `
listen_addr: ":9000"
flush_interval: 5ms
tick_interval: 1s
activate_policy: exists
strict_delete: true
archive_path: /tmp/snapshots.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddr != ":9000" || cfg.FlushInterval != 5*time.Millisecond || cfg.TickInterval != time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.AvatarInterval != 10*time.Millisecond {
		t.Fatalf("expected unset avatar interval to keep its default, got %s", cfg.AvatarInterval)
	}
	if cfg.ActivatePolicy != ActivatePolicyExists || !cfg.StrictDelete || cfg.ArchivePath != "/tmp/snapshots.db" {
		t.Fatalf("unexpected policies %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	cfg, err := Load("")
	if err != nil || cfg != Default() {
		t.Fatalf("expected empty path to return defaults, got %+v, %v", cfg, err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":            "9001",
		"FLUSH_INTERVAL":  "4",
		"TICK_INTERVAL":   "500ms",
		"AVATAR_INTERVAL": "soon",
		"STRICT_DELETE":   "true",
		"ENABLE_PPROF":    "maybe",
		"ACTIVATE_POLICY": " Exists ",
		"LOG_LEVEL":       "debug",
	}
	cfg := Default()
	errs := cfg.ApplyEnv(envLookup(env))

	if len(errs) != 2 {
		t.Fatalf("expected 2 invalid values reported, got %v", errs)
	}
	if cfg.ListenAddr != ":9001" {
		t.Fatalf("expected PORT to set listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.FlushInterval != 4*time.Millisecond || cfg.TickInterval != 500*time.Millisecond {
		t.Fatalf("unexpected intervals %+v", cfg)
	}
	if cfg.AvatarInterval != 10*time.Millisecond || cfg.EnablePprof {
		t.Fatalf("expected invalid values to leave defaults, got %+v", cfg)
	}
	if !cfg.StrictDelete || cfg.ActivatePolicy != ActivatePolicyExists || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected overrides %+v", cfg)
	}

	env["LISTEN_ADDR"] = "127.0.0.1:7000"
	cfg.ApplyEnv(func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	})
	if cfg.ListenAddr != "127.0.0.1:7000" {
		t.Fatalf("expected LISTEN_ADDR to win over PORT, got %q", cfg.ListenAddr)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.FlushInterval = 0
	cfg.ActivatePolicy = "sometimes"
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) != 3 {
		t.Fatalf("expected 3 problems, got %v", err)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomsync.yaml")
	writeFile(t, path, "flush_interval: 1ms\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	if err := Watch(ctx, path, envLookup(nil), nil, func(cfg Config) { changes <- cfg }); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	writeFile(t, path, "flush_interval: 0ms\n")
	writeFile(t, path, "flush_interval: 7ms\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.FlushInterval == 0 {
				t.Fatalf("expected invalid config to be skipped")
			}
			if cfg.FlushInterval == 7*time.Millisecond {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for config reload")
		}
	}
}

func TestWatchKeepsEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomsync.yaml")
	writeFile(t, path, "tick_interval: 1s\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lookup := envLookup(map[string]string{"TICK_INTERVAL": "250"})
	changes := make(chan Config, 4)
	if err := Watch(ctx, path, lookup, nil, func(cfg Config) { changes <- cfg }); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	writeFile(t, path, "tick_interval: 3s\nflush_interval: 4ms\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.FlushInterval != 4*time.Millisecond {
				continue
			}
			if cfg.TickInterval != 250*time.Millisecond {
				t.Fatalf("expected TICK_INTERVAL override to survive reload, got %s", cfg.TickInterval)
			}
			return
		case <-deadline:
			t.Fatalf("timed out waiting for config reload")
		}
	}
}
