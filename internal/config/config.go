// Package config loads server settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

const (
	ActivatePolicyObserved = "observed"
	ActivatePolicyExists   = "exists"
)

// Config holds every tunable of the server process. Durations are written as
// Go duration strings ("10ms", "2s").
type Config struct {
	// --- Network ---
	ListenAddr      string        `yaml:"listen_addr"`
	SendBuffer      int           `yaml:"send_buffer"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	PongWait        time.Duration `yaml:"pong_wait"`
	WriteWait       time.Duration `yaml:"write_wait"`

	// --- Broadcast engine ---
	FlushInterval    time.Duration `yaml:"flush_interval"`
	TickInterval     time.Duration `yaml:"tick_interval"`
	AvatarInterval   time.Duration `yaml:"avatar_interval"`
	OutboundCapacity int           `yaml:"outbound_capacity"`

	// --- Protocol policies ---
	ActivatePolicy string `yaml:"activate_policy"`
	StrictDelete   bool   `yaml:"strict_delete"`

	// --- Storage and assets ---
	ArchivePath string `yaml:"archive_path"`
	ClientDir   string `yaml:"client_dir"`

	// --- Logging and observability ---
	LogLevel    string `yaml:"log_level"`
	LogJSONPath string `yaml:"log_json_path"`
	LogColor    bool   `yaml:"log_color"`
	LogConsole  bool   `yaml:"log_console"`
	EnablePprof bool   `yaml:"enable_pprof"`
}

func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		SendBuffer:      256,
		MaxMessageBytes: 64 * 1024,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		FlushInterval:   time.Millisecond,
		TickInterval:    2000 * time.Millisecond,
		AvatarInterval:  10 * time.Millisecond,
		ActivatePolicy:  ActivatePolicyObserved,
		LogLevel:        "info",
		LogConsole:      true,
	}
}

// Load reads path over the defaults. An empty path returns the defaults. A
// missing file is reported with an error wrapping fs.ErrNotExist.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. Values that do not
// parse are skipped and reported; the remaining overrides still apply.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) []error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var errs []error

	if raw, ok := lookup("PORT"); ok && raw != "" {
		if _, err := strconv.ParseUint(raw, 10, 16); err != nil {
			errs = append(errs, fmt.Errorf("invalid PORT=%q: %w", raw, err))
		} else {
			c.ListenAddr = ":" + raw
		}
	}
	if raw, ok := lookup("LISTEN_ADDR"); ok && raw != "" {
		c.ListenAddr = raw
	}

	durations := []struct {
		name   string
		target *time.Duration
	}{
		{"FLUSH_INTERVAL", &c.FlushInterval},
		{"TICK_INTERVAL", &c.TickInterval},
		{"AVATAR_INTERVAL", &c.AvatarInterval},
	}
	for _, d := range durations {
		raw, ok := lookup(d.name)
		if !ok || raw == "" {
			continue
		}
		value, err := parseInterval(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s=%q: %w", d.name, raw, err))
			continue
		}
		*d.target = value
	}

	bools := []struct {
		name   string
		target *bool
	}{
		{"STRICT_DELETE", &c.StrictDelete},
		{"LOG_COLOR", &c.LogColor},
		{"LOG_CONSOLE", &c.LogConsole},
		{"ENABLE_PPROF", &c.EnablePprof},
	}
	for _, b := range bools {
		raw, ok := lookup(b.name)
		if !ok || raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s=%q: %w", b.name, raw, err))
			continue
		}
		*b.target = value
	}

	if raw, ok := lookup("ACTIVATE_POLICY"); ok && raw != "" {
		c.ActivatePolicy = strings.ToLower(strings.TrimSpace(raw))
	}
	if raw, ok := lookup("ARCHIVE_PATH"); ok {
		c.ArchivePath = raw
	}
	if raw, ok := lookup("CLIENT_DIR"); ok && raw != "" {
		c.ClientDir = raw
	}
	if raw, ok := lookup("LOG_JSON_PATH"); ok {
		c.LogJSONPath = raw
	}
	if raw, ok := lookup("LOG_LEVEL"); ok && raw != "" {
		c.LogLevel = raw
	}
	return errs
}

// parseInterval accepts Go durations and bare integers in milliseconds.
func parseInterval(raw string) (time.Duration, error) {
	if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(millis) * time.Millisecond, nil
	}
	return time.ParseDuration(raw)
}

// Validate reports every problem at once, each wrapping ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	positive := []struct {
		name  string
		value time.Duration
	}{
		{"flush_interval", c.FlushInterval},
		{"tick_interval", c.TickInterval},
		{"avatar_interval", c.AvatarInterval},
		{"pong_wait", c.PongWait},
		{"write_wait", c.WriteWait},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, p.name, p.value))
		}
	}
	if c.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("%w: listen_addr is empty", ErrInvalid))
	}
	if c.OutboundCapacity < 0 {
		errs = append(errs, fmt.Errorf("%w: outbound_capacity must not be negative", ErrInvalid))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("%w: send_buffer must be positive", ErrInvalid))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_message_bytes must be positive", ErrInvalid))
	}
	switch c.ActivatePolicy {
	case ActivatePolicyObserved, ActivatePolicyExists:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown activate_policy %q", ErrInvalid, c.ActivatePolicy))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown log_level %q", ErrInvalid, c.LogLevel))
	}
	return errors.Join(errs...)
}
