package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const sampleYAML = `
db_path: /var/lib/profilewatch/profiles.db
mode: tasks
limit: 25
repeat: true
every: 10m
log_level: debug
status_addr: ":8077"
site:
  cookie_file: /etc/profilewatch/cookies.txt
  page_timeout: 45s
pace:
  warmup_items: 5
  min_delay: 2s
  batch_size: 10
retry:
  attempts: 5
  backoff: 3s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profilewatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "/var/lib/profilewatch/profiles.db" {
		t.Fatalf("db path: got %q", cfg.DBPath)
	}
	if cfg.Mode != "tasks" || cfg.Limit != 25 || !cfg.Repeat {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.Every.Std() != 10*time.Minute {
		t.Fatalf("every: got %v", cfg.Every)
	}
	if cfg.Site.CookieFile != "/etc/profilewatch/cookies.txt" {
		t.Fatalf("cookie file: got %q", cfg.Site.CookieFile)
	}
	if cfg.Site.PageTimeout.Std() != 45*time.Second {
		t.Fatalf("page timeout: got %v", cfg.Site.PageTimeout)
	}
	if cfg.Pace.WarmupItems != 5 || cfg.Pace.MinDelay.Std() != 2*time.Second || cfg.Pace.BatchSize != 10 {
		t.Fatalf("pace: got %+v", cfg.Pace)
	}
	if cfg.Retry.Attempts != 5 || cfg.Retry.Backoff.Std() != 3*time.Second {
		t.Fatalf("retry: got %+v", cfg.Retry)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDefaults(t *testing.T) {
	var cfg Config
	cfg.Defaults()

	if cfg.DBPath != "profilewatch.db" || cfg.Mode != "online" {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.Every.Std() != 5*time.Minute || cfg.LogLevel != "info" {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.Retry.Attempts != 3 || cfg.Retry.Backoff.Std() != 2*time.Second {
		t.Fatalf("retry: got %+v", cfg.Retry)
	}
}

func TestApplyEnv_OverridesFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("PROFILEWATCH_MODE", "online")
	t.Setenv("PROFILEWATCH_LIMIT", "3")
	t.Setenv("PROFILEWATCH_EVERY", "15")
	t.Setenv("PROFILEWATCH_COOKIES", "/tmp/cookies.txt")

	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "online" {
		t.Fatalf("mode: got %q", cfg.Mode)
	}
	if cfg.Limit != 3 {
		t.Fatalf("limit: got %d", cfg.Limit)
	}
	// Bare numbers are minutes, matching the CLI flag.
	if cfg.Every.Std() != 15*time.Minute {
		t.Fatalf("every: got %v", cfg.Every)
	}
	if cfg.Site.CookieFile != "/tmp/cookies.txt" {
		t.Fatalf("cookie file: got %q", cfg.Site.CookieFile)
	}
	// Untouched values keep their file-provided settings.
	if cfg.Limit == 25 || cfg.DBPath != "/var/lib/profilewatch/profiles.db" {
		t.Fatalf("got %+v", cfg)
	}
}

func TestApplyEnv_BadValues(t *testing.T) {
	t.Setenv("PROFILEWATCH_LIMIT", "many")
	var cfg Config
	if err := cfg.ApplyEnv(); err == nil {
		t.Fatal("expected error for non-numeric limit")
	}
}

func TestDuration_Forms(t *testing.T) {
	var cfg Config
	if err := yamlUnmarshal(`{every: 90s, max_runtime: 3600000000000}`, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Every.Std() != 90*time.Second {
		t.Fatalf("every: got %v", cfg.Every.Std())
	}
	// Bare integers are nanoseconds.
	if cfg.MaxRuntime.Std() != time.Hour {
		t.Fatalf("max_runtime: got %v", cfg.MaxRuntime.Std())
	}

	if err := yamlUnmarshal(`{every: soonish}`, &cfg); err == nil {
		t.Fatal("expected error for unparsable duration")
	}
}

func yamlUnmarshal(s string, cfg *Config) error {
	return yaml.Unmarshal([]byte(s), cfg)
}
