// Package config loads profilewatch configuration. Precedence, lowest to
// highest: built-in defaults, the YAML file, PROFILEWATCH_* environment
// variables, command-line flags (applied by the CLI after loading).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"profilewatch/pace"
	"profilewatch/site"
)

// Duration is a time.Duration that unmarshals from YAML duration strings
// ("45s", "10m") or bare integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: bad duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("config: bad duration value")
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Site is the YAML shape of the site collaborator settings.
type Site struct {
	BaseURL           string         `yaml:"base_url"`
	OnlinePath        string         `yaml:"online_path"`
	ProfilePathFormat string         `yaml:"profile_path_format"`
	CookieFile        string         `yaml:"cookie_file"`
	PageTimeout       Duration       `yaml:"page_timeout"`
	LoginMarker       string         `yaml:"login_marker"`
	Selectors         site.Selectors `yaml:"selectors"`
}

// Config converts to the site package's config.
func (s Site) Config() site.Config {
	return site.Config{
		BaseURL:           s.BaseURL,
		OnlinePath:        s.OnlinePath,
		ProfilePathFormat: s.ProfilePathFormat,
		CookieFile:        s.CookieFile,
		PageTimeout:       s.PageTimeout.Std(),
		LoginMarker:       s.LoginMarker,
		Selectors:         s.Selectors,
	}
}

// Pace is the YAML shape of the throttle settings.
type Pace struct {
	WarmupItems  int      `yaml:"warmup_items"`
	MinDelay     Duration `yaml:"min_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	BatchSize    int      `yaml:"batch_size"`
	GrowthFactor float64  `yaml:"growth_factor"`
	ShrinkFactor float64  `yaml:"shrink_factor"`
	WidenFactor  float64  `yaml:"widen_factor"`
}

// Config converts to the pace package's config.
func (p Pace) Config() pace.Config {
	return pace.Config{
		WarmupItems:  p.WarmupItems,
		MinDelay:     p.MinDelay.Std(),
		MaxDelay:     p.MaxDelay.Std(),
		BatchSize:    p.BatchSize,
		GrowthFactor: p.GrowthFactor,
		ShrinkFactor: p.ShrinkFactor,
		WidenFactor:  p.WidenFactor,
	}
}

// Retry bounds per-item persistence retries.
type Retry struct {
	Attempts int      `yaml:"attempts"`
	Backoff  Duration `yaml:"backoff"`
}

// Config holds all profilewatch configuration.
type Config struct {
	DBPath     string   `yaml:"db_path"`
	Mode       string   `yaml:"mode"`
	Limit      int      `yaml:"limit"`
	Repeat     bool     `yaml:"repeat"`
	Every      Duration `yaml:"every"`
	MaxRuntime Duration `yaml:"max_runtime"`
	LogLevel   string   `yaml:"log_level"`
	StatusAddr string   `yaml:"status_addr"` // empty disables the endpoint
	Site       Site     `yaml:"site"`
	Pace       Pace     `yaml:"pace"`
	Retry      Retry    `yaml:"retry"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.DBPath == "" {
		c.DBPath = "profilewatch.db"
	}
	if c.Mode == "" {
		c.Mode = "online"
	}
	if c.Every <= 0 {
		c.Every = Duration(5 * time.Minute)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.Backoff <= 0 {
		c.Retry.Backoff = Duration(2 * time.Second)
	}
}

// LoadFile reads a YAML config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays PROFILEWATCH_* environment variables. Every CLI flag
// has a mirror here; the flag wins when both are set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PROFILEWATCH_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("PROFILEWATCH_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("PROFILEWATCH_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PROFILEWATCH_LIMIT: %w", err)
		}
		c.Limit = n
	}
	if v := os.Getenv("PROFILEWATCH_REPEAT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: PROFILEWATCH_REPEAT: %w", err)
		}
		c.Repeat = b
	}
	if v := os.Getenv("PROFILEWATCH_EVERY"); v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("config: PROFILEWATCH_EVERY: %w", err)
		}
		c.Every = Duration(d)
	}
	if v := os.Getenv("PROFILEWATCH_MAX_RUNTIME"); v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("config: PROFILEWATCH_MAX_RUNTIME: %w", err)
		}
		c.MaxRuntime = Duration(d)
	}
	if v := os.Getenv("PROFILEWATCH_COOKIES"); v != "" {
		c.Site.CookieFile = v
	}
	if v := os.Getenv("PROFILEWATCH_STATUS_ADDR"); v != "" {
		c.StatusAddr = v
	}
	if v := os.Getenv("PROFILEWATCH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// parseInterval accepts either a Go duration ("5m30s") or a bare number of
// minutes ("5"), the latter matching the CLI's minutes-based repeat flag.
func parseInterval(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Minute, nil
	}
	return time.ParseDuration(v)
}
