package board

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/poller"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/reconcile"
)

// Config defines the runtime configuration for the board server.
type Config struct {
	Addr         string        `yaml:"addr"`
	BackendURL   string        `yaml:"backend_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	StalePolicy  string        `yaml:"stale_policy"`
	Timezone     string        `yaml:"timezone"`
	AssetsDir    string        `yaml:"assets_dir"`
	ZoneRadiusM  float64       `yaml:"zone_radius_m"`
	LogLevel     string        `yaml:"log_level"`
	LogColor     bool          `yaml:"log_color"`
}

// DefaultConfig returns a config matching the original dashboard: a local
// backend on :5000 polled every three seconds.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		BackendURL:   "http://localhost:5000",
		PollInterval: poller.DefaultInterval,
		FetchTimeout: 5 * time.Second,
		StalePolicy:  string(poller.PolicyNewest),
		Timezone:     "Local",
		AssetsDir:    "./web_assets",
		ZoneRadiusM:  reconcile.DefaultZoneRadius,
		LogLevel:     "info",
		LogColor:     true,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyDefaults backfills zero values.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	if c.StalePolicy == "" {
		c.StalePolicy = def.StalePolicy
	}
	if c.ZoneRadiusM <= 0 {
		c.ZoneRadiusM = def.ZoneRadiusM
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	c.applyDefaults()
	if strings.TrimSpace(c.BackendURL) == "" {
		return fmt.Errorf("backend_url is required")
	}
	if _, err := poller.ParseStalePolicy(c.StalePolicy); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. Empty and "Local" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
