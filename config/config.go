// Package config loads and validates the service configuration from a
// YAML or JSON file, with optional PARK_-prefixed environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/parkade/parkade/core/parking"
	"github.com/parkade/parkade/core/scheduler"
	"github.com/parkade/parkade/infra/gate"
	inframetrics "github.com/parkade/parkade/infra/metrics"
)

type Config struct {
	Logging LoggingConfig    `json:"logging"`
	Store   StoreConfig      `json:"store"`
	Parking parking.Config   `json:"parking"`
	Fines   FinesConfig      `json:"fines"`
	Sweep   scheduler.Config `json:"sweep"`
	Metrics MetricsConfig    `json:"metrics"`
	Gate    gate.Config      `json:"gate"`
	API     APIConfig        `json:"api"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `json:"level"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("invalid log level %q", c.Level)
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	// Path is the sqlite database file. Ignored for memory.
	Path string `json:"path"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "parkade.db"
	}
}

func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case "memory", "sqlite":
		return nil
	}
	return fmt.Errorf("unsupported store backend %q", c.Backend)
}

// FinesConfig selects the overstay fine strategy.
type FinesConfig struct {
	// Strategy is "fixed", "hourly" or "progressive".
	Strategy string `json:"strategy"`
	// Amount is the flat fine for the fixed strategy. Zero keeps the default.
	Amount float64 `json:"amount"`
	// HourlyRate is the per-hour fine for the hourly strategy. Zero keeps the default.
	HourlyRate float64 `json:"hourly_rate"`
	// Cap bounds the hourly and progressive strategies. Zero means uncapped
	// for hourly and the default cap for progressive.
	Cap float64 `json:"cap"`
}

func (c *FinesConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = "fixed"
	}
}

func (c *FinesConfig) Validate() error {
	switch c.Strategy {
	case "fixed", "hourly", "progressive":
	default:
		return fmt.Errorf("unsupported fine strategy %q", c.Strategy)
	}
	if c.Amount < 0 || c.HourlyRate < 0 || c.Cap < 0 {
		return fmt.Errorf("fine amounts must not be negative")
	}
	return nil
}

// MetricsConfig controls the Prometheus endpoint and the InfluxDB sink.
type MetricsConfig struct {
	PromEnabled bool                      `json:"prom_enabled"`
	PromAddr    string                    `json:"prom_addr"`
	Influx      inframetrics.InfluxConfig `json:"influx"`
}

func (c *MetricsConfig) SetDefaults() {
	if c.PromAddr == "" {
		c.PromAddr = ":9090"
	}
}

// APIConfig controls the read-only status HTTP server.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("PARK_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "park_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Store.SetDefaults()
	c.Parking.SetDefaults()
	c.Fines.SetDefaults()
	c.Sweep.SetDefaults()
	c.Metrics.SetDefaults()
	c.Gate.SetDefaults()
	c.API.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Fines.Validate(); err != nil {
		return err
	}
	return nil
}
