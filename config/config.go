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

	"github.com/voltq/stationd/core/station"
)

// Config is the full service configuration.
type Config struct {
	Station station.Config `json:"station"`
	Tariff  station.Tariff `json:"tariff"`
	Storage StorageConfig  `json:"storage"`
	API     APIConfig      `json:"api"`
	Metrics MetricsConfig  `json:"metrics"`
}

// Load reads the configuration file at path, applies environment overrides
// (prefix STATIOND_, "__" as separator) and validates the result.
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
	if err := k.Load(env.Provider("STATIOND_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "stationd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	c.Station.SetDefaults()
	if len(c.Tariff.Windows) == 0 {
		c.Tariff = station.DefaultTariff()
	}
	c.Storage.SetDefaults()
	c.API.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Station.Validate(); err != nil {
		return err
	}
	if err := c.Tariff.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return nil
}

// StorageConfig selects the persisted-store backend.
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `json:"backend"`
	// URL is the database connection string for the postgres backend.
	URL string `json:"url"`
}

// SetDefaults applies sane defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks mandatory fields.
func (c StorageConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "postgres":
		if c.URL == "" {
			return fmt.Errorf("storage url is required for the postgres backend")
		}
		return nil
	}
	return fmt.Errorf("unknown storage backend %s", c.Backend)
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
}

// SetDefaults applies sane defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = ":9090"
	}
}
