// Package config loads the feedclean YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/feedclean/observer"
	"github.com/hazyhaar/feedclean/settings"
)

// Settings backends.
const (
	BackendSQLite = "sqlite"
	BackendYAML   = "yaml"
)

// Config is the top-level feedclean configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Page     PageConfig     `yaml:"page"`
	Debounce DebounceConfig `yaml:"debounce"`
	Settings SettingsConfig `yaml:"settings"`
	// Listen is the messaging bridge address.
	Listen string `yaml:"listen"`
	// Defaults overrides the built-in default configuration.
	Defaults settings.Partial `yaml:"defaults"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Headful          bool     `yaml:"headful"`
	Stealth          *bool    `yaml:"stealth"`
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// PageConfig names the feed to clean.
type PageConfig struct {
	URL string `yaml:"url"`
}

// DebounceConfig controls mutation batching.
type DebounceConfig struct {
	Window time.Duration `yaml:"window"`
}

// SettingsConfig selects where user settings live.
type SettingsConfig struct {
	Backend      string        `yaml:"backend"` // sqlite | yaml
	Path         string        `yaml:"path"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.Stealth == nil {
		on := true
		c.Browser.Stealth = &on
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"fonts", "media"}
	}
	if c.Debounce.Window <= 0 {
		c.Debounce.Window = observer.DefaultWindow
	}
	if c.Settings.Backend == "" {
		c.Settings.Backend = BackendSQLite
	}
	if c.Settings.Path == "" {
		switch c.Settings.Backend {
		case BackendYAML:
			c.Settings.Path = "feedclean-settings.yaml"
		default:
			c.Settings.Path = "feedclean.db"
		}
	}
	if c.Settings.PollInterval <= 0 {
		c.Settings.PollInterval = time.Second
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:7788"
	}
}

// Validate rejects values applyDefaults cannot repair.
func (c *Config) Validate() error {
	switch c.Settings.Backend {
	case BackendSQLite, BackendYAML:
	default:
		return fmt.Errorf("config: unknown settings backend %q", c.Settings.Backend)
	}
	return nil
}

// BaseSettings is the built-in default configuration with Defaults applied.
func (c *Config) BaseSettings() settings.Configuration {
	return settings.Defaults().Apply(c.Defaults)
}
