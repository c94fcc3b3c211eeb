// Package config loads client configuration from a YAML file with
// environment-variable overrides, plus optional .env files for local
// development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when neither file nor environment provides a value.
const (
	DefaultPageSize = 20
	DefaultDebounce = 500 * time.Millisecond
	DefaultTokenKey = "token"
)

// Duration decodes YAML values like "250ms" or integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := value.Decode(&ns); err != nil {
		return fmt.Errorf("config: invalid duration value")
	}
	*d = Duration(ns)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Telemetry configures the optional trace exporter.
type Telemetry struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
}

// Config carries everything the client core needs at construction time.
type Config struct {
	// BaseURL is the common prefix for all storefront services.
	BaseURL string `yaml:"base_url"`

	// PageSize is the fixed catalog page size.
	PageSize int `yaml:"page_size"`

	// Debounce is the free-text quiescence interval.
	Debounce Duration `yaml:"debounce"`

	// StorageDir holds persisted client state; empty keeps state in memory.
	StorageDir string `yaml:"storage_dir"`

	// TokenKey is the storage key the session token persists under.
	TokenKey string `yaml:"token_key"`

	Telemetry Telemetry `yaml:"telemetry"`
}

// LoadDotenv loads a .env file when present. A missing file is not an error.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Load reads a YAML config file, applies environment overrides, then
// defaults and validation. An empty path skips the file and configures from
// environment and defaults alone.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STOREFRONT_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("STOREFRONT_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PageSize = n
		}
	}
	if v := os.Getenv("STOREFRONT_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Debounce = Duration(d)
		}
	}
	if v := os.Getenv("STOREFRONT_STORAGE_DIR"); v != "" {
		c.StorageDir = v
	}
	if v := os.Getenv("STOREFRONT_TOKEN_KEY"); v != "" {
		c.TokenKey = v
	}
	if v := os.Getenv("STOREFRONT_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Enabled = true
		c.Telemetry.Endpoint = v
	}
}

func (c *Config) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Debounce <= 0 {
		c.Debounce = Duration(DefaultDebounce)
	}
	if c.TokenKey == "" {
		c.TokenKey = DefaultTokenKey
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "storefront-client"
	}
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: base_url is required")
	}
	return nil
}
