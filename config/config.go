// ABOUTME: File-based adapter configuration loading for applications embedding the adapter
// ABOUTME: Supports YAML and TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of an adapter configuration. It maps onto the
// adapter's construction options; connection secrets are usually injected
// through ${VAR} references rather than written into the file.
type File struct {
	URL          string `yaml:"url" toml:"url"`
	AuthToken    string `yaml:"auth_token" toml:"auth_token"`
	SyncURL      string `yaml:"sync_url" toml:"sync_url"`
	SyncInterval string `yaml:"sync_interval" toml:"sync_interval"`

	UsePlural    bool `yaml:"use_plural" toml:"use_plural"`
	IntIDs       bool `yaml:"int_ids" toml:"int_ids"`
	NumericDates bool `yaml:"numeric_dates" toml:"numeric_dates"`

	DebugLogs struct {
		All bool            `yaml:"all" toml:"all"`
		Ops map[string]bool `yaml:"ops" toml:"ops"`
	} `yaml:"debug_logs" toml:"debug_logs"`
}

// Config is the parsed form with durations resolved.
type Config struct {
	URL          string
	AuthToken    string
	SyncURL      string
	SyncInterval time.Duration

	UsePlural    bool
	IntIDs       bool
	NumericDates bool

	DebugAll bool
	DebugOps map[string]bool
}

// Load reads a configuration file, YAML or TOML by extension. Environment
// variables in the format ${VAR_NAME} are expanded before parsing; unset
// variables expand to the empty string.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var f File
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		if err := toml.Unmarshal([]byte(expanded), &f); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}

	cfg := &Config{
		URL:          f.URL,
		AuthToken:    f.AuthToken,
		SyncURL:      f.SyncURL,
		UsePlural:    f.UsePlural,
		IntIDs:       f.IntIDs,
		NumericDates: f.NumericDates,
		DebugAll:     f.DebugLogs.All,
		DebugOps:     f.DebugLogs.Ops,
	}

	if f.SyncInterval != "" {
		cfg.SyncInterval, err = time.ParseDuration(f.SyncInterval)
		if err != nil {
			return nil, fmt.Errorf("parsing sync_interval %q: %w", f.SyncInterval, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields a connection cannot be opened without.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.SyncInterval > 0 && c.SyncURL == "" {
		return fmt.Errorf("sync_interval requires sync_url")
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable
// values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
