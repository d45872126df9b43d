package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the configuration file location.
const EnvConfigPath = "DISPSWITCH_CONFIG"

// Config is the effective daemon configuration.
type Config struct {
	// Backend is auto, mutter or x11.
	Backend string `yaml:"backend"`
	// StorePath is the saved configurations file. Empty means
	// ~/.config/dispswitch/configurations.json.
	StorePath string `yaml:"store_path,omitempty"`
	// DefaultMethod is the apply method used when a request names none.
	DefaultMethod  string        `yaml:"default_method"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	ResyncInterval time.Duration `yaml:"resync_interval"`
	// AutoApply applies the only applicable configuration when the set of
	// connected displays changes.
	AutoApply  bool   `yaml:"auto_apply"`
	WatchStore bool   `yaml:"watch_store"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	// MetricsAddr enables the Prometheus listener when set, e.g. 127.0.0.1:9477.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend:        "auto",
		DefaultMethod:  "temporary",
		FetchTimeout:   5 * time.Second,
		ResyncInterval: 30 * time.Second,
		AutoApply:      false,
		WatchStore:     true,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// ResolvedStorePath expands a leading ~ in StorePath, or returns "" when
// the default location should be used.
func (c *Config) ResolvedStorePath() (string, error) {
	p := strings.TrimSpace(c.StorePath)
	if p == "" {
		return "", nil
	}
	return expandHome(p)
}

// expandHome replaces a leading "~" or "~/" with the home directory.
func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p[1:], "/")), nil
}

// Save writes the configuration to path.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case "auto", "mutter", "x11":
	default:
		return &ValidationError{Path: "backend", Err: fmt.Errorf("backend must be one of: auto, mutter, x11")}
	}
	switch c.DefaultMethod {
	case "temporary", "persistent":
	default:
		return &ValidationError{Path: "default_method", Err: fmt.Errorf("default_method must be one of: temporary, persistent")}
	}
	if c.FetchTimeout <= 0 {
		return &ValidationError{Path: "fetch_timeout", Err: fmt.Errorf("fetch_timeout must be > 0")}
	}
	if c.ResyncInterval < 0 {
		return &ValidationError{Path: "resync_interval", Err: fmt.Errorf("resync_interval must be >= 0 (0 disables resync)")}
	}
	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return &ValidationError{Path: "log_format", Err: fmt.Errorf("log_format must be one of: text, json")}
	}
	if c.MetricsAddr != "" && !strings.Contains(c.MetricsAddr, ":") {
		return &ValidationError{Path: "metrics_addr", Err: fmt.Errorf("metrics_addr must be host:port")}
	}
	return nil
}
