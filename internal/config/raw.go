package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

// RawConfig is one YAML file as written. Nil fields were not set and fall
// through to includes and defaults.
type RawConfig struct {
	Include        IncludeList    `yaml:"include"`
	Backend        *string        `yaml:"backend"`
	StorePath      *string        `yaml:"store_path"`
	DefaultMethod  *string        `yaml:"default_method"`
	FetchTimeout   *time.Duration `yaml:"fetch_timeout"`
	ResyncInterval *time.Duration `yaml:"resync_interval"`
	AutoApply      *bool          `yaml:"auto_apply"`
	WatchStore     *bool          `yaml:"watch_store"`
	LogLevel       *string        `yaml:"log_level"`
	LogFormat      *string        `yaml:"log_format"`
	MetricsAddr    *string        `yaml:"metrics_addr"`
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	if overlay.Backend != nil {
		out.Backend = overlay.Backend
	}
	if overlay.StorePath != nil {
		out.StorePath = overlay.StorePath
	}
	if overlay.DefaultMethod != nil {
		out.DefaultMethod = overlay.DefaultMethod
	}
	if overlay.FetchTimeout != nil {
		out.FetchTimeout = overlay.FetchTimeout
	}
	if overlay.ResyncInterval != nil {
		out.ResyncInterval = overlay.ResyncInterval
	}
	if overlay.AutoApply != nil {
		out.AutoApply = overlay.AutoApply
	}
	if overlay.WatchStore != nil {
		out.WatchStore = overlay.WatchStore
	}
	if overlay.LogLevel != nil {
		out.LogLevel = overlay.LogLevel
	}
	if overlay.LogFormat != nil {
		out.LogFormat = overlay.LogFormat
	}
	if overlay.MetricsAddr != nil {
		out.MetricsAddr = overlay.MetricsAddr
	}
	return out
}
