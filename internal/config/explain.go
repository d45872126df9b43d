package config

import (
	"fmt"
	"strings"
)

// Keys lists every path Explain accepts, in file order.
var Keys = []string{
	"backend",
	"store_path",
	"default_method",
	"fetch_timeout",
	"resync_interval",
	"auto_apply",
	"watch_store",
	"log_level",
	"log_format",
	"metrics_addr",
}

// Explain returns the effective value at the given key and its source.
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	switch path {
	case "backend":
		return cfg.Backend, nil
	case "store_path":
		return cfg.StorePath, nil
	case "default_method":
		return cfg.DefaultMethod, nil
	case "fetch_timeout":
		return cfg.FetchTimeout.String(), nil
	case "resync_interval":
		return cfg.ResyncInterval.String(), nil
	case "auto_apply":
		return cfg.AutoApply, nil
	case "watch_store":
		return cfg.WatchStore, nil
	case "log_level":
		return cfg.LogLevel, nil
	case "log_format":
		return cfg.LogFormat, nil
	case "metrics_addr":
		return cfg.MetricsAddr, nil
	default:
		return nil, fmt.Errorf("unknown path: %s", path)
	}
}

// FormatSource renders a source for CLI output.
func FormatSource(src Source) string {
	switch src.Kind {
	case SourceFile:
		return fmt.Sprintf("%s:%d:%d", src.File, src.Line, src.Column)
	default:
		if src.Name != "" {
			return string(src.Kind) + " (" + src.Name + ")"
		}
		return string(src.Kind)
	}
}
