package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.DefaultMethod != "temporary" {
		t.Fatalf("expected temporary default method, got %q", cfg.DefaultMethod)
	}
	if cfg.ResyncInterval != 30*time.Second {
		t.Fatalf("expected 30s resync, got %s", cfg.ResyncInterval)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Backend != "auto" {
		t.Fatalf("expected backend auto, got %q", res.Config.Backend)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no files loaded, got %v", res.Files)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !res.Config.WatchStore {
		t.Fatalf("expected watch_store default true")
	}
}

func TestLoadFromPath_AllKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, strings.Join([]string{
		"backend: X11",
		"store_path: /tmp/dispswitch/configs.json",
		"default_method: persistent",
		"fetch_timeout: 2s",
		"resync_interval: 1m",
		"auto_apply: true",
		"watch_store: false",
		"log_level: warn",
		"log_format: json",
		"metrics_addr: 127.0.0.1:9477",
		"",
	}, "\n"))

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Backend != "x11" {
		t.Fatalf("backend = %q", cfg.Backend)
	}
	if cfg.StorePath != "/tmp/dispswitch/configs.json" {
		t.Fatalf("store_path = %q", cfg.StorePath)
	}
	if cfg.DefaultMethod != "persistent" {
		t.Fatalf("default_method = %q", cfg.DefaultMethod)
	}
	if cfg.FetchTimeout != 2*time.Second || cfg.ResyncInterval != time.Minute {
		t.Fatalf("durations = %s / %s", cfg.FetchTimeout, cfg.ResyncInterval)
	}
	if !cfg.AutoApply || cfg.WatchStore {
		t.Fatalf("booleans = %v / %v", cfg.AutoApply, cfg.WatchStore)
	}
	if cfg.LogLevel != "warning" || cfg.LogFormat != "json" {
		t.Fatalf("logging = %q / %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.MetricsAddr != "127.0.0.1:9477" {
		t.Fatalf("metrics_addr = %q", cfg.MetricsAddr)
	}

	val, src, err := Explain(res, "fetch_timeout")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != "2s" {
		t.Fatalf("expected explain fetch_timeout 2s, got %#v", val)
	}
	if src.Kind != SourceFile || src.Line != 4 {
		t.Fatalf("expected file source on line 4, got %#v", src)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "unknown_key: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") && !strings.Contains(err.Error(), "field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorHasSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "log_level: info\nbackend: wayland\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Path != "backend" {
		t.Fatalf("expected path backend, got %q", verr.Path)
	}
	if !strings.Contains(err.Error(), path+":2:") {
		t.Fatalf("expected file:line prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"method", func(c *Config) { c.DefaultMethod = "forever" }, "default_method"},
		{"fetch timeout", func(c *Config) { c.FetchTimeout = 0 }, "fetch_timeout"},
		{"resync", func(c *Config) { c.ResyncInterval = -time.Second }, "resync_interval"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"metrics addr", func(c *Config) { c.MetricsAddr = "9477" }, "metrics_addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Path != tt.path {
				t.Fatalf("expected validation error on %s, got %v", tt.path, err)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.ResyncInterval = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero resync should disable it, got %v", err)
	}
}

func TestLoadFromPath_IncludeDirectoryOrderAndMainOverrides(t *testing.T) {
	dir := t.TempDir()

	// config.d loaded first, in sorted order.
	configD := filepath.Join(dir, "config.d")
	if err := os.MkdirAll(configD, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(configD, "10-base.yaml"), "resync_interval: 5s\nlog_format: json\n")
	writeFile(t, filepath.Join(configD, "20-override.yaml"), "resync_interval: 6s\n")

	// Main file overrides includes.
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, strings.Join([]string{
		"include:",
		"  - config.d",
		"resync_interval: 7s",
		"",
	}, "\n"))

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.ResyncInterval != 7*time.Second {
		t.Fatalf("expected resync_interval 7s, got %s", res.Config.ResyncInterval)
	}
	if res.Config.LogFormat != "json" {
		t.Fatalf("expected log_format from include, got %q", res.Config.LogFormat)
	}
	if len(res.Files) != 3 {
		t.Fatalf("expected 3 files loaded, got %v", res.Files)
	}
}

func TestLoadFromPath_IncludeMissingPathHasContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "include:\n  - missing.yaml\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "include") || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected include error, got %v", err)
	}
	if !strings.Contains(err.Error(), path+":") {
		t.Fatalf("expected error to include file:line:col prefix, got %v", err)
	}
}

func TestLoadFromPath_IncludeCycleDetection(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	writeFile(t, a, "include: b.yaml\n")
	writeFile(t, b, "include: a.yaml\n")

	_, err := LoadFromPath(a)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestLoadFromPath_SharedIncludeMergedOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "common.yaml"), "log_level: debug\nfetch_timeout: 2s\n")
	writeFile(t, filepath.Join(dir, "a.yaml"), "include: common.yaml\nfetch_timeout: 3s\n")
	writeFile(t, filepath.Join(dir, "b.yaml"), "include: common.yaml\n")
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "include: [a.yaml, b.yaml]\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// b.yaml must not re-apply common.yaml over a.yaml.
	if res.Config.FetchTimeout != 3*time.Second {
		t.Fatalf("expected fetch_timeout 3s, got %s", res.Config.FetchTimeout)
	}
	if res.Config.LogLevel != "debug" {
		t.Fatalf("expected log_level from common.yaml, got %q", res.Config.LogLevel)
	}
	if len(res.Files) != 4 {
		t.Fatalf("expected 4 files loaded, got %v", res.Files)
	}
	src := res.Sources["fetch_timeout"]
	if filepath.Base(src.File) != "a.yaml" || src.Line != 2 {
		t.Fatalf("expected fetch_timeout from a.yaml:2, got %s", FormatSource(src))
	}
}

func TestLoadFromPath_IncludeExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeFile(t, filepath.Join(home, "extra.yaml"), "auto_apply: true\n")
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "include: ~/extra.yaml\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !res.Config.AutoApply {
		t.Fatalf("expected auto_apply from ~/extra.yaml")
	}
}

func TestConfigPath_EnvOverride(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/custom/dispswitch.yaml")
	got, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	if got != "/tmp/custom/dispswitch.yaml" {
		t.Fatalf("expected env override, got %q", got)
	}

	t.Setenv(EnvConfigPath, "")
	t.Setenv("HOME", "/home/tester")
	got, err = ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	if got != "/home/tester/.config/dispswitch/config.yaml" {
		t.Fatalf("unexpected default path %q", got)
	}
}

func TestResolvedStorePath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	cfg := DefaultConfig()
	if p, err := cfg.ResolvedStorePath(); err != nil || p != "" {
		t.Fatalf("expected empty path for default, got %q, %v", p, err)
	}
	cfg.StorePath = "~/displays.json"
	p, err := cfg.ResolvedStorePath()
	if err != nil {
		t.Fatalf("ResolvedStorePath: %v", err)
	}
	if p != "/home/tester/displays.json" {
		t.Fatalf("expected expanded path, got %q", p)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.AutoApply = true
	cfg.FetchTimeout = 3 * time.Second
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load saved config: %v", err)
	}
	if !res.Config.AutoApply || res.Config.FetchTimeout != 3*time.Second {
		t.Fatalf("saved config did not round trip: %+v", res.Config)
	}

	_, src, err := Explain(res, "backend")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if src.Kind != SourceFile {
		t.Fatalf("expected file source for saved key, got %#v", src)
	}
	if _, _, err := Explain(res, "layouts"); err == nil {
		t.Fatalf("expected unknown path error")
	}
}
