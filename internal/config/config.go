// Package config handles loading, defaulting, and validation of the trainer
// daemon's TOML configuration file. Every section maps to a typed struct so
// the rest of the codebase gets strong typing without manual key lookups.
// Selected fields can also be overridden through SURGITRACK_* environment
// variables, which take precedence over the file.
package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data     DataConfig     `toml:"data"     json:"data"`
	Server   ServerConfig   `toml:"server"   json:"server"`
	Detector DetectorConfig `toml:"detector" json:"detector"`
	Catalog  CatalogConfig  `toml:"catalog"  json:"catalog"`
	Demo     DemoConfig     `toml:"demo"     json:"demo"`
	Hooks    HooksConfig    `toml:"hooks"    json:"hooks"`
}

type DataConfig struct {
	Dir string `toml:"dir" json:"dir"`
}

type ServerConfig struct {
	Bind      string `toml:"bind"       json:"bind"`
	StaticDir string `toml:"static_dir" json:"static_dir"`
}

type DetectorConfig struct {
	URL             string `toml:"url"               json:"url"`
	HistorySize     int    `toml:"history_size"      json:"history_size"`
	BackoffBaseMS   int    `toml:"backoff_base_ms"   json:"backoff_base_ms"`
	BackoffMaxMS    int    `toml:"backoff_max_ms"    json:"backoff_max_ms"`
	AutoStartCamera bool   `toml:"auto_start_camera" json:"auto_start_camera"`
}

type CatalogConfig struct {
	BaseURL string `toml:"base_url" json:"base_url"`
}

type DemoConfig struct {
	Enabled    bool   `toml:"enabled"     json:"enabled"`
	Bind       string `toml:"bind"        json:"bind"`
	IntervalMS int    `toml:"interval_ms" json:"interval_ms"`
}

// HooksConfig controls the session-event hooks. An empty Dir disables
// hook dispatch entirely.
type HooksConfig struct {
	Dir       string `toml:"dir"        json:"dir"`
	TimeoutMS int    `toml:"timeout_ms" json:"timeout_ms"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Data: DataConfig{
			Dir: "/var/lib/surgitrack",
		},
		Server: ServerConfig{
			Bind:      "127.0.0.1:8090",
			StaticDir: "",
		},
		Detector: DetectorConfig{
			URL:             "ws://localhost:8000/ws/detection",
			HistorySize:     140,
			BackoffBaseMS:   500,
			BackoffMaxMS:    12000,
			AutoStartCamera: false,
		},
		Catalog: CatalogConfig{
			BaseURL: "http://localhost:8000",
		},
		Demo: DemoConfig{
			Enabled:    false,
			Bind:       "127.0.0.1:8000",
			IntervalMS: 250,
		},
		Hooks: HooksConfig{
			Dir:       "",
			TimeoutMS: 5000,
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults,
// applies environment overrides, and validates the result. A missing file
// is not an error; the defaults and environment still apply.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err == nil {
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}

	applyEnv(&cfg)

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// applyEnv overrides file values with SURGITRACK_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SURGITRACK_DETECTOR_URL"); v != "" {
		cfg.Detector.URL = v
	}
	if v := os.Getenv("SURGITRACK_CATALOG_URL"); v != "" {
		cfg.Catalog.BaseURL = v
	}
	if v := os.Getenv("SURGITRACK_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("SURGITRACK_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("SURGITRACK_DEMO"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Demo.Enabled = enabled
		}
	}
}

func validate(cfg Config) error {
	if cfg.Data.Dir == "" {
		return errors.New("data.dir must not be empty")
	}
	if cfg.Server.Bind == "" {
		return errors.New("server.bind must not be empty")
	}
	if cfg.Detector.URL == "" {
		return errors.New("detector.url must not be empty")
	}
	if cfg.Catalog.BaseURL == "" {
		return errors.New("catalog.base_url must not be empty")
	}
	if cfg.Detector.HistorySize <= 0 {
		return errors.New("detector.history_size must be > 0")
	}
	if cfg.Detector.BackoffBaseMS <= 0 {
		return errors.New("detector.backoff_base_ms must be > 0")
	}
	if cfg.Detector.BackoffMaxMS < cfg.Detector.BackoffBaseMS {
		return errors.New("detector.backoff_max_ms must be >= detector.backoff_base_ms")
	}
	if cfg.Hooks.Dir != "" && cfg.Hooks.TimeoutMS <= 0 {
		return errors.New("hooks.timeout_ms must be > 0 when hooks.dir is set")
	}
	if cfg.Demo.Enabled {
		if cfg.Demo.Bind == "" {
			return errors.New("demo.bind must not be empty when demo is enabled")
		}
		if cfg.Demo.IntervalMS <= 0 {
			return errors.New("demo.interval_ms must be > 0 when demo is enabled")
		}
	}
	return nil
}
