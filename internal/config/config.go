// Package config provides loading and environment overlay for ystore
// configuration. Defaults first, then an optional JSON or YAML file, then
// YSTORE_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir is the Pebble database directory.
	DataDir string `json:"dataDir" yaml:"dataDir"`
	// FsyncMode is one of always|interval|never.
	FsyncMode string `json:"fsyncMode" yaml:"fsyncMode"`
	// FsyncIntervalMs applies when FsyncMode is "interval".
	FsyncIntervalMs int `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	// MaxRecordSize caps one physical record's payload in bytes. Payloads
	// above it are chunked.
	MaxRecordSize int `json:"maxRecordSize" yaml:"maxRecordSize"`
	// CoalesceWindowMs is the read-coalescing window. A larger window merges
	// more queries at higher read latency.
	CoalesceWindowMs int `json:"coalesceWindowMs" yaml:"coalesceWindowMs"`
	// PerDocKeyspace mirrors a one-collection-per-document store layout and
	// disables cross-document read coalescing.
	PerDocKeyspace bool `json:"perDocKeyspace" yaml:"perDocKeyspace"`
	// HTTPAddr is the API listen address.
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
	// WriteRatePerSec throttles mutating API calls per client. 0 disables.
	WriteRatePerSec float64 `json:"writeRatePerSec" yaml:"writeRatePerSec"`
	// WriteBurst is the throttle's burst allowance.
	WriteBurst int `json:"writeBurst" yaml:"writeBurst"`
	// LogLevel is one of debug|info|warn|error.
	LogLevel string `json:"logLevel" yaml:"logLevel"`
	// LogFormat is text or json.
	LogFormat string `json:"logFormat" yaml:"logFormat"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		FsyncMode:        "always",
		FsyncIntervalMs:  5,
		MaxRecordSize:    15_000_000,
		CoalesceWindowMs: 2,
		HTTPAddr:         ":8080",
		WriteBurst:       16,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load reads configuration from a JSON or YAML file (by extension), layered
// over defaults. An empty path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	return cfg, nil
}
