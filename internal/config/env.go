package config

import (
	"os"
	"strconv"
)

// FromEnv overlays YSTORE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("YSTORE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("YSTORE_FSYNC_MODE"); v != "" {
		cfg.FsyncMode = v
	}
	if v := os.Getenv("YSTORE_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("YSTORE_MAX_RECORD_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRecordSize = n
		}
	}
	if v := os.Getenv("YSTORE_COALESCE_WINDOW_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CoalesceWindowMs = n
		}
	}
	if v := os.Getenv("YSTORE_PER_DOC_KEYSPACE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PerDocKeyspace = b
		}
	}
	if v := os.Getenv("YSTORE_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("YSTORE_WRITE_RATE_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.WriteRatePerSec = f
		}
	}
	if v := os.Getenv("YSTORE_WRITE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WriteBurst = n
		}
	}
	if v := os.Getenv("YSTORE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("YSTORE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}
