// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all file browser configuration.
type Config struct {
	// Contents service
	ServerURL string
	Token     string

	// HTTP
	RequestTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Polling
	PollBase    time.Duration
	PollCeiling time.Duration

	// State persistence ("file" or "sqlite", default: "file")
	StateBackend string
	StatePath    string

	// Metrics (optional; empty disables the endpoint)
	MetricsAddr string

	// Uploads
	DisableChunked bool
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ServerURL:      envOr("FILEBROWSER_SERVER_URL", "http://localhost:8888"),
		Token:          envOr("FILEBROWSER_TOKEN", ""),
		RequestTimeout: envDuration("FILEBROWSER_REQUEST_TIMEOUT", 30*time.Second),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		LogFormat:      envOr("LOG_FORMAT", "json"),
		PollBase:       envDuration("FILEBROWSER_POLL_BASE", 10*time.Second),
		PollCeiling:    envDuration("FILEBROWSER_POLL_CEILING", 5*time.Minute),
		StateBackend:   envOr("FILEBROWSER_STATE_BACKEND", "file"),
		StatePath:      envOr("FILEBROWSER_STATE_PATH", defaultStatePath()),
		MetricsAddr:    envOr("METRICS_ADDR", ""),
		DisableChunked: envBool("FILEBROWSER_DISABLE_CHUNKED", false),
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("FILEBROWSER_SERVER_URL is required")
	}
	if cfg.PollBase <= 0 || cfg.PollCeiling < cfg.PollBase {
		return nil, fmt.Errorf("poll interval bounds are invalid: base %v ceiling %v",
			cfg.PollBase, cfg.PollCeiling)
	}
	switch cfg.StateBackend {
	case "file", "sqlite":
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}

	return cfg, nil
}

func defaultStatePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "filebrowser", "state.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
