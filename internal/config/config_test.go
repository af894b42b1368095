package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "http://localhost:8888" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.PollBase != 10*time.Second || cfg.PollCeiling != 5*time.Minute {
		t.Errorf("poll bounds = %v/%v", cfg.PollBase, cfg.PollCeiling)
	}
	if cfg.StateBackend != "file" {
		t.Errorf("StateBackend = %q", cfg.StateBackend)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FILEBROWSER_SERVER_URL", "https://hub.example.com")
	t.Setenv("FILEBROWSER_POLL_BASE", "2s")
	t.Setenv("FILEBROWSER_POLL_CEILING", "1m")
	t.Setenv("FILEBROWSER_STATE_BACKEND", "sqlite")
	t.Setenv("FILEBROWSER_DISABLE_CHUNKED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "https://hub.example.com" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.PollBase != 2*time.Second || cfg.PollCeiling != time.Minute {
		t.Errorf("poll bounds = %v/%v", cfg.PollBase, cfg.PollCeiling)
	}
	if !cfg.DisableChunked {
		t.Error("DisableChunked not applied")
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("FILEBROWSER_STATE_BACKEND", "redis")
	if _, err := Load(); err == nil {
		t.Error("unknown state backend should fail")
	}

	t.Setenv("FILEBROWSER_STATE_BACKEND", "file")
	t.Setenv("FILEBROWSER_POLL_BASE", "1m")
	t.Setenv("FILEBROWSER_POLL_CEILING", "1s")
	if _, err := Load(); err == nil {
		t.Error("ceiling below base should fail")
	}
}
