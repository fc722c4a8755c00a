package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.json", `{
		"telegram": {"token": "123:abc", "poll_timeout": "15s", "rate_per_sec": 5},
		"logging": {"level": "DEBUG", "console": true, "file": {"enabled": true, "path": "/tmp/b.log"}},
		"storage": {"driver": "sqlite", "path": "/tmp/b.db", "busy_timeout": "2s"},
		"reminders": {"min_delay": "30s", "chain_step": "168h", "reconcile_schedule": "@every 1h"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.RatePerSec != 5 {
		t.Fatalf("telegram section: %+v", cfg.Telegram)
	}
	if cfg.Logging.Level != "DEBUG" || !cfg.Logging.File.Enabled {
		t.Fatalf("logging section: %+v", cfg.Logging)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.BusyTimeout != "2s" {
		t.Fatalf("storage section: %+v", cfg.Storage)
	}
	if cfg.Reminders.ChainStep != "168h" || cfg.Reminders.ReconcileSchedule != "@every 1h" {
		t.Fatalf("reminders section: %+v", cfg.Reminders)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.yaml", `
telegram:
  token: "123:abc"
logging:
  level: INFO
  console: true
storage:
  driver: file
  path: ./data
reminders:
  min_delay: 1m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Storage.Driver != "file" || cfg.Reminders.MinDelay != "1m" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.json", `{"telegram": {"token": "x", "tokenn": "typo"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.json", `{"telegram": {"token": "x"}}{"extra": true}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty means zero", raw: "", want: 0},
		{name: "whitespace means zero", raw: "   ", want: 0},
		{name: "simple", raw: "10s", want: 10 * time.Second},
		{name: "compound", raw: "1h30m", want: 90 * time.Minute},
		{name: "negative rejected", raw: "-5s", wantErr: true},
		{name: "garbage rejected", raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationField("test.field", tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDurationField(%q): expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationField(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	got, err := ParseDurationOrDefault("f", "", 42*time.Second)
	if err != nil || got != 42*time.Second {
		t.Fatalf("empty = (%v, %v), want default", got, err)
	}
	got, err = ParseDurationOrDefault("f", "5s", 42*time.Second)
	if err != nil || got != 5*time.Second {
		t.Fatalf("explicit = (%v, %v), want 5s", got, err)
	}
	if _, err := ParseDurationOrDefault("f", "junk", time.Second); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
