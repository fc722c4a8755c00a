package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Reminders RemindersConfig `json:"reminders"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// RatePerSec caps outbound sends; 0 means the default.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "file":   dependency-free file backend (jsonl journal + snapshot)
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// RemindersConfig controls the reminder scheduler.
//
// All durations are Go duration strings (e.g. "1m", "720h").
//
// Defaults (when fields are omitted/zero):
//   - min_delay: "1m"
//   - max_lookahead: "17520h" (two years)
//   - chain_step: "720h" (thirty days; the longest span armed in one timer)
//   - reconcile_schedule: "@every 6h"
type RemindersConfig struct {
	MinDelay     string `json:"min_delay,omitempty"`
	MaxLookahead string `json:"max_lookahead,omitempty"`
	ChainStep    string `json:"chain_step,omitempty"`

	// ReconcileSchedule re-syncs in-memory timers against the store on a cron
	// spec. Empty uses the default; "off" disables reconciliation.
	ReconcileSchedule string `json:"reconcile_schedule,omitempty"`
}
