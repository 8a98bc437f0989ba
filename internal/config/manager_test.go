package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
accounts_file: ./accounts.csv
use_proxy: true
rate_per_sec: 3
jobs:
  ping:
    interval: 10m
  earnings:
    interval: 15m
    retry_max: 5
  training:
    enabled: true
    min_points: 3000
state:
  driver: sqlite
  path: ./state
logging:
  level: debug
telegram:
  enabled: true
  token: "123:abc"
  chat_id: -100123
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AccountsFile != "./accounts.csv" {
		t.Fatalf("accounts_file = %q", cfg.AccountsFile)
	}
	if !BoolOr(cfg.UseProxy, false) {
		t.Fatal("use_proxy not parsed")
	}
	if cfg.RatePerSec != 3 {
		t.Fatalf("rate_per_sec = %d", cfg.RatePerSec)
	}
	if cfg.Jobs.Earnings.RetryMax != 5 || cfg.Jobs.Earnings.Interval != "15m" {
		t.Fatalf("earnings job = %+v", cfg.Jobs.Earnings)
	}
	if !BoolOr(cfg.Jobs.Training.Enabled, false) || cfg.Jobs.Training.MinPoints != 3000 {
		t.Fatalf("training job = %+v", cfg.Jobs.Training)
	}
	if cfg.State.Driver != "sqlite" {
		t.Fatalf("state driver = %q", cfg.State.Driver)
	}
	if cfg.Telegram.ChatID != -100123 {
		t.Fatalf("chat_id = %d", cfg.Telegram.ChatID)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return committed config")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
accounts_file: ./accounts.csv
acounts_file_typo: oops
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestLoadRequiresAccountsFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected accounts_file error")
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"accounts_file": "./accounts.csv", "jobs": {"ping": {"interval": "5m"}}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Jobs.Ping.Interval != "5m" {
		t.Fatalf("ping interval = %q", cfg.Jobs.Ping.Interval)
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", " 90s "); err != nil || d != 90*time.Second {
		t.Fatalf("ParseDurationField = (%v, %v)", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty = (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "bogus"); err == nil {
		t.Fatal("expected error for malformed duration")
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default = (%v, %v)", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "30s", time.Minute); err != nil || d != 30*time.Second {
		t.Fatalf("explicit = (%v, %v)", d, err)
	}
}

func TestChangedSections(t *testing.T) {
	old := &Config{AccountsFile: "a.csv", Logging: LoggingConfig{Level: "info"}}
	cur := &Config{AccountsFile: "a.csv", Logging: LoggingConfig{Level: "debug"}}

	changed := ChangedSections(old, cur)
	found := false
	for _, s := range changed {
		if s == "logging" {
			found = true
		}
		if s == "accounts_file" {
			t.Fatal("unchanged section reported")
		}
	}
	if !found {
		t.Fatalf("logging change not detected: %v", changed)
	}
}
