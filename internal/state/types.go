package state

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("state store closed")

// Config configures the durable account-state store.
//
// Driver values:
//   - "file" (default): two human-inspectable JSON documents
//   - "sqlite": single SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// PauseRecord is the durable snapshot of an account that hit a terminal
// condition. Written exactly once per account; never mutated afterwards.
type PauseRecord struct {
	Name      string    `json:"name"`
	BrowserID string    `json:"browser_id"`
	Token     string    `json:"token"`
	Proxy     string    `json:"proxy,omitempty"`
	UID       string    `json:"uid"`
	PausedAt  time.Time `json:"paused_at"`
	Reason    string    `json:"reason"`
}

// Job kinds used as completion keys. Keep these stable: they are persisted.
const (
	JobDailyReward = "daily_reward"
	JobTraining    = "training"
	JobMissions    = "missions"
)

// DayKey formats a wall-clock instant as the UTC calendar-day key used
// throughout the store.
func DayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }
