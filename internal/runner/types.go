package runner

import (
	"context"
	"time"

	"gaeakeeper/internal/accounts"
	"gaeakeeper/internal/gaea"
)

// Remote is the per-account slice of the gaea client the job loops use.
// *gaea.Session satisfies it; tests substitute fakes.
type Remote interface {
	Account() accounts.Account
	ProxyDisplay() string

	EarningInfo(ctx context.Context) (*gaea.Earnings, error)
	Ping(ctx context.Context) (*gaea.PingResult, error)
	Missions(ctx context.Context) ([]gaea.Mission, error)
	CompleteMission(ctx context.Context, id string) error
	DailyRewards(ctx context.Context) (*gaea.DailyRewardStatus, error)
	ClaimDailyReward(ctx context.Context, id string) (*gaea.ClaimResult, error)
	CompleteTraining(ctx context.Context) (*gaea.TrainingResult, error)
}

// Config is the resolved per-run scheduling policy (durations already
// parsed, flags already merged). The zero value is not usable; build it
// through withDefaults.
type Config struct {
	PingInterval     time.Duration // default 10m
	EarningsInterval time.Duration // default 15m
	StartupJitterMax time.Duration // default 100s

	TrainingMinPoints int64 // default 2500

	EnablePing        bool
	EnableEarnings    bool
	EnableDailyReward bool
	EnableTraining    bool
	EnableMissions    bool
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = 10 * time.Minute
	}
	if c.EarningsInterval <= 0 {
		c.EarningsInterval = 15 * time.Minute
	}
	if c.StartupJitterMax < 0 {
		c.StartupJitterMax = 0
	} else if c.StartupJitterMax == 0 {
		c.StartupJitterMax = 100 * time.Second
	}
	if c.TrainingMinPoints <= 0 {
		c.TrainingMinPoints = 2500
	}
	return c
}

// Notifier receives fleet-level events. Implementations must not block;
// a nil Notifier disables notifications.
type Notifier interface {
	FleetStarted(eligible, paused int)
	FleetStopped()
	AccountPaused(name, proxy, reason string)
}
