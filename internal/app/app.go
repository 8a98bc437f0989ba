package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"gaeakeeper/internal/accounts"
	"gaeakeeper/internal/config"
	"gaeakeeper/internal/gaea"
	"gaeakeeper/internal/notify"
	"gaeakeeper/internal/runner"
	"gaeakeeper/internal/runtime/supervisor"
	"gaeakeeper/internal/state"
	logx "gaeakeeper/pkg/logx"
)

// Options are the CLI overrides applied on top of the config file.
type Options struct {
	// NoProxy forces all accounts to connect directly.
	NoProxy bool
	// Training overrides jobs.training.enabled when non-nil.
	Training *bool
}

// App owns every service of the daemon and their start/stop order.
type App struct {
	cfgm *config.Manager
	opts Options

	logs *logx.Service
	log  logx.Logger

	store state.Store
	notif *notify.Service
	fleet *runner.Fleet
	cron  *cron.Cron
}

func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(mapLogging(cfg.Logging))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		cfgm: cfgm,
		opts: opts,
		logs: logSvc,
		log:  log,
	}

	// Only the logging section is hot-reloadable; everything else is
	// committed for the next restart.
	cfgm.OnReload(func(old, cur *config.Config) {
		logSvc.Apply(mapLogging(cur.Logging))
	})

	useProxy := config.BoolOr(cfg.UseProxy, true) && !opts.NoProxy
	accs, err := accounts.Load(cfg.AccountsFile, useProxy, log.With(logx.String("comp", "accounts")))
	if err != nil {
		a.close()
		return nil, err
	}

	stateCfg, err := mapState(cfg.State)
	if err != nil {
		a.close()
		return nil, err
	}
	store, err := state.Open(stateCfg, log.With(logx.String("comp", "state")))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open state store: %w", err)
	}
	a.store = store
	log.Info("state store opened", logx.String("driver", driverName(stateCfg.Driver)))

	// Optional notifier; a bad token degrades to log-only operation.
	if cfg.Telegram.Enabled {
		n, err := notify.New(notify.Config{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		}, log.With(logx.String("comp", "notify")))
		if err != nil {
			log.Warn("telegram notifier disabled", logx.Err(err))
		} else {
			a.notif = n
		}
	}

	gaeaCfg, err := mapGaea(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	limiter := rate.NewLimiter(rate.Limit(rps), rps)
	client := gaea.New(gaeaCfg, limiter, log.With(logx.String("comp", "gaea")))

	runCfg, err := mapRunner(cfg, opts)
	if err != nil {
		a.close()
		return nil, err
	}

	var notif runner.Notifier
	if a.notif != nil {
		notif = a.notif
	}
	a.fleet = runner.NewFleet(client, store, runCfg, accs, log.With(logx.String("comp", "fleet")), notif)

	a.cron = a.buildMaintenance(cfg)

	return a, nil
}

// Run blocks until the fleet finishes or ctx is cancelled, then tears
// everything down in reverse order.
func (a *App) Run(ctx context.Context) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log))

	sup.GoRestart("config.watch", func(ctx context.Context) error {
		return a.cfgm.Watch(ctx)
	}, supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	a.cron.Start()

	err := a.fleet.Run(ctx)

	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(5 * time.Second):
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = sup.Stop(stopCtx)

	a.close()
	return err
}

func (a *App) close() {
	if a.notif != nil {
		a.notif.Close()
		a.notif = nil
	}
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
}

// buildMaintenance schedules the UTC-midnight housekeeping: prune old
// daily-completion records and log a day summary.
func (a *App) buildMaintenance(cfg *config.Config) *cron.Cron {
	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = 7
	}
	log := a.log.With(logx.String("comp", "maintenance"))

	c := cron.New(cron.WithLocation(time.UTC))
	// Shortly after midnight so day keys have rolled over everywhere.
	_, err := c.AddFunc("5 0 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		before := state.DayKey(time.Now().UTC().AddDate(0, 0, -retention))
		removed, err := a.store.PruneCompletions(ctx, before)
		if err != nil {
			log.Warn("completion prune failed", logx.Err(err))
		} else if removed > 0 {
			log.Info("pruned old completion records", logx.Int("removed", removed), logx.String("before", before))
		}

		if paused, err := a.store.PausedIDs(ctx); err == nil {
			log.Info("day rollover", logx.Int("paused_total", len(paused)))
		}
	})
	if err != nil {
		// Only reachable if the cron expression above is edited badly.
		log.Error("maintenance schedule rejected", logx.Err(err))
	}
	return c
}

// ---- config mapping ----

func mapLogging(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: config.BoolOr(lc.Console, true),
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
	}
}

func mapState(sc config.StateConfig) (state.Config, error) {
	busy, err := config.ParseDurationField("state.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return state.Config{}, err
	}
	path := sc.Path
	if path == "" {
		path = "./state"
	}
	return state.Config{
		Driver:      sc.Driver,
		Path:        path,
		BusyTimeout: busy,
	}, nil
}

func driverName(d string) string {
	if d == "" {
		return "file"
	}
	return d
}

func mapGaea(cfg *config.Config) (gaea.Config, error) {
	timeout, err := config.ParseDurationOrDefault("request_timeout", cfg.RequestTimeout, 60*time.Second)
	if err != nil {
		return gaea.Config{}, err
	}
	retryDelay, err := config.ParseDurationOrDefault("retry_delay", cfg.RetryDelay, 5*time.Second)
	if err != nil {
		return gaea.Config{}, err
	}
	return gaea.Config{
		BaseURL:        cfg.BaseURL,
		PingProfile:    cfg.PingProfile,
		RequestTimeout: timeout,
		RetryDelay:     retryDelay,

		PingAttempts:     cfg.Jobs.Ping.RetryMax,
		EarningsAttempts: cfg.Jobs.Earnings.RetryMax,
		MissionAttempts:  cfg.Jobs.Missions.RetryMax,
		RewardAttempts:   cfg.Jobs.DailyReward.RetryMax,
		TrainingAttempts: cfg.Jobs.Training.RetryMax,
	}, nil
}

func mapRunner(cfg *config.Config, opts Options) (runner.Config, error) {
	pingIv, err := config.ParseDurationOrDefault("jobs.ping.interval", cfg.Jobs.Ping.Interval, 10*time.Minute)
	if err != nil {
		return runner.Config{}, err
	}
	earnIv, err := config.ParseDurationOrDefault("jobs.earnings.interval", cfg.Jobs.Earnings.Interval, 15*time.Minute)
	if err != nil {
		return runner.Config{}, err
	}
	jitterMax, err := config.ParseDurationOrDefault("startup_jitter_max", cfg.StartupJitterMax, 100*time.Second)
	if err != nil {
		return runner.Config{}, err
	}

	training := config.BoolOr(cfg.Jobs.Training.Enabled, false)
	if opts.Training != nil {
		training = *opts.Training
	}

	return runner.Config{
		PingInterval:      pingIv,
		EarningsInterval:  earnIv,
		StartupJitterMax:  jitterMax,
		TrainingMinPoints: int64(cfg.Jobs.Training.MinPoints),

		EnablePing:        config.BoolOr(cfg.Jobs.Ping.Enabled, true),
		EnableEarnings:    config.BoolOr(cfg.Jobs.Earnings.Enabled, true),
		EnableDailyReward: config.BoolOr(cfg.Jobs.DailyReward.Enabled, true),
		EnableTraining:    training,
		EnableMissions:    config.BoolOr(cfg.Jobs.Missions.Enabled, true),
	}, nil
}
