package runner

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"gaeakeeper/internal/gaea"
	"gaeakeeper/internal/runtime/supervisor"
	"gaeakeeper/internal/schedule"
	"gaeakeeper/internal/state"
	logx "gaeakeeper/pkg/logx"
)

// AccountRunner owns one account's full set of concurrent job loops. The
// first loop to observe a terminal condition persists the pause record and
// cancels its siblings; anything else self-heals in place.
type AccountRunner struct {
	remote Remote
	store  state.Store
	cfg    Config
	log    logx.Logger
	notify Notifier
	rng    *rand.Rand

	// now is the wall clock used for day-key decisions; tests substitute it.
	now func() time.Time

	pauseOnce sync.Once
}

func NewAccountRunner(remote Remote, store state.Store, cfg Config, log logx.Logger, notify Notifier, rng *rand.Rand) *AccountRunner {
	acc := remote.Account()
	return &AccountRunner{
		remote: remote,
		store:  store,
		cfg:    cfg.withDefaults(),
		log: log.With(
			logx.String("account", acc.Masked()),
			logx.String("proxy", remote.ProxyDisplay()),
		),
		notify: notify,
		rng:    rng,
		now:    time.Now,
	}
}

// Run blocks until all job loops for this account have finished. A paused
// account is a normal outcome, not an error; only an unexpected internal
// failure is returned.
func (r *AccountRunner) Run(ctx context.Context) error {
	delay := schedule.Jitter(r.cfg.StartupJitterMax, r.rng)
	r.log.Info("account starting", logx.Duration("initial_delay", delay))
	if !schedule.Sleep(ctx.Done(), time.Now().Add(delay)) {
		return nil
	}

	sup := supervisor.New(ctx,
		supervisor.WithLogger(r.log),
		supervisor.WithCancelOnError(true),
	)

	restartOpts := []supervisor.RestartOption{
		supervisor.WithRestartBackoff(5*time.Second, time.Minute),
		supervisor.WithFatalErrors(gaea.Terminal),
	}

	if r.cfg.EnablePing {
		sup.GoRestart("ping", r.intervalLoop("ping", r.cfg.PingInterval, r.pingOnce), restartOpts...)
	}
	if r.cfg.EnableEarnings {
		sup.GoRestart("earnings", r.intervalLoop("earnings", r.cfg.EarningsInterval, r.earningsOnce), restartOpts...)
	}
	if r.cfg.EnableDailyReward {
		sup.GoRestart("daily-reward", r.dailyLoop(state.JobDailyReward, r.dailyRewardAttempt), restartOpts...)
	}
	if r.cfg.EnableTraining {
		sup.GoRestart("training", r.dailyLoop(state.JobTraining, r.trainingAttempt), restartOpts...)
	}
	if r.cfg.EnableMissions {
		sup.GoRestart("missions", r.dailyLoop(state.JobMissions, r.missionsAttempt), restartOpts...)
	}

	err := sup.Wait(context.Background())
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	if gaea.Terminal(err) {
		// Pause was already persisted by the loop that saw it.
		return nil
	}
	return err
}

// reportTerminal persists the pause record exactly once and notifies.
// Sibling cancellation happens through the supervisor when the terminal
// error propagates out of the job loop.
func (r *AccountRunner) reportTerminal(err error) {
	r.pauseOnce.Do(func() {
		acc := r.remote.Account()
		reason := pauseReason(err)
		r.log.Error("terminal condition, pausing account", logx.String("reason", reason))

		rec := state.PauseRecord{
			Name:      acc.Name,
			BrowserID: acc.BrowserID,
			Token:     acc.Token,
			Proxy:     acc.Proxy,
			UID:       acc.UID,
			PausedAt:  time.Now().UTC(),
			Reason:    reason,
		}
		// Best-effort: a storage failure must not crash the fleet.
		pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if perr := r.store.PersistPause(pctx, rec); perr != nil {
			r.log.Error("failed persisting pause record", logx.Err(perr))
		}
		if r.notify != nil {
			r.notify.AccountPaused(acc.Masked(), r.remote.ProxyDisplay(), reason)
		}
	})
}

func pauseReason(err error) string {
	switch {
	case errors.Is(err, gaea.ErrTokenExpired):
		return "Token Expired (401)"
	case errors.Is(err, gaea.ErrForbidden):
		return "Forbidden (403)"
	default:
		return err.Error()
	}
}
