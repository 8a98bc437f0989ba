package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gaeakeeper/internal/gaea"
	"gaeakeeper/internal/schedule"
	"gaeakeeper/internal/state"
	logx "gaeakeeper/pkg/logx"
)

// intervalLoop runs call forever with a fixed sleep between cycles.
// Transient failures cost only the current cycle; terminal conditions are
// reported and returned so the supervisor can stop the siblings.
func (r *AccountRunner) intervalLoop(name string, interval time.Duration, call func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for {
			if err := call(ctx); err != nil {
				if gaea.Terminal(err) {
					r.reportTerminal(err)
					return err
				}
				if errors.Is(err, context.Canceled) {
					return nil
				}
				r.log.Warn(name+" cycle failed", logx.Err(err))
			}
			if !schedule.Sleep(ctx.Done(), time.Now().Add(interval)) {
				return nil
			}
		}
	}
}

func (r *AccountRunner) pingOnce(ctx context.Context) error {
	p, err := r.remote.Ping(ctx)
	if err != nil {
		return err
	}
	r.log.Info("ping ok", logx.Float64("network_score", p.Score))
	return nil
}

func (r *AccountRunner) earningsOnce(ctx context.Context) error {
	e, err := r.remote.EarningInfo(ctx)
	if err != nil {
		return err
	}
	r.log.Info("earnings",
		logx.Int64("total_pts", e.TotalPoints),
		logx.Int64("today_pts", e.TodayPoints),
		logx.String("uptime", fmt.Sprintf("%.2fh", e.UptimeHours())),
	)
	return nil
}

// dailyLoop is the per-UTC-day state machine shared by all deadline-style
// jobs. Per day: consult the completion store, sleep to a random instant in
// the remaining day, run the attempt, and either mark the day complete or
// re-pick a later instant after a transient failure. At most one completion
// per (account, job, day) is recorded, across restarts.
func (r *AccountRunner) dailyLoop(job string, attempt func(ctx context.Context) (bool, error)) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		uid := r.remote.Account().UID
		for {
			now := r.now()
			day := state.DayKey(now)

			done, err := r.store.IsCompletedToday(ctx, uid, job, day)
			if err != nil {
				// Fail open: no durable record means "not done yet".
				r.log.Warn("completion lookup failed", logx.String("job", job), logx.Err(err))
				done = false
			}
			if done {
				if !schedule.Sleep(ctx.Done(), schedule.NextMidnightUTC(now)) {
					return nil
				}
				continue
			}

			// Too close to midnight to attempt meaningfully: roll over.
			if schedule.RemainingToday(now) < 5*time.Second {
				if !schedule.Sleep(ctx.Done(), schedule.NextMidnightUTC(now)) {
					return nil
				}
				continue
			}

			target := schedule.RandomInstantInRemainder(now, r.rng)
			r.log.Debug("daily job scheduled", logx.String("job", job), logx.Time("at", target))
			if !schedule.Sleep(ctx.Done(), target) {
				return nil
			}

			completed, err := attempt(ctx)
			if err != nil {
				if gaea.Terminal(err) {
					r.reportTerminal(err)
					return err
				}
				if errors.Is(err, context.Canceled) {
					return nil
				}
				// Transient: a fresh random instant in what is left of
				// today is picked on the next iteration.
				r.log.Warn("daily job attempt failed, rescheduling", logx.String("job", job), logx.Err(err))
				continue
			}

			if completed {
				// The attempt may have crossed midnight; record the
				// completion under the day it actually finished in.
				if err := r.store.MarkCompletedToday(ctx, uid, job, state.DayKey(r.now())); err != nil {
					r.log.Warn("failed marking completion", logx.String("job", job), logx.Err(err))
				}
			}
			if !schedule.Sleep(ctx.Done(), schedule.NextMidnightUTC(r.now())) {
				return nil
			}
		}
	}
}

// dailyRewardAttempt claims every unclaimed item of today's daily reward.
// An "already claimed today" state counts as done without further claim
// calls.
func (r *AccountRunner) dailyRewardAttempt(ctx context.Context) (bool, error) {
	st, err := r.remote.DailyRewards(ctx)
	if err != nil {
		return false, err
	}
	if st.ClaimedToday {
		r.log.Info("daily reward already claimed")
		return true, nil
	}
	claimed := 0
	for _, it := range st.Items {
		if it.Claimed {
			continue
		}
		cr, err := r.remote.ClaimDailyReward(ctx, it.ID)
		if err != nil {
			return false, err
		}
		claimed++
		r.log.Info("daily reward claimed",
			logx.String("reward", it.ID),
			logx.Int64("soul", cr.Soul),
			logx.Int64("core", cr.Core),
			logx.Int64("blindbox", cr.Blindbox),
		)
	}
	if claimed == 0 {
		r.log.Info("no daily rewards available")
	}
	return true, nil
}

// trainingAttempt runs the daily training claim, guarded by the minimum
// point balance. Below the threshold the day is marked complete without a
// claim call so the balance isn't re-checked until tomorrow.
func (r *AccountRunner) trainingAttempt(ctx context.Context) (bool, error) {
	e, err := r.remote.EarningInfo(ctx)
	if err != nil {
		return false, err
	}
	if e.TotalPoints < r.cfg.TrainingMinPoints {
		r.log.Info("training skipped for today",
			logx.Int64("total_pts", e.TotalPoints),
			logx.Int64("min_pts", r.cfg.TrainingMinPoints),
		)
		return true, nil
	}

	tr, err := r.remote.CompleteTraining(ctx)
	if err != nil {
		return false, err
	}
	if tr.AlreadyCompleted {
		r.log.Info("training already completed today")
		return true, nil
	}
	r.log.Info("training completed",
		logx.Int64("burned_pts", tr.BurnedPoints),
		logx.Int64("soul", tr.Soul),
		logx.Int64("blindbox", tr.Blindbox),
	)
	return true, nil
}

// missionsAttempt sweeps the mission list and completes everything
// currently available. A transient failure mid-sweep reschedules; already
// completed missions are skipped on the re-sweep.
func (r *AccountRunner) missionsAttempt(ctx context.Context) (bool, error) {
	list, err := r.remote.Missions(ctx)
	if err != nil {
		return false, err
	}
	completed := 0
	for _, m := range list {
		if m.Status != gaea.MissionAvailable {
			continue
		}
		if err := r.remote.CompleteMission(ctx, m.ID); err != nil {
			return false, err
		}
		completed++
		r.log.Info("mission completed",
			logx.String("mission", m.Title),
			logx.Int64("reward_pts", m.RewardPoints),
		)
	}
	if completed == 0 {
		r.log.Debug("no missions available")
	}
	return true, nil
}
