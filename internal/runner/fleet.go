package runner

import (
	"context"
	"math/rand"
	"time"

	"gaeakeeper/internal/accounts"
	"gaeakeeper/internal/gaea"
	"gaeakeeper/internal/runtime/supervisor"
	"gaeakeeper/internal/state"
	logx "gaeakeeper/pkg/logx"
)

// Fleet fans one AccountRunner out per eligible account and waits for all
// of them. Accounts already present in the paused store never get a runner.
type Fleet struct {
	client *gaea.Client
	store  state.Store
	cfg    Config
	log    logx.Logger
	notify Notifier

	accounts []accounts.Account
	rng      *rand.Rand
}

func NewFleet(client *gaea.Client, store state.Store, cfg Config, accs []accounts.Account, log logx.Logger, notify Notifier) *Fleet {
	return &Fleet{
		client:   client,
		store:    store,
		cfg:      cfg.withDefaults(),
		log:      log,
		notify:   notify,
		accounts: accs,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run blocks until ctx is cancelled or every account runner has finished
// (all paused). No eligible accounts is a clean exit, not an error.
func (f *Fleet) Run(ctx context.Context) error {
	paused, err := f.store.PausedIDs(ctx)
	if err != nil {
		// Fail open: better to run a paused account once more than to
		// refuse to start the whole fleet.
		f.log.Warn("could not load paused accounts, assuming none", logx.Err(err))
		paused = map[string]state.PauseRecord{}
	}

	eligible := make([]accounts.Account, 0, len(f.accounts))
	for _, acc := range f.accounts {
		if _, ok := paused[acc.UID]; ok {
			f.log.Debug("skipping paused account", logx.String("account", acc.Masked()))
			continue
		}
		eligible = append(eligible, acc)
	}

	f.log.Info("fleet loaded",
		logx.Int("accounts", len(f.accounts)),
		logx.Int("eligible", len(eligible)),
		logx.Int("paused", len(paused)),
	)
	if len(eligible) == 0 {
		f.log.Info("no eligible accounts, nothing to do")
		return nil
	}

	if f.notify != nil {
		f.notify.FleetStarted(len(eligible), len(paused))
	}

	sup := supervisor.New(ctx, supervisor.WithLogger(f.log))
	for _, acc := range eligible {
		runner := NewAccountRunner(
			f.client.Session(acc),
			f.store,
			f.cfg,
			f.log,
			f.notify,
			// Each runner gets its own seeded source so jitter draws
			// don't contend on one lock across the fleet.
			rand.New(rand.NewSource(f.rng.Int63())),
		)
		sup.Go("account."+acc.Masked(), runner.Run)
	}

	// Wait for the runners themselves, even after ctx is cancelled.
	err = sup.Wait(context.Background())
	if f.notify != nil {
		f.notify.FleetStopped()
	}
	return err
}
