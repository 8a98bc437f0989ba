package state

import (
	"context"
	"errors"
	"strings"

	logx "gaeakeeper/pkg/logx"
)

// Store is the durable record of paused accounts and per-day job
// completions. Writes are serialized by the implementation; reads may be
// concurrent. All operations are best-effort from the fleet's point of
// view: callers log failures and continue.
type Store interface {
	// PausedIDs returns the set of account UIDs excluded from scheduling.
	PausedIDs(ctx context.Context) (map[string]PauseRecord, error)

	// PersistPause records a terminal condition for an account.
	// Idempotent: the first record for a UID wins; later calls are no-ops.
	PersistPause(ctx context.Context, rec PauseRecord) error

	// IsCompletedToday reports whether the (uid, job) pair already has a
	// completion for the given UTC day key.
	IsCompletedToday(ctx context.Context, uid, job, day string) (bool, error)

	// MarkCompletedToday records a completion for (uid, job, day).
	// Idempotent: replaying the same triple leaves one record.
	MarkCompletedToday(ctx context.Context, uid, job, day string) error

	// PruneCompletions drops completion records with a day key strictly
	// before the given one, returning how many were removed.
	PruneCompletions(ctx context.Context, beforeDay string) (int, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown state driver: " + driver)
	}
}
