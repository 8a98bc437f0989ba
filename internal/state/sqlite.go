package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "gaeakeeper/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS paused (
  uid        TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  browser_id TEXT NOT NULL,
  token      TEXT NOT NULL,
  proxy      TEXT,
  paused_at  TEXT NOT NULL,
  reason     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS completions (
  uid TEXT NOT NULL,
  day TEXT NOT NULL,
  job TEXT NOT NULL,
  at  TEXT NOT NULL,
  PRIMARY KEY (uid, day, job)
);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite state driver requires a path")
	}
	if filepath.Ext(path) == "" {
		path = filepath.Join(path, "state.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PausedIDs(ctx context.Context) (map[string]PauseRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uid, name, browser_id, token, proxy, paused_at, reason FROM paused`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]PauseRecord{}
	for rows.Next() {
		var rec PauseRecord
		var proxy sql.NullString
		var at string
		if err := rows.Scan(&rec.UID, &rec.Name, &rec.BrowserID, &rec.Token, &proxy, &at, &rec.Reason); err != nil {
			return nil, err
		}
		rec.Proxy = proxy.String
		rec.PausedAt, _ = time.Parse(time.RFC3339Nano, at)
		out[rec.UID] = rec
	}
	return out, rows.Err()
}

func (s *sqliteStore) PersistPause(ctx context.Context, rec PauseRecord) error {
	if strings.TrimSpace(rec.UID) == "" {
		return errors.New("pause record without uid")
	}
	if rec.PausedAt.IsZero() {
		rec.PausedAt = time.Now().UTC()
	}
	// First write wins (OR IGNORE).
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO paused(uid, name, browser_id, token, proxy, paused_at, reason)
		 VALUES(?,?,?,?,?,?,?)`,
		rec.UID, rec.Name, rec.BrowserID, rec.Token, nullStr(rec.Proxy),
		rec.PausedAt.Format(time.RFC3339Nano), rec.Reason,
	)
	return err
}

func (s *sqliteStore) IsCompletedToday(ctx context.Context, uid, job, day string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM completions WHERE uid = ? AND day = ? AND job = ?`,
		uid, day, job,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) MarkCompletedToday(ctx context.Context, uid, job, day string) error {
	if uid == "" || job == "" || day == "" {
		return errors.New("completion record with empty key")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO completions(uid, day, job, at) VALUES(?,?,?,?)`,
		uid, day, job, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) PruneCompletions(ctx context.Context, beforeDay string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM completions WHERE day < ?`, beforeDay)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
