package state

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "gaeakeeper/pkg/logx"
)

// fileStore is the dependency-free persistence backend.
//
// Files under the configured directory:
//   - paused_accounts.json    uid -> PauseRecord
//   - daily_completions.json  uid -> day -> job -> timestamp
//
// Whole documents are rewritten atomically (tmp + rename) on change; a
// single mutex serializes writers. Unreadable or missing documents load as
// empty (fail-open) with a warning.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	pausedPath      string
	completionsPath string

	paused      map[string]PauseRecord
	completions map[string]map[string]map[string]time.Time

	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:             log,
		pausedPath:      filepath.Join(dir, "paused_accounts.json"),
		completionsPath: filepath.Join(dir, "daily_completions.json"),
		paused:          map[string]PauseRecord{},
		completions:     map[string]map[string]map[string]time.Time{},
	}

	if err := loadJSON(s.pausedPath, &s.paused); err != nil {
		log.Warn("paused-accounts file unreadable, starting empty", logx.String("path", s.pausedPath), logx.Err(err))
		s.paused = map[string]PauseRecord{}
	}
	if err := loadJSON(s.completionsPath, &s.completions); err != nil {
		log.Warn("completions file unreadable, starting empty", logx.String("path", s.completionsPath), logx.Err(err))
		s.completions = map[string]map[string]map[string]time.Time{}
	}
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fileStore) PausedIDs(ctx context.Context) (map[string]PauseRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make(map[string]PauseRecord, len(s.paused))
	for k, v := range s.paused {
		out[k] = v
	}
	return out, nil
}

func (s *fileStore) PersistPause(ctx context.Context, rec PauseRecord) error {
	_ = ctx
	if strings.TrimSpace(rec.UID) == "" {
		return errors.New("pause record without uid")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	// First write wins.
	if _, ok := s.paused[rec.UID]; ok {
		return nil
	}
	if rec.PausedAt.IsZero() {
		rec.PausedAt = time.Now().UTC()
	}
	s.paused[rec.UID] = rec
	return writeJSON(s.pausedPath, s.paused)
}

func (s *fileStore) IsCompletedToday(ctx context.Context, uid, job, day string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	_, ok := s.completions[uid][day][job]
	return ok, nil
}

func (s *fileStore) MarkCompletedToday(ctx context.Context, uid, job, day string) error {
	_ = ctx
	if uid == "" || job == "" || day == "" {
		return errors.New("completion record with empty key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	days := s.completions[uid]
	if days == nil {
		days = map[string]map[string]time.Time{}
		s.completions[uid] = days
	}
	jobs := days[day]
	if jobs == nil {
		jobs = map[string]time.Time{}
		days[day] = jobs
	}
	// Idempotent: keep the first timestamp.
	if _, ok := jobs[job]; ok {
		return nil
	}
	jobs[job] = time.Now().UTC()
	return writeJSON(s.completionsPath, s.completions)
}

func (s *fileStore) PruneCompletions(ctx context.Context, beforeDay string) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	removed := 0
	for uid, days := range s.completions {
		for day, jobs := range days {
			if day < beforeDay {
				removed += len(jobs)
				delete(days, day)
			}
		}
		if len(days) == 0 {
			delete(s.completions, uid)
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, writeJSON(s.completionsPath, s.completions)
}

func loadJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, out)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
