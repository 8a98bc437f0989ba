package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "gaeakeeper/pkg/logx"
)

func writeFileOrFatal(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func openTestStore(t *testing.T, driver string) Store {
	t.Helper()
	s, err := Open(Config{Driver: driver, Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open %s store: %v", driver, err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func forEachDriver(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			fn(t, openTestStore(t, driver))
		})
	}
}

func TestPersistPauseFirstWriteWins(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		first := PauseRecord{
			Name:   "alice",
			UID:    "u-1",
			Reason: "Token Expired (401)",
		}
		if err := s.PersistPause(ctx, first); err != nil {
			t.Fatalf("persist: %v", err)
		}
		// A second record for the same UID must not overwrite the first.
		second := first
		second.Reason = "Forbidden (403)"
		if err := s.PersistPause(ctx, second); err != nil {
			t.Fatalf("persist (repeat): %v", err)
		}

		paused, err := s.PausedIDs(ctx)
		if err != nil {
			t.Fatalf("paused ids: %v", err)
		}
		if len(paused) != 1 {
			t.Fatalf("got %d paused records, want 1", len(paused))
		}
		rec, ok := paused["u-1"]
		if !ok {
			t.Fatal("u-1 not in paused set")
		}
		if rec.Reason != "Token Expired (401)" {
			t.Fatalf("reason = %q, want original", rec.Reason)
		}
		if rec.PausedAt.IsZero() {
			t.Fatal("PausedAt not set")
		}
	})
}

func TestPersistPauseRejectsEmptyUID(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		if err := s.PersistPause(context.Background(), PauseRecord{Name: "x"}); err == nil {
			t.Fatal("expected error for record without uid")
		}
	})
}

func TestCompletionsIdempotent(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		day := DayKey(time.Now())

		done, err := s.IsCompletedToday(ctx, "u-1", JobTraining, day)
		if err != nil || done {
			t.Fatalf("fresh lookup = (%v, %v), want (false, nil)", done, err)
		}

		for i := 0; i < 3; i++ {
			if err := s.MarkCompletedToday(ctx, "u-1", JobTraining, day); err != nil {
				t.Fatalf("mark #%d: %v", i, err)
			}
		}

		done, err = s.IsCompletedToday(ctx, "u-1", JobTraining, day)
		if err != nil || !done {
			t.Fatalf("lookup after mark = (%v, %v), want (true, nil)", done, err)
		}

		// Other jobs and other days are untouched.
		if done, _ := s.IsCompletedToday(ctx, "u-1", JobMissions, day); done {
			t.Fatal("missions reported complete without a mark")
		}
		if done, _ := s.IsCompletedToday(ctx, "u-1", JobTraining, "1999-01-01"); done {
			t.Fatal("other day reported complete")
		}
	})
}

func TestPruneCompletions(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		old := []string{"2025-01-01", "2025-01-02"}
		keep := "2025-02-01"

		for _, day := range old {
			mustMark(t, s, "u-1", JobDailyReward, day)
			mustMark(t, s, "u-1", JobTraining, day)
		}
		mustMark(t, s, "u-1", JobDailyReward, keep)

		removed, err := s.PruneCompletions(ctx, "2025-01-15")
		if err != nil {
			t.Fatalf("prune: %v", err)
		}
		if removed != 4 {
			t.Fatalf("removed = %d, want 4", removed)
		}

		if done, _ := s.IsCompletedToday(ctx, "u-1", JobDailyReward, keep); !done {
			t.Fatal("record on or after the cutoff was pruned")
		}
		if done, _ := s.IsCompletedToday(ctx, "u-1", JobTraining, old[0]); done {
			t.Fatal("record before the cutoff survived")
		}

		// Prune with nothing left to remove.
		removed, err = s.PruneCompletions(ctx, "2025-01-15")
		if err != nil || removed != 0 {
			t.Fatalf("second prune = (%d, %v), want (0, nil)", removed, err)
		}
	})
}

func mustMark(t *testing.T, s Store, uid, job, day string) {
	t.Helper()
	if err := s.MarkCompletedToday(context.Background(), uid, job, day); err != nil {
		t.Fatalf("mark %s/%s/%s: %v", uid, job, day, err)
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			cfg := Config{Driver: driver, Path: dir}

			s, err := Open(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if err := s.PersistPause(ctx, PauseRecord{UID: "u-9", Name: "bob", Reason: "Token Expired (401)"}); err != nil {
				t.Fatalf("persist: %v", err)
			}
			mustMark(t, s, "u-9", JobMissions, "2025-06-01")
			if err := s.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			s2, err := Open(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer s2.Close()

			paused, err := s2.PausedIDs(ctx)
			if err != nil {
				t.Fatalf("paused ids: %v", err)
			}
			if _, ok := paused["u-9"]; !ok {
				t.Fatal("pause record lost across reopen")
			}
			if done, _ := s2.IsCompletedToday(ctx, "u-9", JobMissions, "2025-06-01"); !done {
				t.Fatal("completion lost across reopen")
			}
		})
	}
}

func TestFileStoreRecoversFromCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	writeFileOrFatal(t, filepath.Join(dir, "paused_accounts.json"), "{not json")

	s, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("open over corrupt file: %v", err)
	}
	defer s.Close()

	paused, err := s.PausedIDs(context.Background())
	if err != nil {
		t.Fatalf("paused ids: %v", err)
	}
	if len(paused) != 0 {
		t.Fatalf("expected empty paused set, got %d", len(paused))
	}
}

func TestClosedStoreRefusesOperations(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		if err := s.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if _, err := s.PausedIDs(context.Background()); err == nil {
			t.Fatal("expected error from closed store")
		}
	})
}

func TestDayKey(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 23:30 local on the 9th is already the 10th in UTC.
	at := time.Date(2025, 7, 9, 23, 30, 0, 0, loc)
	if got := DayKey(at); got != "2025-07-10" {
		t.Fatalf("DayKey = %q, want 2025-07-10", got)
	}
}
