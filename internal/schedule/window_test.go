package schedule

import (
	"math/rand"
	"testing"
	"time"
)

func TestNextMidnightUTC(t *testing.T) {
	now := time.Date(2025, 3, 14, 17, 45, 12, 0, time.UTC)
	got := NextMidnightUTC(now)
	want := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextMidnightUTC = %v, want %v", got, want)
	}

	// A non-UTC wall clock must still roll to the UTC day boundary.
	loc := time.FixedZone("UTC+7", 7*3600)
	local := time.Date(2025, 3, 15, 2, 0, 0, 0, loc) // 2025-03-14 19:00 UTC
	got = NextMidnightUTC(local)
	if !got.Equal(want) {
		t.Fatalf("NextMidnightUTC(non-UTC) = %v, want %v", got, want)
	}
}

func TestRandomInstantInRemainderBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	now := time.Date(2025, 3, 14, 23, 10, 0, 0, time.UTC)
	midnight := NextMidnightUTC(now)

	for i := 0; i < 1000; i++ {
		at := RandomInstantInRemainder(now, rng)
		if at.Before(now) {
			t.Fatalf("instant %v before now %v", at, now)
		}
		if !at.Before(midnight) {
			t.Fatalf("instant %v not before midnight %v", at, midnight)
		}
	}
}

func TestRandomInstantNearMidnight(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	now := time.Date(2025, 3, 14, 23, 59, 59, 500e6, time.UTC)
	at := RandomInstantInRemainder(now, rng)
	if at.Before(now) {
		t.Fatalf("instant %v before now %v", at, now)
	}
}

func TestJitterBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		d := Jitter(100*time.Second, rng)
		if d < 0 || d >= 100*time.Second {
			t.Fatalf("jitter %v out of [0, 100s)", d)
		}
	}
	if d := Jitter(0, rng); d != 0 {
		t.Fatalf("zero max should give zero jitter, got %v", d)
	}
}

func TestSleepCancelled(t *testing.T) {
	done := make(chan struct{})
	close(done)
	if Sleep(done, time.Now().Add(time.Hour)) {
		t.Fatal("expected cancelled sleep to report false")
	}
	if !Sleep(nil, time.Now().Add(-time.Second)) {
		t.Fatal("expected past deadline to report true immediately")
	}
}
