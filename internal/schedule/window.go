// Package schedule holds the UTC day-boundary arithmetic shared by all
// once-per-day jobs: remaining time today, random instants inside the
// remainder, and startup jitter.
package schedule

import (
	"math/rand"
	"time"
)

// NextMidnightUTC returns the first instant of the next UTC calendar day.
func NextMidnightUTC(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// RemainingToday returns how long until the next UTC midnight.
func RemainingToday(now time.Time) time.Duration {
	return NextMidnightUTC(now).Sub(now)
}

// RandomInstantInRemainder picks a uniformly random instant strictly after
// now and strictly before the next UTC midnight. Re-picking after a missed
// window therefore never lands in the past or in tomorrow.
//
// rng may be nil to use the global source.
func RandomInstantInRemainder(now time.Time, rng *rand.Rand) time.Time {
	remain := RemainingToday(now)
	if remain <= time.Second {
		return now
	}
	// Leave a one-second guard before midnight.
	span := int64(remain - time.Second)
	return now.Add(time.Duration(randInt63n(rng, span)))
}

// Jitter returns a random delay in [0, max). Zero max means no delay.
func Jitter(max time.Duration, rng *rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(randInt63n(rng, int64(max)))
}

func randInt63n(rng *rand.Rand, n int64) int64 {
	if n <= 0 {
		return 0
	}
	if rng != nil {
		return rng.Int63n(n)
	}
	return rand.Int63n(n)
}

// Sleep waits until the given instant or until done closes, whichever comes
// first. It reports false when the wait was cut short.
func Sleep(done <-chan struct{}, until time.Time) bool {
	d := time.Until(until)
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return false
	case <-t.C:
		return true
	}
}
