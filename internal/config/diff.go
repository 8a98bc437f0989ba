package config

import "encoding/json"

// ChangedSections reports which top-level config sections differ between two
// configs. It is used only for reload logging, so a marshal-and-compare is
// good enough.
func ChangedSections(old, cur *Config) []string {
	if old == nil || cur == nil {
		return nil
	}

	sections := []struct {
		name     string
		old, cur any
	}{
		{"accounts_file", old.AccountsFile, cur.AccountsFile},
		{"use_proxy", old.UseProxy, cur.UseProxy},
		{"base_url", old.BaseURL, cur.BaseURL},
		{"ping_profile", old.PingProfile, cur.PingProfile},
		{"request_timeout", old.RequestTimeout, cur.RequestTimeout},
		{"retry_delay", old.RetryDelay, cur.RetryDelay},
		{"rate_per_sec", old.RatePerSec, cur.RatePerSec},
		{"startup_jitter_max", old.StartupJitterMax, cur.StartupJitterMax},
		{"retention_days", old.RetentionDays, cur.RetentionDays},
		{"jobs", old.Jobs, cur.Jobs},
		{"state", old.State, cur.State},
		{"logging", old.Logging, cur.Logging},
		{"telegram", old.Telegram, cur.Telegram},
	}

	var changed []string
	for _, s := range sections {
		if !jsonEqual(s.old, s.cur) {
			changed = append(changed, s.name)
		}
	}
	return changed
}

func jsonEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}
