package config

// Config is the on-disk configuration (YAML or JSON).
//
// All durations are Go duration strings (e.g. "5s", "10m"). Zero/omitted
// values fall back to the documented defaults at mapping time; the raw
// strings are kept here so a reload can be re-validated as a whole.
type Config struct {
	// AccountsFile is the CSV account list
	// (header: Name,Browser_ID,Token,Proxy,UID).
	AccountsFile string `json:"accounts_file"`

	// UseProxy enables the per-account proxy column. When false, all
	// accounts connect directly (the -no-proxy flag forces this too).
	UseProxy *bool `json:"use_proxy,omitempty"`

	// BaseURL of the remote service. Default: https://api.aigaea.net
	BaseURL string `json:"base_url,omitempty"`

	// PingProfile selects the heartbeat request shape: "extension" (default)
	// or "webpage".
	PingProfile string `json:"ping_profile,omitempty"`

	// RequestTimeout bounds a single remote call. Default "60s".
	RequestTimeout string `json:"request_timeout,omitempty"`

	// RetryDelay is the fixed delay between retry attempts of one remote
	// call. Default "5s".
	RetryDelay string `json:"retry_delay,omitempty"`

	// RatePerSec caps outbound requests fleet-wide (token bucket).
	// 0 means default (5/s).
	RatePerSec int `json:"rate_per_sec,omitempty"`

	// StartupJitterMax is the per-account randomized start delay window.
	// Default "100s".
	StartupJitterMax string `json:"startup_jitter_max,omitempty"`

	// RetentionDays controls how long daily-completion records are kept
	// before the midnight maintenance job prunes them. Default 7.
	RetentionDays int `json:"retention_days,omitempty"`

	Jobs     JobsConfig     `json:"jobs"`
	State    StateConfig    `json:"state"`
	Logging  LoggingConfig  `json:"logging"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
}

// JobsConfig holds per-job-kind knobs. Enabled is a pointer so "omitted"
// (use the default) is distinguishable from an explicit false.
type JobsConfig struct {
	Ping        IntervalJobConfig `json:"ping"`
	Earnings    IntervalJobConfig `json:"earnings"`
	DailyReward DailyJobConfig    `json:"daily_reward"`
	Training    TrainingJobConfig `json:"training"`
	Missions    DailyJobConfig    `json:"missions"`
}

type IntervalJobConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Interval string `json:"interval,omitempty"`
	RetryMax int    `json:"retry_max,omitempty"`
}

type DailyJobConfig struct {
	Enabled  *bool `json:"enabled,omitempty"`
	RetryMax int   `json:"retry_max,omitempty"`
}

type TrainingJobConfig struct {
	// Training defaults to disabled; it burns points.
	Enabled  *bool `json:"enabled,omitempty"`
	RetryMax int   `json:"retry_max,omitempty"`

	// MinPoints is the balance below which the claim is skipped for the
	// day. Default 2500.
	MinPoints int `json:"min_points,omitempty"`
}

// StateConfig controls the durable paused/completed store.
//
// Driver values:
//   - "file" (default): human-inspectable JSON documents
//   - "sqlite": single SQLite database file
type StateConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console *bool         `json:"console,omitempty"`
	File    LogFileConfig `json:"file,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// TelegramConfig configures the optional send-only notifier.
type TelegramConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}

// BoolOr resolves an optional bool against a default.
func BoolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
