package gaea

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Earnings is the account's current point balance and uptime.
type Earnings struct {
	TotalPoints        int64 `json:"total_total"`
	TodayPoints        int64 `json:"today_total"`
	TodayUptimeMinutes int64 `json:"today_uptime"`
}

// UptimeHours converts today's uptime to hours for display.
func (e Earnings) UptimeHours() float64 { return float64(e.TodayUptimeMinutes) / 60 }

// EarningInfo polls the account's earning totals.
func (s *Session) EarningInfo(ctx context.Context) (*Earnings, error) {
	data, err := s.do(ctx, "earnings", http.MethodGet, "/api/earn/info", nil, s.c.cfg.EarningsAttempts)
	if err != nil {
		return nil, err
	}
	var e Earnings
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, &TransientError{Op: "earnings", Err: fmt.Errorf("decode data: %w", err)}
	}
	return &e, nil
}

// PingResult carries the network score returned by a heartbeat.
type PingResult struct {
	Score float64 `json:"score"`
}

type pingRequest struct {
	BrowserID string `json:"browser_id"`
	Timestamp int64  `json:"timestamp"`
	UID       string `json:"uid"`
	Version   string `json:"version"`
}

// Ping sends one heartbeat keeping the account's device session alive.
func (s *Session) Ping(ctx context.Context) (*PingResult, error) {
	version := extensionVersion
	if s.c.cfg.PingProfile == ProfileWebpage {
		version = webpageVersion
	}
	body := pingRequest{
		BrowserID: s.acc.BrowserID,
		Timestamp: time.Now().Unix(),
		UID:       s.acc.UID,
		Version:   version,
	}
	data, err := s.do(ctx, "ping", http.MethodPost, "/api/network/ping", body, s.c.cfg.PingAttempts)
	if err != nil {
		return nil, err
	}
	var p PingResult
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &TransientError{Op: "ping", Err: fmt.Errorf("decode data: %w", err)}
	}
	return &p, nil
}

// Mission statuses as reported by the service.
const MissionAvailable = "AVAILABLE"

type Mission struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	RewardPoints int64  `json:"points"`
	Status       string `json:"status"`
}

// Missions lists the account's missions, completed and pending.
func (s *Session) Missions(ctx context.Context) ([]Mission, error) {
	data, err := s.do(ctx, "missions", http.MethodGet, "/api/mission/list", nil, s.c.cfg.MissionAttempts)
	if err != nil {
		return nil, err
	}
	var list []Mission
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &TransientError{Op: "missions", Err: fmt.Errorf("decode data: %w", err)}
	}
	return list, nil
}

// CompleteMission claims one mission's reward.
func (s *Session) CompleteMission(ctx context.Context, id string) error {
	body := map[string]string{"mission_id": id}
	_, err := s.do(ctx, "mission-complete", http.MethodPost, "/api/mission/complete", body, s.c.cfg.MissionAttempts)
	return err
}

// DailyRewardStatus reports today's claim state and the claimable items.
type DailyRewardStatus struct {
	ClaimedToday bool         `json:"claimed_today"`
	Items        []RewardItem `json:"list"`
}

type RewardItem struct {
	ID      string `json:"id"`
	Claimed bool   `json:"claimed"`
}

// DailyRewards fetches the daily reward state for today.
func (s *Session) DailyRewards(ctx context.Context) (*DailyRewardStatus, error) {
	data, err := s.do(ctx, "daily-reward", http.MethodGet, "/api/reward/daily", nil, s.c.cfg.RewardAttempts)
	if err != nil {
		return nil, err
	}
	var st DailyRewardStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &TransientError{Op: "daily-reward", Err: fmt.Errorf("decode data: %w", err)}
	}
	return &st, nil
}

// ClaimResult is the reward payload of a daily claim.
type ClaimResult struct {
	Soul     int64 `json:"soul"`
	Core     int64 `json:"core"`
	Blindbox int64 `json:"blindbox"`
}

// ClaimDailyReward claims one daily reward item.
func (s *Session) ClaimDailyReward(ctx context.Context, id string) (*ClaimResult, error) {
	body := map[string]string{"id": id}
	data, err := s.do(ctx, "daily-claim", http.MethodPost, "/api/reward/claim", body, s.c.cfg.RewardAttempts)
	if err != nil {
		return nil, err
	}
	var cr ClaimResult
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, &TransientError{Op: "daily-claim", Err: fmt.Errorf("decode data: %w", err)}
	}
	return &cr, nil
}

// TrainingResult is the payload of a completed daily training.
type TrainingResult struct {
	BurnedPoints int64 `json:"burned"`
	Soul         int64 `json:"soul"`
	Blindbox     int64 `json:"blindbox"`

	// AlreadyCompleted is set when the service reports the training was
	// done earlier today; callers treat it like success.
	AlreadyCompleted bool `json:"-"`
}

// CompleteTraining runs the daily AI training claim. A response indicating
// the training already ran today is returned as success with
// AlreadyCompleted set, not as an error.
func (s *Session) CompleteTraining(ctx context.Context) (*TrainingResult, error) {
	data, err := s.do(ctx, "training", http.MethodPost, "/api/ai/complete", map[string]any{}, s.c.cfg.TrainingAttempts)
	if err != nil {
		if alreadyCompleted(err) {
			return &TrainingResult{AlreadyCompleted: true}, nil
		}
		return nil, err
	}
	var tr TrainingResult
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, &TransientError{Op: "training", Err: fmt.Errorf("decode data: %w", err)}
	}
	return &tr, nil
}

// alreadyCompleted detects the "already trained today" refusal, which the
// service delivers as an unsuccessful body rather than a dedicated status.
func alreadyCompleted(err error) bool {
	var te *TransientError
	if !errors.As(err, &te) {
		return false
	}
	msg := strings.ToLower(te.Msg)
	return strings.Contains(msg, "already") && (strings.Contains(msg, "complete") || strings.Contains(msg, "train") || strings.Contains(msg, "claim"))
}
