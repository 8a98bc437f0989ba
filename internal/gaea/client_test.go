package gaea

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gaeakeeper/internal/accounts"
	logx "gaeakeeper/pkg/logx"
)

func testAccount() accounts.Account {
	return accounts.Account{
		Name:      "alice",
		BrowserID: "browser-1",
		Token:     "tok-abcdef",
		UID:       "u-1",
	}
}

func testSession(t *testing.T, srv *httptest.Server, mut func(*Config)) *Session {
	t.Helper()
	cfg := Config{
		BaseURL:    srv.URL,
		RetryDelay: time.Millisecond,
	}
	if mut != nil {
		mut(&cfg)
	}
	c := New(cfg, nil, logx.Nop())
	return c.Session(testAccount())
}

func respond(w http.ResponseWriter, env any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env)
}

func TestUnauthorizedIsTerminalWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := testSession(t, srv, func(c *Config) { c.EarningsAttempts = 5 })
	_, err := s.EarningInfo(context.Background())
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("server saw %d calls, want 1 (terminal must not retry)", n)
	}
}

func TestForbiddenIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := testSession(t, srv, nil)
	_, err := s.Ping(context.Background())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if !Terminal(err) {
		t.Fatal("Terminal() must be true for ErrForbidden")
	}
}

func TestServerErrorRetriesToAttemptBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := testSession(t, srv, func(c *Config) { c.PingAttempts = 3 })
	_, err := s.Ping(context.Background())

	var te *TransientError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransientError", err)
	}
	if te.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", te.Status)
	}
	if Terminal(err) {
		t.Fatal("transient failure must not classify as terminal")
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("server saw %d calls, want 3", n)
	}
}

func TestTransientRecoveryMidRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		respond(w, map[string]any{
			"code": 200, "success": true, "msg": "ok",
			"data": map[string]any{"total_total": 3100, "today_total": 120, "today_uptime": 90},
		})
	}))
	defer srv.Close()

	s := testSession(t, srv, func(c *Config) { c.EarningsAttempts = 5 })
	e, err := s.EarningInfo(context.Background())
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if e.TotalPoints != 3100 || e.TodayPoints != 120 {
		t.Fatalf("earnings = %+v", e)
	}
	if got := e.UptimeHours(); got != 1.5 {
		t.Fatalf("uptime hours = %v, want 1.5", got)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("server saw %d calls, want 3", n)
	}
}

func TestUnsuccessfulBodyIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]any{"code": 400, "success": false, "msg": "mission not ready"})
	}))
	defer srv.Close()

	s := testSession(t, srv, func(c *Config) { c.MissionAttempts = 2 })
	err := s.CompleteMission(context.Background(), "m-1")

	var te *TransientError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransientError", err)
	}
	if te.Msg != "mission not ready" {
		t.Fatalf("msg = %q", te.Msg)
	}
}

func TestInBodyAuthExpiryIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(w, map[string]any{"code": 401, "success": false, "msg": "token invalid"})
	}))
	defer srv.Close()

	s := testSession(t, srv, func(c *Config) { c.EarningsAttempts = 5 })
	_, err := s.EarningInfo(context.Background())
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("server saw %d calls, want 1", n)
	}
}

func TestPingRequestShape(t *testing.T) {
	var gotAuth, gotOrigin string
	var gotBody pingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOrigin = r.Header.Get("Origin")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		respond(w, map[string]any{"code": 200, "success": true, "data": map[string]any{"score": 99.5}})
	}))
	defer srv.Close()

	s := testSession(t, srv, nil)
	p, err := s.Ping(context.Background())
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if p.Score != 99.5 {
		t.Fatalf("score = %v", p.Score)
	}
	if gotAuth != "Bearer tok-abcdef" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotOrigin != extensionOrigin {
		t.Fatalf("origin = %q, want extension origin", gotOrigin)
	}
	if gotBody.BrowserID != "browser-1" || gotBody.UID != "u-1" {
		t.Fatalf("body = %+v", gotBody)
	}
	if gotBody.Version != extensionVersion {
		t.Fatalf("version = %q, want %q", gotBody.Version, extensionVersion)
	}
	if gotBody.Timestamp == 0 {
		t.Fatal("timestamp not set")
	}
}

func TestWebpageProfileUsesDashboardOrigin(t *testing.T) {
	var gotOrigin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrigin = r.Header.Get("Origin")
		respond(w, map[string]any{"code": 200, "success": true, "data": map[string]any{"score": 1}})
	}))
	defer srv.Close()

	s := testSession(t, srv, func(c *Config) { c.PingProfile = ProfileWebpage })
	if _, err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if gotOrigin != webpageOrigin {
		t.Fatalf("origin = %q, want webpage origin", gotOrigin)
	}
}

func TestCompleteTrainingAlreadyDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]any{"code": 400, "success": false, "msg": "AI training already completed today"})
	}))
	defer srv.Close()

	s := testSession(t, srv, func(c *Config) { c.TrainingAttempts = 1 })
	tr, err := s.CompleteTraining(context.Background())
	if err != nil {
		t.Fatalf("training: %v", err)
	}
	if !tr.AlreadyCompleted {
		t.Fatal("expected AlreadyCompleted")
	}
}

func TestDailyRewardsDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]any{
			"code": 200, "success": true,
			"data": map[string]any{
				"claimed_today": false,
				"list": []map[string]any{
					{"id": "r-1", "claimed": true},
					{"id": "r-2", "claimed": false},
				},
			},
		})
	}))
	defer srv.Close()

	s := testSession(t, srv, nil)
	st, err := s.DailyRewards(context.Background())
	if err != nil {
		t.Fatalf("daily rewards: %v", err)
	}
	if st.ClaimedToday || len(st.Items) != 2 || st.Items[1].ID != "r-2" {
		t.Fatalf("status = %+v", st)
	}
}

func TestSessionDropsUnsupportedProxy(t *testing.T) {
	c := New(Config{}, nil, logx.Nop())
	acc := testAccount()
	acc.Proxy = "socks4://1.2.3.4:1080"

	s := c.Session(acc)
	tr, ok := s.httpc.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport type %T", s.httpc.Transport)
	}
	if tr.Proxy != nil {
		t.Fatal("socks4 proxy should be dropped, session must run direct")
	}
}

func TestProxyDisplay(t *testing.T) {
	c := New(Config{}, nil, logx.Nop())
	if got := c.Session(testAccount()).ProxyDisplay(); got != "no proxy" {
		t.Fatalf("ProxyDisplay = %q", got)
	}
	acc := testAccount()
	acc.Proxy = "http://1.2.3.4:8080"
	if got := c.Session(acc).ProxyDisplay(); got != "http://1.2.3.4:8080" {
		t.Fatalf("ProxyDisplay = %q", got)
	}
}
