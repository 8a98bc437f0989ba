package gaea

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"gaeakeeper/internal/accounts"
	logx "gaeakeeper/pkg/logx"
)

const (
	DefaultBaseURL = "https://api.aigaea.net"

	// Ping request profiles. The extension profile is what the browser
	// extension sends; the webpage profile mimics the dashboard.
	ProfileExtension = "extension"
	ProfileWebpage   = "webpage"

	extensionVersion = "3.0.1"
	webpageVersion   = "1.0.1"
	extensionOrigin  = "chrome-extension://cpjicfogbgognnifjgmenmaldnmeeeib"
	webpageOrigin    = "https://app.aigaea.net"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"
)

// Config holds fleet-wide client policy. Attempt counts differ per
// operation: low-value polls retry harder, heartbeats give up sooner.
type Config struct {
	BaseURL        string
	PingProfile    string // ProfileExtension (default) or ProfileWebpage
	RequestTimeout time.Duration
	RetryDelay     time.Duration
	UserAgent      string

	PingAttempts     int
	EarningsAttempts int
	MissionAttempts  int
	RewardAttempts   int
	TrainingAttempts int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PingProfile != ProfileWebpage {
		c.PingProfile = ProfileExtension
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.PingAttempts <= 0 {
		c.PingAttempts = 2
	}
	if c.EarningsAttempts <= 0 {
		c.EarningsAttempts = 5
	}
	if c.MissionAttempts <= 0 {
		c.MissionAttempts = 3
	}
	if c.RewardAttempts <= 0 {
		c.RewardAttempts = 3
	}
	if c.TrainingAttempts <= 0 {
		c.TrainingAttempts = 3
	}
	return c
}

// Client is the fleet-wide remote-operation factory. It owns shared policy
// (base URL, retry delay, rate limiter) but no connection state; per-account
// connections live in Sessions.
type Client struct {
	cfg     Config
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, limiter *rate.Limiter, log logx.Logger) *Client {
	return &Client{cfg: cfg.withDefaults(), limiter: limiter, log: log}
}

// Session binds the client to one account: bearer credential, device
// identity and optional proxy. Each session has its own transport so proxy
// and connection state are never shared across accounts.
type Session struct {
	c   *Client
	acc accounts.Account

	httpc *http.Client
	log   logx.Logger
}

// Session builds the per-account session. A proxy with an unsupported
// scheme (socks4) is dropped with a warning; the account runs direct.
func (c *Client) Session(acc accounts.Account) *Session {
	log := c.log.With(
		logx.String("account", acc.Masked()),
		logx.String("proxy", proxyDisplay(acc.Proxy)),
	)

	tr := &http.Transport{}
	if acc.Proxy != "" {
		pu, err := url.Parse(acc.Proxy)
		if err != nil || pu.Scheme == "socks4" {
			log.Warn("unsupported proxy, running direct", logx.String("uri", acc.Proxy))
		} else {
			tr.Proxy = http.ProxyURL(pu)
		}
	}

	return &Session{
		c:     c,
		acc:   acc,
		httpc: &http.Client{Transport: tr, Timeout: c.cfg.RequestTimeout},
		log:   log,
	}
}

func (s *Session) Account() accounts.Account { return s.acc }

// ProxyDisplay is the proxy string safe for logs and notifications.
func (s *Session) ProxyDisplay() string { return proxyDisplay(s.acc.Proxy) }

func proxyDisplay(p string) string {
	if p == "" {
		return "no proxy"
	}
	return p
}

// envelope is the service's standard response shape.
type envelope struct {
	Code    int             `json:"code"`
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// do performs one classified remote call with bounded retry.
//
// Classification precedence: 401 (or an in-body auth-expired code) is
// ErrTokenExpired, 403 is ErrForbidden — both short-circuit retries.
// Everything else (transport errors, other statuses, success=false bodies)
// is transient and retried up to maxAttempts with a fixed delay.
func (s *Session) do(ctx context.Context, op, method, path string, body any, maxAttempts int) (json.RawMessage, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.c.cfg.RetryDelay):
			}
			s.log.Debug("retrying remote call", logx.String("op", op), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))
		}

		data, err := s.once(ctx, op, method, path, body)
		if err == nil {
			return data, nil
		}
		if Terminal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Session) once(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	if s.c.limiter != nil {
		if err := s.c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal body: %w", op, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.c.cfg.BaseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	s.setHeaders(req, op)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransientError{Op: op, Status: resp.StatusCode, Err: err}
	}

	// Advisory raw-response trace; must never affect classification.
	if s.log.Enabled(logx.LevelTrace) {
		s.log.Trace("raw response", logx.String("op", op), logx.Int("status", resp.StatusCode), logx.String("body", truncate(string(raw), 200)))
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, ErrTokenExpired
	case http.StatusForbidden:
		return nil, ErrForbidden
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransientError{Op: op, Status: resp.StatusCode, Msg: truncate(string(raw), 200)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &TransientError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if authExpired(env) {
		return nil, ErrTokenExpired
	}
	if !env.Success {
		return nil, &TransientError{Op: op, Status: resp.StatusCode, Msg: env.Msg}
	}
	return env.Data, nil
}

// authExpired catches services that report credential expiry inside a 2xx
// body instead of a 401 status.
func authExpired(env envelope) bool {
	if env.Success {
		return false
	}
	if env.Code == http.StatusUnauthorized {
		return true
	}
	msg := strings.ToLower(env.Msg)
	return strings.Contains(msg, "token") && (strings.Contains(msg, "expired") || strings.Contains(msg, "invalid"))
}

func (s *Session) setHeaders(req *http.Request, op string) {
	h := req.Header
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-US")
	h.Set("Authorization", "Bearer "+s.acc.Token)
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", s.c.cfg.UserAgent)

	// Heartbeats impersonate either the extension or the dashboard;
	// everything else looks like the dashboard.
	if op == "ping" && s.c.cfg.PingProfile == ProfileExtension {
		h.Set("Origin", extensionOrigin)
	} else {
		h.Set("Origin", webpageOrigin)
		h.Set("Referer", webpageOrigin+"/")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
