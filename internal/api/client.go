// Package api is the HTTP client of the game server
package api

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
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/citegame/internal/cache"
	"github.com/ppiankov/citegame/internal/logging"
	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/worker"
)

// retryWait pauses between read attempts and gives up when ctx ends.
// Tests swap it out.
var retryWait = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const (
	headerSession   = "X-Session-Token"
	headerRequestID = "X-Request-ID"
)

// Options configures a Client
type Options struct {
	BaseURL      string
	SessionToken string
	GameID       string
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxRetries   int
	HTTPProxy    string
	HTTPSProxy   string
	Limiter      *worker.Limiter // optional
	Cache        cache.Cache     // optional, review briefs only
	CacheTTL     time.Duration
}

// Client talks to one game server with one player session
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	userAgent  string
	maxBytes   int64
	maxRetries int
	limiter    *worker.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration

	mu     sync.RWMutex
	token  string
	gameID string
}

// NewClient creates a client for the server at opts.BaseURL
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", base.Scheme)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4_000_000
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	proxy, err := proxyFor(opts.HTTPProxy, opts.HTTPSProxy)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		baseURL:    base,
		userAgent:  opts.UserAgent,
		maxBytes:   opts.MaxBodyBytes,
		maxRetries: opts.MaxRetries,
		limiter:    opts.Limiter,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		token:      opts.SessionToken,
		gameID:     opts.GameID,
	}, nil
}

// NewClientFromConfig wires a client with the configured limiter and cache
func NewClientFromConfig(cfg *model.Config) (*Client, error) {
	opts := Options{
		BaseURL:      cfg.Server.BaseURL,
		SessionToken: cfg.Server.SessionToken,
		GameID:       cfg.Server.GameID,
		UserAgent:    cfg.Server.UserAgent,
		Timeout:      cfg.Server.Timeout,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		MaxRetries:   cfg.Server.MaxRetries,
		HTTPProxy:    cfg.Server.HTTPProxy,
		HTTPSProxy:   cfg.Server.HTTPSProxy,
		Limiter:      worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		CacheTTL:     cfg.Cache.DiskTTL,
	}
	if cfg.Cache.Enabled {
		opts.Cache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}
	return NewClient(opts)
}

// SetSession replaces the session token and game id, e.g. after Join
func (c *Client) SetSession(token, gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.gameID = gameID
}

// GameID returns the game this client is bound to
func (c *Client) GameID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gameID
}

func (c *Client) session() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.gameID
}

// Brief loads the brief of the current phase with the team's own swaps or flags
func (c *Client) Brief(ctx context.Context) (*model.BriefPayload, error) {
	var out model.BriefPayload
	if err := c.get(ctx, "/api/brief", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Phase polls the current phase once. Pollers retry on their next tick, so a
// failed poll never retries in place. Without a session it falls back to the
// unauthenticated game_id query the server allows.
func (c *Client) Phase(ctx context.Context) (model.PhaseState, error) {
	var query url.Values
	if token, gameID := c.session(); token == "" && gameID != "" {
		query = url.Values{"game_id": {gameID}}
	}

	var out model.PhaseState
	if err := c.read(ctx, "/api/game/phase", query, &out, 0); err != nil {
		return model.PhaseState{}, err
	}
	return out, nil
}

// Status loads the teams and players of the game
func (c *Client) Status(ctx context.Context) (*model.GameStatus, error) {
	var out model.GameStatus
	if err := c.get(ctx, "/api/game/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Progress loads the team's swap and flag counts
func (c *Client) Progress(ctx context.Context) (*model.TeamProgress, error) {
	var out model.TeamProgress
	if err := c.get(ctx, "/api/team/progress", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Scoreboard loads the final results
func (c *Client) Scoreboard(ctx context.Context) (*model.Scoreboard, error) {
	var out model.Scoreboard
	if err := c.get(ctx, "/api/scoreboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReviewBrief loads the brief a fabrication team produced, annotated with what
// was caught. Review briefs do not change once revealed, so they are cached.
func (c *Client) ReviewBrief(ctx context.Context, fabTeamID string) (*model.ReviewBrief, error) {
	_, gameID := c.session()
	key := cache.Key(c.baseURL.String(), gameID, "review", fabTeamID)

	var out model.ReviewBrief
	if c.cache != nil && cache.GetJSON(c.cache, key, &out) {
		logging.Debug("review brief cache hit", "team", fabTeamID)
		return &out, nil
	}

	if err := c.get(ctx, "/api/game/review-brief", url.Values{"fab_team_id": {fabTeamID}}, &out); err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := cache.SetJSON(c.cache, key, &out, c.cacheTTL); err != nil {
			logging.Warn("cache review brief", "team", fabTeamID, "err", err)
		}
	}
	return &out, nil
}

// Swap commits a swap
func (c *Client) Swap(ctx context.Context, req model.SwapRequest) error {
	return c.mutate(ctx, "/api/citation/swap", req, nil)
}

// Unswap removes a committed swap
func (c *Client) Unswap(ctx context.Context, citationID string) error {
	return c.mutate(ctx, "/api/citation/unswap", map[string]string{"citation_id": citationID}, nil)
}

// Flag commits a verdict
func (c *Client) Flag(ctx context.Context, req model.FlagRequest) error {
	return c.mutate(ctx, "/api/citation/flag", req, nil)
}

// Join enters a game in its lobby and adopts the issued session
func (c *Client) Join(ctx context.Context, gameCode, playerName string) (*model.JoinResponse, error) {
	req := model.JoinRequest{
		GameCode:   strings.ToUpper(strings.TrimSpace(gameCode)),
		PlayerName: strings.TrimSpace(playerName),
	}
	var out model.JoinResponse
	if err := c.mutate(ctx, "/api/join", req, &out); err != nil {
		return nil, err
	}
	c.SetSession(out.SessionToken, out.GameID)
	return &out, nil
}

// get reads JSON, retrying network errors and 5xx/429 replies with backoff
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.read(ctx, path, query, out, c.maxRetries)
}

func (c *Client) read(ctx context.Context, path string, query url.Values, out any, retries int) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := retryWait(ctx, backoff(attempt)); err != nil {
				return err
			}
		}

		body, err := c.do(ctx, http.MethodGet, path, query, nil)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			return nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		logging.Debug("retrying read", "path", path, "attempt", attempt+1, "err", err)
	}
	return lastErr
}

// mutate posts once. Server refusals become *MutationError; a reply of
// {"ok": false} counts as a refusal too.
func (c *Client) mutate(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	body, err := c.do(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			logging.Warn("mutation rejected", "path", path, "status", statusErr.Status, "message", statusErr.Message)
			return &MutationError{Endpoint: path, Status: statusErr.Status, Message: statusErr.Message}
		}
		return err
	}

	var ack struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &ack); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if (ack.OK != nil && !*ack.OK) || ack.Error != "" {
		logging.Warn("mutation rejected", "path", path, "message", ack.Error)
		return &MutationError{Endpoint: path, Status: http.StatusOK, Message: ack.Error}
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, worker.EndpointKey(method, path)); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token, _ := c.session(); token != "" {
		req.Header.Set(headerSession, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Endpoint: path, Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage extracts the {"error": "..."} message the server sends with failures
func errorMessage(body []byte) string {
	var reply struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &reply) == nil {
		return reply.Error
	}
	return ""
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt-1)) * 250 * time.Millisecond
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	return d
}
