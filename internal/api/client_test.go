package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/citegame/internal/cache"
	"github.com/ppiankov/citegame/internal/model"
	"github.com/ppiankov/citegame/internal/phasesync"
	"github.com/ppiankov/citegame/internal/worker"
)

func noSleep(t *testing.T) {
	t.Helper()
	orig := retryWait
	retryWait = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	t.Cleanup(func() { retryWait = orig })
}

func newTestClient(t *testing.T, url string, mutate func(*Options)) *Client {
	t.Helper()
	opts := Options{
		BaseURL:      url,
		SessionToken: "tok-1",
		GameID:       "g1",
		UserAgent:    "citegame-test",
		Timeout:      5 * time.Second,
		MaxRetries:   2,
	}
	if mutate != nil {
		mutate(&opts)
	}
	c, err := NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestClient_HeadersAndPhase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/game/phase" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Session-Token"); got != "tok-1" {
			t.Errorf("expected session header, got %q", got)
		}
		if _, err := uuid.Parse(r.Header.Get("X-Request-ID")); err != nil {
			t.Errorf("expected uuid request id, got %q", r.Header.Get("X-Request-ID"))
		}
		if r.Header.Get("User-Agent") != "citegame-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = fmt.Fprint(w, `{"phase":"fabrication","timer_end":"2026-03-01T12:00:00Z","team_id":"t1","team_name":"Blue"}`)
	}))
	defer server.Close()

	state, err := newTestClient(t, server.URL, nil).Phase(context.Background())
	if err != nil {
		t.Fatalf("Phase failed: %v", err)
	}
	if state.Phase != model.PhaseFabrication || state.TeamName != "Blue" {
		t.Errorf("unexpected state %+v", state)
	}
	if !state.Deadline.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected deadline %v", state.Deadline)
	}
}

func TestClient_PhaseWithoutSessionUsesGameID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Session-Token") != "" {
			t.Error("expected no session header")
		}
		if r.URL.Query().Get("game_id") != "g1" {
			t.Errorf("expected game_id query, got %q", r.URL.RawQuery)
		}
		_, _ = fmt.Fprint(w, `{"phase":"lobby","timer_end":null}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(o *Options) { o.SessionToken = "" })
	state, err := c.Phase(context.Background())
	if err != nil {
		t.Fatalf("Phase failed: %v", err)
	}
	if !state.Deadline.IsZero() {
		t.Errorf("expected no deadline, got %v", state.Deadline)
	}
}

func TestClient_PhaseIsSingleAttempt(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := newTestClient(t, server.URL, nil).Phase(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestRetryWait_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := retryWait(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("retryWait ignored cancellation for %v", elapsed)
	}
}

func TestClient_PhaseSyncStopsPromptlyWhileServerFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := model.DefaultConfig()
	cfg.Server.BaseURL = server.URL
	cfg.Server.GameID = "g1"
	cfg.Cache.Enabled = false
	c, err := NewClientFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}

	sync := phasesync.New(c, phasesync.Options{PollInterval: 10 * time.Millisecond})
	if err := sync.Start(context.Background(), model.PhaseFabrication, nil, nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	sync.Stop()
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Stop took %v while polls were failing", elapsed)
	}
}

func TestClient_ReadRetriesTransientFailures(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, `{"brief":{"paragraphs":[{"id":"p1","type":"body","text":"Hi"}]},"phase":"fabrication"}`)
	}))
	defer server.Close()

	payload, err := newTestClient(t, server.URL, nil).Brief(context.Background())
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(payload.Brief.Paragraphs) != 1 {
		t.Errorf("unexpected payload %+v", payload)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestClient_ReadDoesNotRetryClientErrors(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, `{"error":"Game not in reveal phase"}`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, nil).Scoreboard(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != 400 || statusErr.Message != "Game not in reveal phase" {
		t.Errorf("unexpected error %+v", statusErr)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", attempts.Load())
	}
}

func TestClient_MutationRejected(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = fmt.Fprint(w, `{"error":"Not in fabrication phase"}`)
	}))
	defer server.Close()

	err := newTestClient(t, server.URL, nil).Swap(context.Background(), model.SwapRequest{CitationID: "c1", HallucinationType: model.Misquotation, OptionID: "mq1"})
	if !errors.Is(err, ErrMutationRejected) {
		t.Fatalf("expected ErrMutationRejected, got %v", err)
	}
	var mutErr *MutationError
	if !errors.As(err, &mutErr) || mutErr.Message != "Not in fabrication phase" || mutErr.Endpoint != "/api/citation/swap" {
		t.Errorf("unexpected error %+v", mutErr)
	}
	if attempts.Load() != 1 {
		t.Errorf("mutations must not be retried, got %d attempts", attempts.Load())
	}
}

func TestClient_MutationOKFalse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"ok":false,"error":"locked"}`)
	}))
	defer server.Close()

	err := newTestClient(t, server.URL, nil).Flag(context.Background(), model.FlagRequest{CitationID: "c1", Verdict: model.VerdictFake})
	if !errors.Is(err, ErrMutationRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestClient_UnswapBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body["citation_id"] != "c7" {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	if err := newTestClient(t, server.URL, nil).Unswap(context.Background(), "c7"); err != nil {
		t.Fatalf("Unswap failed: %v", err)
	}
}

func TestClient_JoinAdoptsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/join":
			var req model.JoinRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.GameCode != "ABCD" || req.PlayerName != "Ada" {
				t.Errorf("unexpected join request %+v", req)
			}
			_, _ = fmt.Fprint(w, `{"player_id":"p1","session_token":"fresh","game_id":"g9","game_code":"ABCD"}`)
		case "/api/game/status":
			if r.Header.Get("X-Session-Token") != "fresh" {
				t.Errorf("expected joined session, got %q", r.Header.Get("X-Session-Token"))
			}
			_, _ = fmt.Fprint(w, `{"game_id":"g9","game_code":"ABCD","phase":"lobby","teams":[]}`)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(o *Options) { o.SessionToken = "" })
	resp, err := c.Join(context.Background(), " abcd ", " Ada ")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if resp.SessionToken != "fresh" || c.GameID() != "g9" {
		t.Errorf("unexpected join result %+v game %s", resp, c.GameID())
	}
	if _, err := c.Status(context.Background()); err != nil {
		t.Fatalf("Status failed: %v", err)
	}
}

func TestClient_ReviewBriefCached(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("fab_team_id") != "t2" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_, _ = fmt.Fprint(w, `{"brief":{"paragraphs":[]},"annotations":{"c1":{"hallucination_type":"misquotation","caught":true}},"fab_team_name":"Red"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(o *Options) {
		o.Cache = cache.NewMemoryCache(time.Minute, time.Minute)
	})
	for i := 0; i < 2; i++ {
		rb, err := c.ReviewBrief(context.Background(), "t2")
		if err != nil {
			t.Fatalf("ReviewBrief failed: %v", err)
		}
		if rb.FabTeamName != "Red" || rb.Annotations["c1"].Caught == nil || !*rb.Annotations["c1"].Caught {
			t.Errorf("unexpected review brief %+v", rb)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected second read served from cache, got %d hits", hits.Load())
	}
}

func TestClient_RateLimitedByContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	limiter := worker.NewLimiter(0.001, 1)
	c := newTestClient(t, server.URL, func(o *Options) { o.Limiter = limiter })
	if err := c.Unswap(context.Background(), "c1"); err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Unswap(ctx, "c1"); err == nil {
		t.Error("expected rate-limit wait to fail with short deadline")
	}
}

func TestClient_ProgressAndScoreboard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/team/progress":
			_, _ = w.Write([]byte(`{"swap_count": 3, "flag_count": 1, "review_count": 4, "swaps": [], "flags": []}`))
		case "/api/scoreboard":
			_, _ = w.Write([]byte(`{"scores": {"t1": {"team_name": "Red", "total_score": 7}}, "type_stats": {}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	progress, err := c.Progress(context.Background())
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if progress.SwapCount != 3 || progress.FlagCount != 1 || progress.ReviewCount != 4 {
		t.Errorf("unexpected progress %+v", progress)
	}

	board, err := c.Scoreboard(context.Background())
	if err != nil {
		t.Fatalf("Scoreboard failed: %v", err)
	}
	if board.Scores["t1"].TeamName != "Red" || board.Scores["t1"].TotalScore != 7 {
		t.Errorf("unexpected scoreboard %+v", board)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient(Options{BaseURL: "ftp://example.com"}); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func TestProxyFor(t *testing.T) {
	fn, err := proxyFor("http://proxy:8080", "http://secure:8443")
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "https://example.com/api", nil)
	u, err := fn(req)
	if err != nil || u.Host != "secure:8443" {
		t.Errorf("expected https proxy, got %v %v", u, err)
	}
	req = httptest.NewRequest(http.MethodGet, "http://example.com/api", nil)
	u, err = fn(req)
	if err != nil || u.Host != "proxy:8080" {
		t.Errorf("expected http proxy, got %v %v", u, err)
	}

	fn, err = proxyFor("http://proxy:8080", "")
	if err != nil {
		t.Fatal(err)
	}
	u, err = fn(httptest.NewRequest(http.MethodGet, "https://example.com/api", nil))
	if err != nil || u.Host != "proxy:8080" {
		t.Errorf("expected https to fall back to http proxy, got %v %v", u, err)
	}
}

func TestNewClient_InvalidProxy(t *testing.T) {
	if _, err := NewClient(Options{BaseURL: "http://localhost", HTTPProxy: "://bad"}); err == nil {
		t.Error("expected error for unparsable proxy")
	}
}
