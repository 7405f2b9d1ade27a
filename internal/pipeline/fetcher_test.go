package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/exposure/internal/cache"
	"github.com/ppiankov/exposure/internal/model"
	"github.com/ppiankov/exposure/internal/proxy"
)

func noSleep(t *testing.T) {
	t.Helper()
	orig := fetchSleepFunc
	fetchSleepFunc = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	t.Cleanup(func() { fetchSleepFunc = orig })
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.HTTP.Timeout = 5 * time.Second
	cfg.HTTP.RespectRobots = false
	return cfg
}

func newTestFetcher(t *testing.T, cfg *model.Config, proxies *proxy.Manager) *Fetcher {
	t.Helper()
	f, err := NewFetcher(cfg, proxies, nil, nil)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	return f
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	res := newTestFetcher(t, testConfig(), nil).Fetch(context.Background(), "q", server.URL)
	if res.Err != nil {
		t.Fatalf("Expected no error, got %v", res.Err)
	}
	if res.Body != "<html><body>OK</body></html>" || res.StatusCode != http.StatusOK {
		t.Errorf("Unexpected result: %+v", res)
	}
	if res.Query != "q" || res.Attempts != 1 || res.ProxyUsed != "" {
		t.Errorf("Unexpected metadata: %+v", res)
	}
}

func TestFetch_TransientThenSuccess(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()

	res := newTestFetcher(t, testConfig(), nil).Fetch(context.Background(), "q", server.URL)
	if res.Err != nil {
		t.Fatalf("Expected success after retries, got %v", res.Err)
	}
	if attempts.Load() != 3 || res.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got server=%d result=%d", attempts.Load(), res.Attempts)
	}
}

func TestFetch_LinearBackoff(t *testing.T) {
	var waits []time.Duration
	orig := fetchSleepFunc
	fetchSleepFunc = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	defer func() { fetchSleepFunc = orig }()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.HTTP.RetryBackoff = time.Second
	res := newTestFetcher(t, cfg, nil).Fetch(context.Background(), "q", server.URL)

	if !model.IsTransient(res.Err) {
		t.Fatalf("Expected transient error, got %v", res.Err)
	}
	if len(waits) != 2 || waits[0] != time.Second || waits[1] != 2*time.Second {
		t.Errorf("Expected linear backoff [1s 2s], got %v", waits)
	}
}

func TestFetch_PermanentFailureNotRetried(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	res := newTestFetcher(t, testConfig(), nil).Fetch(context.Background(), "q", server.URL)
	if res.Err == nil {
		t.Fatal("Expected error for 404, got nil")
	}
	if model.IsTransient(res.Err) {
		t.Error("404 must not be transient")
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts.Load())
	}
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", res.StatusCode)
	}
}

func TestFetch_429Retried(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()

	res := newTestFetcher(t, testConfig(), nil).Fetch(context.Background(), "q", server.URL)
	if res.Err != nil {
		t.Fatalf("Expected success after 429 retry, got %v", res.Err)
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestFetch_RobotsBlocked(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		pageHits.Add(1)
		_, _ = fmt.Fprint(w, "secret")
	}))
	defer server.Close()

	deadProxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadProxy.Close()

	cfg := testConfig()
	cfg.HTTP.RespectRobots = true
	cfg.Proxy.Endpoints = []string{deadProxy.URL}
	cfg.Proxy.FailureThreshold = 1
	proxies := proxy.NewManager(cfg.Proxy)
	f := newTestFetcher(t, cfg, proxies)

	res := f.Fetch(context.Background(), "q", server.URL+"/private/profile")
	if !errors.Is(res.Err, model.ErrPolicyBlocked) {
		t.Fatalf("Expected ErrPolicyBlocked, got %v", res.Err)
	}
	if pageHits.Load() != 0 || res.Attempts != 0 {
		t.Error("A blocked page must not be requested")
	}
	if snap := proxies.Snapshot(); snap[0].ConsecutiveFailures != 0 {
		t.Error("A policy block must not penalize the proxy")
	}
}

func TestFetch_ProxyFailureThenDirectFallback(t *testing.T) {
	noSleep(t)

	// A forward proxy receives the absolute target URL
	var proxied atomic.Int32
	badProxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer badProxy.Close()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "direct body")
	}))
	defer target.Close()

	cfg := testConfig()
	cfg.Proxy.Endpoints = []string{badProxy.URL}
	cfg.Proxy.FailureThreshold = 1
	cfg.Proxy.DirectFallback = true
	proxies := proxy.NewManager(cfg.Proxy)
	f := newTestFetcher(t, cfg, proxies)

	first := f.Fetch(context.Background(), "q", target.URL+"/a")
	if first.Err == nil || first.ProxyUsed != badProxy.URL {
		t.Fatalf("Expected failure through proxy, got %+v", first)
	}
	if proxied.Load() != 3 {
		t.Errorf("Expected 3 proxied attempts, got %d", proxied.Load())
	}
	snap := proxies.Snapshot()
	if snap[0].ConsecutiveFailures != 1 || snap[0].CooldownUntil.IsZero() {
		t.Errorf("Expected proxy in cooldown after exhausted retries, got %+v", snap[0])
	}

	second := f.Fetch(context.Background(), "q", target.URL+"/b")
	if second.Err != nil || second.Body != "direct body" || second.ProxyUsed != "" {
		t.Errorf("Expected direct fallback, got %+v", second)
	}
}

func TestFetch_ProxyUnavailableWithoutFallbackWaits(t *testing.T) {
	cfg := testConfig()
	cfg.Proxy.Endpoints = []string{"127.0.0.1:1"}
	cfg.Proxy.FailureThreshold = 1
	cfg.Proxy.DirectFallback = false
	proxies := proxy.NewManager(cfg.Proxy)
	proxies.Release("127.0.0.1:1", proxy.Failure)
	f := newTestFetcher(t, cfg, proxies)

	var waited time.Duration
	orig := fetchSleepFunc
	fetchSleepFunc = func(_ context.Context, d time.Duration) error {
		waited = d
		return context.DeadlineExceeded
	}
	defer func() { fetchSleepFunc = orig }()

	res := f.Fetch(context.Background(), "q", "http://example.invalid/")
	if !errors.Is(res.Err, model.ErrProxyUnavailable) {
		t.Fatalf("Expected ErrProxyUnavailable, got %v", res.Err)
	}
	if waited <= 0 {
		t.Error("Expected a wait for the shortest cooldown")
	}
}

func TestFetch_CacheHit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = fmt.Fprint(w, "cached body")
	}))
	defer server.Close()

	f, err := NewFetcher(testConfig(), nil, nil, cache.NewMemoryCache(time.Minute, time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	first := f.Fetch(context.Background(), "q", server.URL+"/p")
	second := f.Fetch(context.Background(), "q", server.URL+"/p#section")
	if first.FromCache || !second.FromCache {
		t.Errorf("Expected second fetch from cache: %+v %+v", first, second)
	}
	if second.Body != "cached body" || hits.Load() != 1 {
		t.Errorf("Expected one request, got %d", hits.Load())
	}
}

func searchServer(t *testing.T, searchHits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /search\n")
			return
		}
		searchHits.Add(1)
		_, _ = fmt.Fprint(w, `{"items":[]}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGet_HonorsRobotsByDefault(t *testing.T) {
	var searchHits atomic.Int32
	server := searchServer(t, &searchHits)

	cfg := testConfig()
	cfg.HTTP.RespectRobots = true
	if !cfg.HTTP.RobotsOnSearch {
		t.Fatal("Expected robots_on_search to default to true")
	}

	body, err := newTestFetcher(t, cfg, nil).Get(context.Background(), server.URL+"/search?q=x")
	if !errors.Is(err, model.ErrPolicyBlocked) {
		t.Fatalf("Expected ErrPolicyBlocked, got %v", err)
	}
	if body != "" || searchHits.Load() != 0 {
		t.Error("A disallowed search endpoint must not be requested")
	}
}

func TestGet_RobotsOnSearchDisabled(t *testing.T) {
	var searchHits atomic.Int32
	server := searchServer(t, &searchHits)

	cfg := testConfig()
	cfg.HTTP.RespectRobots = true
	cfg.HTTP.RobotsOnSearch = false

	body, err := newTestFetcher(t, cfg, nil).Get(context.Background(), server.URL+"/search?q=x")
	if err != nil || body != `{"items":[]}` {
		t.Errorf("Get = %q, %v", body, err)
	}
	if searchHits.Load() != 1 {
		t.Errorf("Expected 1 search request, got %d", searchHits.Load())
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"503", model.NewTransientFetchError(errors.New("unexpected status: 503"), 503), true},
		{"reset", model.NewTransientFetchError(errors.New("connection reset by peer"), 0), true},
		{"404", errors.New("unexpected status: 404"), false},
		{"canceled", context.Canceled, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}
