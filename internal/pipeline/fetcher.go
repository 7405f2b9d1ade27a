package pipeline

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/ppiankov/exposure/internal/cache"
	"github.com/ppiankov/exposure/internal/model"
	"github.com/ppiankov/exposure/internal/proxy"
	"github.com/ppiankov/exposure/internal/util"
	"github.com/ppiankov/exposure/internal/worker"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// fetchSleepFunc waits between retries and for proxy cooldowns. Tests override it.
var fetchSleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fetcher performs proxied, rate-limited, robots-aware fetches with retry
type Fetcher struct {
	clients        map[string]*http.Client // Keyed by proxy address, "" is direct
	proxies        *proxy.Manager
	limiter        *worker.RateLimiter
	robots         *util.RobotsChecker // Nil when robots are not honored
	robotsOnSearch bool
	cache          cache.Cache
	cacheTTL       time.Duration
	userAgents     []string
	maxBytes       int64
	maxRetries     int
	backoff        time.Duration
	directFallback bool
}

// NewFetcher builds one HTTP client per proxy endpoint plus a direct client.
// proxies and limiter may be nil.
func NewFetcher(cfg *model.Config, proxies *proxy.Manager, limiter *worker.RateLimiter, pageCache cache.Cache) (*Fetcher, error) {
	agents := cfg.HTTP.UserAgents
	if len(agents) == 0 {
		agents = model.DefaultConfig().HTTP.UserAgents
	}
	if pageCache == nil {
		pageCache = cache.Nop{}
	}

	f := &Fetcher{
		clients:        make(map[string]*http.Client),
		proxies:        proxies,
		limiter:        limiter,
		cache:          pageCache,
		cacheTTL:       cfg.Cache.TTL,
		userAgents:     agents,
		maxBytes:       cfg.HTTP.MaxBytes,
		maxRetries:     cfg.HTTP.MaxRetries,
		backoff:        cfg.HTTP.RetryBackoff,
		directFallback: cfg.Proxy.DirectFallback,
		robotsOnSearch: cfg.HTTP.RobotsOnSearch,
	}
	if f.maxBytes <= 0 {
		f.maxBytes = 2_000_000
	}
	if f.maxRetries < 0 {
		f.maxRetries = 0
	}

	direct, err := util.NewHTTPClient("", cfg.HTTP.Timeout, cfg.HTTP.InsecureTLS)
	if err != nil {
		return nil, eris.Wrap(err, "direct client")
	}
	f.clients[""] = direct

	if proxies != nil {
		for _, ep := range proxies.Snapshot() {
			client, err := util.NewHTTPClient(ep.Address, cfg.HTTP.Timeout, cfg.HTTP.InsecureTLS)
			if err != nil {
				return nil, eris.Wrapf(err, "proxy client %s", ep.Address)
			}
			f.clients[ep.Address] = client
		}
	}

	if cfg.HTTP.RespectRobots {
		f.robots = util.NewRobotsChecker(agents[0], cfg.HTTP.Timeout)
	}

	return f, nil
}

// Fetch retrieves a result page. It never returns an error value: every
// failure is recorded in FetchResult.Err.
func (f *Fetcher) Fetch(ctx context.Context, query, target string) model.FetchResult {
	return f.fetch(ctx, query, target, true)
}

// Get fetches a search endpoint. Robots policy applies unless
// http.robots_on_search is turned off.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (string, error) {
	res := f.fetch(ctx, "", rawURL, f.robotsOnSearch)
	return res.Body, res.Err
}

func (f *Fetcher) fetch(ctx context.Context, query, target string, checkPolicy bool) model.FetchResult {
	res := model.FetchResult{Query: query, URL: target}

	key := cache.PageKey(target)
	if body, ok := f.cache.Get(key); ok {
		res.Body = string(body)
		res.StatusCode = http.StatusOK
		res.FromCache = true
		return res
	}

	if checkPolicy && f.robots != nil {
		allowed, _, err := f.robots.CanFetch(ctx, target)
		if err != nil {
			res.Err = eris.Wrap(err, "check robots policy")
			return res
		}
		if !allowed {
			res.Err = model.ErrPolicyBlocked
			return res
		}
	}

	address, err := f.acquire(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.ProxyUsed = address
	client := f.clients[address]
	if client == nil {
		client = f.clients[""]
	}

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff
			if err := fetchSleepFunc(ctx, f.backoff*time.Duration(attempt)); err != nil {
				lastErr = err
				break
			}
			zap.L().Debug("retrying fetch", zap.String("host", hostOf(target)), zap.Int("attempt", attempt+1))
		}

		res.Attempts++
		body, status, err := f.attempt(ctx, client, target)
		res.StatusCode = status
		if err == nil {
			f.report(address, proxy.Success)
			res.Body = body
			if body != "" {
				_ = f.cache.Set(key, []byte(body), f.cacheTTL)
			}
			return res
		}

		lastErr = err
		if !isRetryableFetchError(err) || ctx.Err() != nil {
			break
		}
	}

	res.Err = lastErr
	switch {
	case ctx.Err() != nil:
		// Budget expiry says nothing about the endpoint
	case isRetryableFetchError(lastErr):
		f.report(address, proxy.Failure)
	default:
		// Permanent HTTP errors were still delivered through the endpoint
		f.report(address, proxy.Success)
	}

	zap.L().Debug("fetch failed",
		zap.String("host", hostOf(target)),
		zap.Int("attempts", res.Attempts),
		zap.Bool("proxied", address != ""),
		zap.Error(lastErr),
	)
	return res
}

// acquire picks a proxy address, "" meaning direct. With every proxy cooling
// down it either falls back to direct or waits for the shortest cooldown.
func (f *Fetcher) acquire(ctx context.Context) (string, error) {
	if f.proxies == nil || f.proxies.Len() == 0 {
		return "", nil
	}
	for {
		ep, err := f.proxies.Acquire()
		if err == nil {
			return ep.Address, nil
		}
		if !errors.Is(err, model.ErrProxyUnavailable) {
			return "", err
		}
		if f.directFallback {
			return "", nil
		}
		if err := fetchSleepFunc(ctx, f.proxies.NextAvailable()); err != nil {
			return "", eris.Wrap(model.ErrProxyUnavailable, "waiting for proxy cooldown")
		}
	}
}

func (f *Fetcher) attempt(ctx context.Context, client *http.Client, target string) (string, int, error) {
	if f.limiter != nil {
		release, err := f.limiter.BeforeFetch(ctx, worker.DomainKey(target))
		if err != nil {
			return "", 0, eris.Wrap(err, "rate limit wait")
		}
		defer release()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", 0, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.userAgents[rand.Intn(len(f.userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		return "", 0, model.NewTransientFetchError(eris.Wrap(err, "fetch"), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return "", resp.StatusCode, model.NewTransientFetchError(eris.Errorf("unexpected status: %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, eris.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", resp.StatusCode, model.NewTransientFetchError(eris.Wrap(err, "read body"), 0)
	}
	return string(body), resp.StatusCode, nil
}

func (f *Fetcher) report(address string, outcome proxy.Outcome) {
	if address != "" && f.proxies != nil {
		f.proxies.Release(address, outcome)
	}
}

// isRetryableFetchError reports timeouts, connection errors, 5xx and 429
func isRetryableFetchError(err error) bool {
	return err != nil && model.IsTransient(err)
}
