package worker

import (
	"context"
	"math/rand"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// RateLimiter gates fetches: a global cap on in-flight requests plus a
// randomized minimum delay between successive fetches to the same domain.
type RateLimiter struct {
	gate chan struct{}

	mu          sync.Mutex
	nextAllowed map[string]time.Time
	turns       map[string]chan struct{} // One token per domain; waiters queue FIFO on it

	minDelay   time.Duration
	maxDelay   time.Duration
	throughput *rate.Limiter // Optional global requests-per-second ceiling

	// jitterFunc returns a value in [0,1); injectable for tests.
	jitterFunc func() float64
}

// NewRateLimiter creates a limiter. requestsPerSecond <= 0 disables the global ceiling.
func NewRateLimiter(maxInFlight int, minDelay, maxDelay time.Duration, requestsPerSecond float64, burst int) *RateLimiter {
	if maxInFlight <= 0 {
		maxInFlight = 5
	}
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	if burst <= 0 {
		burst = 5
	}

	l := &RateLimiter{
		gate:        make(chan struct{}, maxInFlight),
		nextAllowed: make(map[string]time.Time),
		turns:       make(map[string]chan struct{}),
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		jitterFunc:  rand.Float64,
	}
	if requestsPerSecond > 0 {
		l.throughput = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return l
}

// BeforeFetch blocks until a fetch to domain is permitted. The caller must
// invoke release once the fetch completes to free its in-flight slot.
func (l *RateLimiter) BeforeFetch(ctx context.Context, domain string) (release func(), err error) {
	domain = strings.ToLower(domain)
	turn := l.turn(domain)

	// Serialize per domain so the delay is measured between actual starts
	select {
	case turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-turn }()

	l.mu.Lock()
	wait := time.Until(l.nextAllowed[domain])
	l.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	select {
	case l.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if l.throughput != nil {
		if err := l.throughput.Wait(ctx); err != nil {
			<-l.gate
			return nil, err
		}
	}

	l.mu.Lock()
	l.nextAllowed[domain] = time.Now().Add(l.delay())
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { <-l.gate })
	}, nil
}

// InFlight returns the number of fetches currently holding a slot
func (l *RateLimiter) InFlight() int {
	return len(l.gate)
}

// turn returns the domain's token channel, creating it if needed
func (l *RateLimiter) turn(domain string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.turns[domain]
	if !ok {
		t = make(chan struct{}, 1)
		l.turns[domain] = t
	}
	return t
}

// delay picks a random interval in [minDelay, maxDelay]
func (l *RateLimiter) delay() time.Duration {
	spread := l.maxDelay - l.minDelay
	if spread <= 0 {
		return l.minDelay
	}
	return l.minDelay + time.Duration(l.jitterFunc()*float64(spread))
}

// DomainKey reduces a URL or host to its registrable domain (eTLD+1), the unit of rate limiting
func DomainKey(rawURL string) string {
	host := rawURL
	if strings.Contains(rawURL, "://") {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return strings.ToLower(rawURL)
		}
		host = parsed.Hostname()
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if net.ParseIP(host) != nil {
		return host
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
