// Package proxy tracks proxy endpoint health and picks endpoints for fetches.
package proxy

import (
	"sync"
	"time"

	"github.com/ppiankov/exposure/internal/model"
	"go.uber.org/zap"
)

// Outcome is the health signal reported after using an endpoint
type Outcome int

const (
	Success Outcome = iota
	Failure
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

// Manager owns the proxy table. Endpoint state is mutated only through Release.
type Manager struct {
	mu        sync.Mutex
	endpoints []*model.ProxyEndpoint
	byAddress map[string]*model.ProxyEndpoint

	threshold    int
	baseCooldown time.Duration
	maxCooldown  time.Duration

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewManager creates a manager for the configured endpoints. Duplicate addresses are dropped.
func NewManager(cfg model.ProxyConfig) *Manager {
	m := &Manager{
		byAddress:    make(map[string]*model.ProxyEndpoint),
		threshold:    cfg.FailureThreshold,
		baseCooldown: cfg.BaseCooldown,
		maxCooldown:  cfg.MaxCooldown,
		nowFunc:      time.Now,
	}
	if m.threshold <= 0 {
		m.threshold = 3
	}
	if m.baseCooldown <= 0 {
		m.baseCooldown = 30 * time.Second
	}
	if m.maxCooldown < m.baseCooldown {
		m.maxCooldown = 30 * time.Minute
	}

	for _, addr := range cfg.Endpoints {
		if addr == "" || m.byAddress[addr] != nil {
			continue
		}
		ep := &model.ProxyEndpoint{Address: addr}
		m.endpoints = append(m.endpoints, ep)
		m.byAddress[addr] = ep
	}

	return m
}

// Len returns the number of configured endpoints
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.endpoints)
}

// Acquire returns the least-recently-used endpoint not in cooldown.
// Returns ErrProxyUnavailable when the pool is empty or every endpoint is cooling down.
func (m *Manager) Acquire() (model.ProxyEndpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	var best *model.ProxyEndpoint
	for _, ep := range m.endpoints {
		if ep.InCooldown(now) {
			continue
		}
		// Strict comparison keeps configuration order among equally old endpoints
		if best == nil || ep.LastUsed.Before(best.LastUsed) {
			best = ep
		}
	}

	if best == nil {
		return model.ProxyEndpoint{}, model.ErrProxyUnavailable
	}

	best.LastUsed = now
	return *best, nil
}

// Release records the outcome of using an endpoint.
// Failures past the threshold open the breaker for base*2^(failures-threshold), capped.
func (m *Manager) Release(address string, outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ep, ok := m.byAddress[address]
	if !ok {
		return
	}

	if outcome == Success {
		ep.ConsecutiveFailures = 0
		ep.CooldownUntil = time.Time{}
		return
	}

	ep.ConsecutiveFailures++
	if ep.ConsecutiveFailures < m.threshold {
		return
	}

	cooldown := m.cooldownFor(ep.ConsecutiveFailures)
	ep.CooldownUntil = m.nowFunc().Add(cooldown)

	zap.L().Warn("proxy cooling down",
		zap.String("proxy", address),
		zap.Int("consecutive_failures", ep.ConsecutiveFailures),
		zap.Duration("cooldown", cooldown),
	)
}

// cooldownFor doubles the base interval per failure beyond the threshold
func (m *Manager) cooldownFor(failures int) time.Duration {
	cooldown := m.baseCooldown
	for i := m.threshold; i < failures; i++ {
		cooldown *= 2
		if cooldown >= m.maxCooldown {
			return m.maxCooldown
		}
	}
	if cooldown > m.maxCooldown {
		return m.maxCooldown
	}
	return cooldown
}

// NextAvailable returns the shortest remaining cooldown, zero if an endpoint is usable now
func (m *Manager) NextAvailable() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	var shortest time.Duration = -1
	for _, ep := range m.endpoints {
		if !ep.InCooldown(now) {
			return 0
		}
		remaining := ep.CooldownUntil.Sub(now)
		if shortest < 0 || remaining < shortest {
			shortest = remaining
		}
	}
	if shortest < 0 {
		return 0
	}
	return shortest
}

// Snapshot returns a copy of the endpoint table for reporting
func (m *Manager) Snapshot() []model.ProxyEndpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.ProxyEndpoint, len(m.endpoints))
	for i, ep := range m.endpoints {
		out[i] = *ep
	}
	return out
}
