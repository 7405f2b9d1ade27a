package proxy

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ppiankov/exposure/internal/util"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ProbeResult is the outcome of one endpoint health probe
type ProbeResult struct {
	Address    string        `json:"address"`
	OK         bool          `json:"ok"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
	Error      string        `json:"error,omitempty"`
	Skipped    bool          `json:"skipped,omitempty"` // Probe cancelled, health left unchanged
}

// Prober checks endpoints before a scan and feeds the outcomes into the Manager
type Prober struct {
	manager    *Manager
	probeURL   string
	timeout    time.Duration
	maxWorkers int
}

// NewProber creates a prober for the manager's endpoints
func NewProber(manager *Manager, probeURL string, timeout time.Duration, maxWorkers int) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	return &Prober{
		manager:    manager,
		probeURL:   probeURL,
		timeout:    timeout,
		maxWorkers: maxWorkers,
	}
}

// Probe checks every endpoint concurrently and reports each outcome to the Manager
func (p *Prober) Probe(ctx context.Context) []ProbeResult {
	endpoints := p.manager.Snapshot()
	results := make([]ProbeResult, len(endpoints))
	if len(endpoints) == 0 {
		return results
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, p.maxWorkers)

	for i, ep := range endpoints {
		wg.Add(1)
		go func(idx int, address string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = ProbeResult{Address: address, Error: ctx.Err().Error(), Skipped: true}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = p.probeOne(ctx, address)
		}(i, ep.Address)
	}

	wg.Wait()

	for _, r := range results {
		if r.Skipped {
			continue
		}
		if r.OK {
			p.manager.Release(r.Address, Success)
		} else {
			p.manager.Release(r.Address, Failure)
		}
	}

	return results
}

func (p *Prober) probeOne(ctx context.Context, address string) ProbeResult {
	result := ProbeResult{Address: address}

	client, err := util.NewHTTPClient(address, p.timeout, false)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.probeURL, nil)
	if err != nil {
		result.Error = eris.Wrap(err, "create probe request").Error()
		return result
	}

	start := time.Now()
	resp, err := client.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = eris.Wrap(err, "probe request").Error()
		result.Skipped = ctx.Err() != nil
		zap.L().Debug("proxy probe failed", zap.String("proxy", address), zap.Error(err))
		return result
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	result.StatusCode = resp.StatusCode
	result.OK = resp.StatusCode >= 200 && resp.StatusCode < 400
	if !result.OK {
		result.Error = http.StatusText(resp.StatusCode)
	}
	return result
}
