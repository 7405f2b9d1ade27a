package model

import "time"

// RiskLevel buckets a risk percentage
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// LevelFor maps a percentage to its level: <30 low, [30,60) medium, >=60 high
func LevelFor(percentage int) RiskLevel {
	switch {
	case percentage >= 60:
		return RiskHigh
	case percentage >= 30:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Rank orders levels for comparisons
func (l RiskLevel) Rank() int {
	switch l {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// RiskReport is the terminal, self-contained result of one scan
type RiskReport struct {
	ScanID          string             `json:"scan_id"`
	StartedAt       time.Time          `json:"started_at"`
	Duration        time.Duration      `json:"duration_ns"`
	Percentage      int                `json:"percentage"`
	Level           RiskLevel          `json:"level"`
	Findings        []CanonicalFinding `json:"findings"`
	Recommendations []string           `json:"recommendations"`
	Coverage        Coverage           `json:"coverage"`
}

// Coverage records how much of the planned work actually ran
type Coverage struct {
	QueriesPlanned int      `json:"queries_planned"`
	QueriesRun     int      `json:"queries_run"`
	PagesFetched   int      `json:"pages_fetched"`
	PagesBlocked   int      `json:"pages_blocked"`
	PagesFailed    int      `json:"pages_failed"`
	SourcesFailed  []string `json:"sources_failed,omitempty"`
	Partial        bool     `json:"partial"` // Budget expired before all queries ran
}

// FetchResult is the immutable outcome of one fetch attempt sequence
type FetchResult struct {
	Query      string `json:"query"`
	URL        string `json:"url"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"-"`
	Err        error  `json:"-"`
	ProxyUsed  string `json:"proxy_used,omitempty"` // Empty for direct connections
	Attempts   int    `json:"attempts"`
	FromCache  bool   `json:"from_cache,omitempty"`
}

// OK reports whether the fetch produced a body
func (r FetchResult) OK() bool {
	return r.Err == nil && r.Body != ""
}

// ProxyEndpoint is one proxy in the pool and its health
type ProxyEndpoint struct {
	Address             string    `json:"address"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CooldownUntil       time.Time `json:"cooldown_until,omitempty"` // Zero when not cooling down
	LastUsed            time.Time `json:"last_used,omitempty"`
}

// InCooldown reports whether the endpoint is unusable at now
func (p ProxyEndpoint) InCooldown(now time.Time) bool {
	return !p.CooldownUntil.IsZero() && now.Before(p.CooldownUntil)
}
