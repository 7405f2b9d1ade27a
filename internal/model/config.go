package model

import "time"

// Config holds every tunable of a scan
type Config struct {
	HTTP      HTTPConfig      `json:"http" yaml:"http" mapstructure:"http"`
	Proxy     ProxyConfig     `json:"proxy" yaml:"proxy" mapstructure:"proxy"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
	Query     QueryConfig     `json:"query" yaml:"query" mapstructure:"query"`
	Extract   ExtractConfig   `json:"extract" yaml:"extract" mapstructure:"extract"`
	Scoring   ScoringConfig   `json:"scoring" yaml:"scoring" mapstructure:"scoring"`
	Risk      RiskConfig      `json:"risk" yaml:"risk" mapstructure:"risk"`
	Dedupe    DedupeConfig    `json:"dedupe" yaml:"dedupe" mapstructure:"dedupe"`
	Sources   SourcesConfig   `json:"sources" yaml:"sources" mapstructure:"sources"`
	Cache     CacheConfig     `json:"cache" yaml:"cache" mapstructure:"cache"`
	Scan      ScanConfig      `json:"scan" yaml:"scan" mapstructure:"scan"`
	LLM       LLMConfig       `json:"llm" yaml:"llm" mapstructure:"llm"`
	Output    OutputConfig    `json:"output" yaml:"output" mapstructure:"output"`
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
}

// HTTPConfig controls single fetches
type HTTPConfig struct {
	Timeout        time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	MaxRetries     int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoff   time.Duration `json:"retry_backoff" yaml:"retry_backoff" mapstructure:"retry_backoff"` // Multiplied by attempt number
	MaxBytes       int64         `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`
	UserAgents     []string      `json:"user_agents" yaml:"user_agents" mapstructure:"user_agents"`
	RespectRobots  bool          `json:"respect_robots" yaml:"respect_robots" mapstructure:"respect_robots"`
	RobotsOnSearch bool          `json:"robots_on_search" yaml:"robots_on_search" mapstructure:"robots_on_search"` // Apply robots policy to search endpoints too
	InsecureTLS    bool          `json:"insecure_tls" yaml:"insecure_tls" mapstructure:"insecure_tls"`
}

// ProxyConfig configures the proxy pool and its circuit breaker
type ProxyConfig struct {
	Endpoints        []string      `json:"endpoints" yaml:"endpoints" mapstructure:"endpoints"`
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`
	BaseCooldown     time.Duration `json:"base_cooldown" yaml:"base_cooldown" mapstructure:"base_cooldown"`
	MaxCooldown      time.Duration `json:"max_cooldown" yaml:"max_cooldown" mapstructure:"max_cooldown"`
	DirectFallback   bool          `json:"direct_fallback" yaml:"direct_fallback" mapstructure:"direct_fallback"`
	ProbeURL         string        `json:"probe_url" yaml:"probe_url" mapstructure:"probe_url"`
	ProbeTimeout     time.Duration `json:"probe_timeout" yaml:"probe_timeout" mapstructure:"probe_timeout"`
}

// RateLimitConfig bounds request pressure on targets
type RateLimitConfig struct {
	MaxInFlight       int           `json:"max_in_flight" yaml:"max_in_flight" mapstructure:"max_in_flight"`
	MinDelay          time.Duration `json:"min_delay" yaml:"min_delay" mapstructure:"min_delay"`
	MaxDelay          time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"` // Global ceiling, 0 disables
	Burst             int           `json:"burst" yaml:"burst" mapstructure:"burst"`
}

// QueryConfig shapes query generation
type QueryConfig struct {
	MaxSubsetSize int      `json:"max_subset_size" yaml:"max_subset_size" mapstructure:"max_subset_size"`
	SiteDomains   []string `json:"site_domains" yaml:"site_domains" mapstructure:"site_domains"`
}

// ExtractConfig shapes extraction
type ExtractConfig struct {
	ContextRadius     int  `json:"context_radius" yaml:"context_radius" mapstructure:"context_radius"`
	MaxMatchesPerPage int  `json:"max_matches_per_page" yaml:"max_matches_per_page" mapstructure:"max_matches_per_page"`
	IncludeOther      bool `json:"include_other" yaml:"include_other" mapstructure:"include_other"`
}

// ScoringConfig holds the confidence weights.
// Score = base(exactness) + co-occurrence + reputation - common-value penalty, clamped to [0,1].
type ScoringConfig struct {
	ExactWeight        float64           `json:"exact_weight" yaml:"exact_weight" mapstructure:"exact_weight"`
	PartialWeight      float64           `json:"partial_weight" yaml:"partial_weight" mapstructure:"partial_weight"`
	UnmatchedWeight    float64           `json:"unmatched_weight" yaml:"unmatched_weight" mapstructure:"unmatched_weight"`
	CoOccurrenceWeight float64           `json:"cooccurrence_weight" yaml:"cooccurrence_weight" mapstructure:"cooccurrence_weight"` // Per other target field in context
	CoOccurrenceCap    float64           `json:"cooccurrence_cap" yaml:"cooccurrence_cap" mapstructure:"cooccurrence_cap"`
	ReputationWeight   float64           `json:"reputation_weight" yaml:"reputation_weight" mapstructure:"reputation_weight"`
	CommonValuePenalty float64           `json:"common_value_penalty" yaml:"common_value_penalty" mapstructure:"common_value_penalty"`
	SnippetPenalty     float64           `json:"snippet_penalty" yaml:"snippet_penalty" mapstructure:"snippet_penalty"`
	CommonNames        []string          `json:"common_names" yaml:"common_names" mapstructure:"common_names"`
	DomainTiers        map[string]string `json:"domain_tiers,omitempty" yaml:"domain_tiers,omitempty" mapstructure:"domain_tiers"` // Host -> tier override (breach, people-search, social, code, forum, general)
}

// RiskConfig holds aggregation weights and thresholds
type RiskConfig struct {
	HighConfidence     float64             `json:"high_confidence" yaml:"high_confidence" mapstructure:"high_confidence"`
	CriticalConfidence float64             `json:"critical_confidence" yaml:"critical_confidence" mapstructure:"critical_confidence"`
	TypeWeights        map[PIIType]float64 `json:"type_weights" yaml:"type_weights" mapstructure:"type_weights"`
	LowConfidenceScale float64             `json:"low_confidence_scale" yaml:"low_confidence_scale" mapstructure:"low_confidence_scale"` // Fraction of weight*confidence for sub-threshold findings
	DiversityBonus     float64             `json:"diversity_bonus" yaml:"diversity_bonus" mapstructure:"diversity_bonus"`                // Per distinct high-confidence type
	CriticalBonus      float64             `json:"critical_bonus" yaml:"critical_bonus" mapstructure:"critical_bonus"`
}

// DedupeConfig configures near-duplicate merging
type DedupeConfig struct {
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// SourceConfig toggles one search source
type SourceConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// SourcesConfig lists the search sources and crawl breadth
type SourcesConfig struct {
	Bing               SourceConfig `json:"bing" yaml:"bing" mapstructure:"bing"`
	DuckDuckGo         SourceConfig `json:"duckduckgo" yaml:"duckduckgo" mapstructure:"duckduckgo"`
	Google             SourceConfig `json:"google" yaml:"google" mapstructure:"google"`
	GitHub             SourceConfig `json:"github" yaml:"github" mapstructure:"github"`
	Reddit             SourceConfig `json:"reddit" yaml:"reddit" mapstructure:"reddit"`
	PagesPerSource     int          `json:"pages_per_source" yaml:"pages_per_source" mapstructure:"pages_per_source"`
	MaxDetailedResults int          `json:"max_detailed_results" yaml:"max_detailed_results" mapstructure:"max_detailed_results"` // Per query, after URL dedupe
}

// CacheConfig controls the in-memory fetch cache
type CacheConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// ScanConfig bounds one scan
type ScanConfig struct {
	Budget        time.Duration `json:"budget" yaml:"budget" mapstructure:"budget"`
	Workers       int           `json:"workers" yaml:"workers" mapstructure:"workers"`
	MinConfidence float64       `json:"min_confidence" yaml:"min_confidence" mapstructure:"min_confidence"` // Scored matches below this are dropped before dedupe
}

// LLMConfig configures the optional report summarizer
type LLMConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Provider  string        `json:"provider" yaml:"provider" mapstructure:"provider"` // openai, ollama
	Model     string        `json:"model" yaml:"model" mapstructure:"model"`
	APIKey    string        `json:"-" yaml:"-" mapstructure:"api_key"`
	BaseURL   string        `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
	MaxTokens int           `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// OutputConfig controls report files
type OutputConfig struct {
	JSONPath     string `json:"json_path,omitempty" yaml:"json_path,omitempty" mapstructure:"json_path"`
	MarkdownPath string `json:"markdown_path,omitempty" yaml:"markdown_path,omitempty" mapstructure:"markdown_path"`
	ShowValues   bool   `json:"show_values" yaml:"show_values" mapstructure:"show_values"` // Print unmasked values to stdout
}

// LogConfig controls the global logger
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"` // json or console
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      10 * time.Second,
			MaxRetries:   2,
			RetryBackoff: time.Second,
			MaxBytes:     2_000_000,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
				"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
			},
			RespectRobots:  true,
			RobotsOnSearch: true,
		},
		Proxy: ProxyConfig{
			FailureThreshold: 3,
			BaseCooldown:     30 * time.Second,
			MaxCooldown:      30 * time.Minute,
			DirectFallback:   true,
			ProbeURL:         "https://httpbin.org/ip",
			ProbeTimeout:     10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MaxInFlight:       5,
			MinDelay:          2 * time.Second,
			MaxDelay:          5 * time.Second,
			RequestsPerSecond: 4,
			Burst:             5,
		},
		Query: QueryConfig{
			MaxSubsetSize: 2,
			SiteDomains:   []string{"linkedin.com", "facebook.com", "twitter.com", "github.com"},
		},
		Extract: ExtractConfig{
			ContextRadius:     80,
			MaxMatchesPerPage: 100,
			IncludeOther:      true,
		},
		Scoring: ScoringConfig{
			ExactWeight:        0.6,
			PartialWeight:      0.3,
			UnmatchedWeight:    0.05,
			CoOccurrenceWeight: 0.2,
			CoOccurrenceCap:    0.3,
			ReputationWeight:   0.15,
			CommonValuePenalty: 0.2,
			SnippetPenalty:     0.05,
			CommonNames: []string{
				"john", "james", "robert", "michael", "william", "david", "richard", "joseph", "thomas", "charles",
				"mary", "patricia", "jennifer", "linda", "elizabeth", "barbara", "susan", "jessica", "sarah", "karen",
				"smith", "johnson", "williams", "brown", "jones", "garcia", "miller", "davis", "rodriguez", "martinez",
			},
		},
		Risk: RiskConfig{
			HighConfidence:     0.6,
			CriticalConfidence: 0.85,
			TypeWeights: map[PIIType]float64{
				PIIEmail:       20,
				PIIPhone:       22,
				PIIAddress:     25,
				PIINameContext: 10,
				PIIOther:       12,
			},
			LowConfidenceScale: 0.25,
			DiversityBonus:     8,
			CriticalBonus:      15,
		},
		Dedupe: DedupeConfig{
			SimilarityThreshold: 0.6,
		},
		Sources: SourcesConfig{
			Bing:               SourceConfig{Enabled: true, BaseURL: "https://www.bing.com/search"},
			DuckDuckGo:         SourceConfig{Enabled: true, BaseURL: "https://html.duckduckgo.com/html/"},
			Google:             SourceConfig{Enabled: false, BaseURL: "https://www.google.com/search"},
			GitHub:             SourceConfig{Enabled: true, BaseURL: "https://api.github.com/search/users"},
			Reddit:             SourceConfig{Enabled: false, BaseURL: "https://www.reddit.com/search.json"},
			PagesPerSource:     1,
			MaxDetailedResults: 10,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
		},
		Scan: ScanConfig{
			Budget:        30 * time.Second,
			Workers:       3,
			MinConfidence: 0.25,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 600,
			Timeout:   30 * time.Second,
		},
		Output: OutputConfig{
			JSONPath: "report.json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
