package llm

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/exposure/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates a narrative for a risk report
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	Report model.RiskReport

	// Fields are the subject fields the scan searched for. Only the field
	// names reach the prompt, never their values.
	Fields []model.Field

	// Sensitive values must not appear in the returned summary
	Sensitive []string

	// Prompt overrides the default prompt when set
	Prompt string

	Model     string
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary    string
	CitedURLs  []string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", "" (disabled)
	Provider string
	Model    string
	APIKey   string

	// BaseURL for OpenAI-compatible endpoints
	BaseURL string

	Timeout time.Duration

	// StrictPrivacy rejects summaries that echo subject values or cite
	// hosts that are not in the report
	StrictPrivacy bool

	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		StrictPrivacy: true,
		MaxTokens:     600,
	}
}

// BuildPrompt constructs the default prompt. The prompt carries only
// aggregate figures: counts per PII type, hosts and recommendations.
func BuildPrompt(report model.RiskReport, fields []model.Field) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Analyze these privacy exposure scan results and provide a brief assessment.

RULES:
1. Never repeat or guess personal values such as names, emails, phone numbers or addresses.
2. Only mention the websites listed below.
3. If coverage was incomplete, say so.

Fields Searched: %s
Exposure Percentage: %d%%
Risk Level: %s
Findings: %d
Pages Fetched: %d (blocked %d, failed %d)
Coverage Complete: %t

Findings By Type:
`, joinFields(fields), report.Percentage, report.Level, len(report.Findings),
		report.Coverage.PagesFetched, report.Coverage.PagesBlocked, report.Coverage.PagesFailed,
		!report.Coverage.Partial && len(report.Coverage.SourcesFailed) == 0)

	counts := countByType(report.Findings)
	if len(counts) == 0 {
		b.WriteString("- none\n")
	}
	for _, t := range sortedTypes(counts) {
		fmt.Fprintf(&b, "- %s: %d\n", t, counts[t])
	}

	b.WriteString("\nWebsites:")
	b.WriteString(joinHosts(ReportHosts(report)))

	if len(report.Recommendations) > 0 {
		b.WriteString("\n\nRecommendations Already Given:\n")
		for _, r := range report.Recommendations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	b.WriteString("\nProvide a 3-4 sentence analysis about the privacy exposure level and the most useful next steps.")
	return b.String()
}

// ReportHosts returns the distinct hosts findings were seen on, sorted
func ReportHosts(report model.RiskReport) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, f := range report.Findings {
		for _, raw := range f.SourceURLs {
			u, err := url.Parse(raw)
			if err != nil || u.Hostname() == "" {
				continue
			}
			h := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
			if !seen[h] {
				seen[h] = true
				hosts = append(hosts, h)
			}
		}
	}
	sort.Strings(hosts)
	return hosts
}

func countByType(findings []model.CanonicalFinding) map[model.PIIType]int {
	counts := make(map[model.PIIType]int)
	for _, f := range findings {
		counts[f.Match.Type]++
	}
	return counts
}

func sortedTypes(counts map[model.PIIType]int) []model.PIIType {
	types := make([]model.PIIType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func joinFields(fields []model.Field) string {
	if len(fields) == 0 {
		return "(none)"
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func joinHosts(hosts []string) string {
	if len(hosts) == 0 {
		return " (none)"
	}
	var b strings.Builder
	for i, h := range hosts {
		if i >= 20 {
			fmt.Fprintf(&b, "\n... and %d more", len(hosts)-20)
			break
		}
		fmt.Fprintf(&b, "\n- %s", h)
	}
	return b.String()
}
