package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/exposure/internal/model"
	"go.uber.org/zap"
)

// Summary is the narrative attached to a report
type Summary struct {
	Enabled       bool     `json:"enabled"`
	Provider      string   `json:"provider,omitempty"`
	Model         string   `json:"model,omitempty"`
	StrictPrivacy bool     `json:"strict_privacy"`
	Text          string   `json:"text"`
	Fallback      bool     `json:"fallback"` // Text came from the built-in template
	Warnings      []string `json:"warnings,omitempty"`
}

// Summarizer turns a risk report into a short narrative
type Summarizer struct {
	provider Provider
	config   Config
}

// NewSummarizer creates a summarizer. A config without a provider yields
// a summarizer that only produces template text.
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s.provider != nil
}

// ProviderName returns the configured provider, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary never fails the scan: any provider problem is recorded
// as a warning and the template text is used instead.
func (s *Summarizer) GenerateSummary(ctx context.Context, report model.RiskReport, info model.PersonalInfo) *Summary {
	summary := &Summary{
		StrictPrivacy: s.config.StrictPrivacy,
		Text:          FallbackAnalysis(report.Level),
		Fallback:      true,
	}
	if s.provider == nil {
		return summary
	}

	summary.Provider = s.provider.Name()
	if !s.provider.IsAvailable(ctx) {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("LLM provider %s is not available", summary.Provider))
		return summary
	}
	summary.Enabled = true

	fields := info.Present()
	sensitive := make([]string, 0, len(fields))
	for _, f := range fields {
		sensitive = append(sensitive, info.Value(f))
	}

	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Report:    report,
		Fields:    fields,
		Sensitive: sensitive,
		Model:     s.config.Model,
		MaxTokens: s.config.MaxTokens,
	})
	if err != nil {
		zap.L().Warn("LLM summary failed, using template", zap.String("provider", summary.Provider), zap.Error(err))
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("LLM summary generation failed: %v", err))
		return summary
	}

	summary.Model = resp.Model
	summary.Text = resp.Summary
	summary.Fallback = false
	if resp.TokensUsed > 0 {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))
	}
	return summary
}

// FallbackAnalysis is the template narrative for a risk level
func FallbackAnalysis(level model.RiskLevel) string {
	switch level {
	case model.RiskHigh:
		return "High privacy exposure detected. Your personal information is widely available online across multiple platforms. Consider immediate action to remove or limit accessible data and review your privacy settings."
	case model.RiskMedium:
		return "Moderate privacy exposure found. Some of your personal information is discoverable online. Review your social media privacy settings and consider limiting publicly available information."
	default:
		return "Low privacy exposure detected. Your online privacy footprint appears minimal. Continue maintaining good privacy practices and regularly monitor your online presence."
	}
}

// GeneralRecommendations apply to every subject regardless of findings
var GeneralRecommendations = []string{
	"Review and update privacy settings on all social media accounts",
	"Use strong, unique passwords for all online accounts",
	"Enable two-factor authentication where available",
	"Regularly monitor your online presence",
}

// RenderSeparateMarkdown renders the summary as its own document, kept
// apart from the scored report
func RenderSeparateMarkdown(summary *Summary) string {
	if summary == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("# Exposure Analysis\n\n")
	if summary.Enabled && !summary.Fallback {
		b.WriteString("> **GENERATED CONTENT.** This narrative was written by a language model from aggregate counts only. ")
	} else {
		b.WriteString("> **TEMPLATE CONTENT.** This narrative was selected from the risk level. ")
	}
	b.WriteString("The risk percentage and findings were determined independently of it.\n\n")

	if summary.Provider != "" {
		fmt.Fprintf(&b, "- **Provider:** %s\n", summary.Provider)
	}
	if summary.Model != "" {
		fmt.Fprintf(&b, "- **Model:** %s\n", summary.Model)
	}
	if summary.Provider != "" {
		fmt.Fprintf(&b, "- **Strict Privacy Mode:** %t\n", summary.StrictPrivacy)
		b.WriteString("\n")
	}

	if summary.Text == "" {
		b.WriteString("_No summary generated._\n")
	} else {
		b.WriteString(summary.Text)
		b.WriteString("\n")
	}

	if len(summary.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
