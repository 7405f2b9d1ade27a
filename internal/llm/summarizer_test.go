package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/exposure/internal/model"
)

// MockProvider implements the Provider interface for testing
type MockProvider struct {
	name      string
	available bool
	response  *SummarizeResponse
	err       error
	lastReq   SummarizeRequest
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.available
}

func testReport() model.RiskReport {
	return model.RiskReport{
		Percentage: 72,
		Level:      model.RiskHigh,
		Findings: []model.CanonicalFinding{
			{
				Match:      model.ExtractedMatch{Type: model.PIIEmail, Value: "jane@x.com", RawConfidence: 0.9},
				SourceURLs: []string{"https://www.spokeo.com/jane", "https://github.com/janeroe"},
			},
			{
				Match:      model.ExtractedMatch{Type: model.PIIPhone, Value: "4155550100", RawConfidence: 0.7},
				SourceURLs: []string{"https://spokeo.com/jane-2"},
			},
		},
		Recommendations: []string{"Enable two-factor authentication"},
		Coverage:        model.Coverage{PagesFetched: 3},
	}
}

func TestNewSummarizer_DisabledProvider(t *testing.T) {
	summarizer, err := NewSummarizer(Config{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summarizer.IsEnabled() {
		t.Error("Expected summarizer to be disabled")
	}
	if summarizer.ProviderName() != "" {
		t.Error("Expected empty provider name when disabled")
	}
}

func TestNewSummarizer_UnknownProvider(t *testing.T) {
	if _, err := NewSummarizer(Config{Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("Expected error for unknown provider")
	}
}

func TestNewSummarizer_OpenAIRequiresKey(t *testing.T) {
	if _, err := NewSummarizer(Config{Provider: "openai"}); err == nil {
		t.Fatal("Expected error without API key")
	}
}

func TestNewSummarizer_OllamaNeedsNoKey(t *testing.T) {
	s, err := NewSummarizer(Config{Provider: "ollama"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if s.ProviderName() != "ollama" {
		t.Errorf("Expected provider 'ollama', got %q", s.ProviderName())
	}
	p := s.provider.(*OpenAIProvider)
	if p.config.BaseURL != ollamaBaseURL {
		t.Errorf("Expected default Ollama base URL, got %q", p.config.BaseURL)
	}
}

func TestSummarizer_GenerateSummary_Disabled(t *testing.T) {
	summarizer := &Summarizer{}

	summary := summarizer.GenerateSummary(context.Background(), testReport(), model.PersonalInfo{Email: "jane@x.com"})
	if summary.Enabled {
		t.Error("Expected summary to be marked as disabled")
	}
	if !summary.Fallback {
		t.Error("Expected template text when disabled")
	}
	if summary.Text != FallbackAnalysis(model.RiskHigh) {
		t.Errorf("Unexpected text: %s", summary.Text)
	}
}

func TestSummarizer_GenerateSummary_ProviderUnavailable(t *testing.T) {
	summarizer := &Summarizer{
		provider: &MockProvider{name: "test-provider"},
		config:   Config{StrictPrivacy: true},
	}

	summary := summarizer.GenerateSummary(context.Background(), testReport(), model.PersonalInfo{Name: "Jane Roe"})
	if summary.Enabled {
		t.Error("Expected summary to be marked as disabled")
	}
	if !summary.Fallback {
		t.Error("Expected template fallback")
	}

	found := false
	for _, warning := range summary.Warnings {
		if strings.Contains(warning, "not available") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected warning about provider unavailability: %v", summary.Warnings)
	}
}

func TestSummarizer_GenerateSummary_Success(t *testing.T) {
	mock := &MockProvider{
		name:      "test-provider",
		available: true,
		response: &SummarizeResponse{
			Summary:    "Exposure is high across people-search sites.",
			Model:      "test-model",
			TokensUsed: 150,
		},
	}
	summarizer := &Summarizer{
		provider: mock,
		config:   Config{Model: "test-model", StrictPrivacy: true},
	}

	info := model.PersonalInfo{Name: "Jane Roe", Email: "jane@x.com"}
	summary := summarizer.GenerateSummary(context.Background(), testReport(), info)

	if !summary.Enabled || summary.Fallback {
		t.Fatalf("Expected generated summary, got %+v", summary)
	}
	if summary.Provider != "test-provider" {
		t.Errorf("Expected provider 'test-provider', got '%s'", summary.Provider)
	}
	if summary.Model != "test-model" {
		t.Errorf("Expected model 'test-model', got '%s'", summary.Model)
	}
	if summary.Text != "Exposure is high across people-search sites." {
		t.Errorf("Unexpected text: %s", summary.Text)
	}
	if len(summary.Warnings) != 1 || !strings.Contains(summary.Warnings[0], "Tokens used") {
		t.Errorf("Expected token usage note, got %v", summary.Warnings)
	}

	if len(mock.lastReq.Fields) != 2 || mock.lastReq.Fields[0] != model.FieldEmail {
		t.Errorf("Expected present fields in request, got %v", mock.lastReq.Fields)
	}
	if len(mock.lastReq.Sensitive) != 2 {
		t.Errorf("Expected searched values marked sensitive, got %v", mock.lastReq.Sensitive)
	}
}

func TestSummarizer_GenerateSummary_ProviderError(t *testing.T) {
	summarizer := &Summarizer{
		provider: &MockProvider{name: "test-provider", available: true, err: errors.New("API rate limit exceeded")},
		config:   Config{StrictPrivacy: true},
	}

	summary := summarizer.GenerateSummary(context.Background(), testReport(), model.PersonalInfo{Name: "Jane Roe"})
	if !summary.Enabled {
		t.Error("Expected summary to be marked as enabled (but failed)")
	}
	if !summary.Fallback || summary.Text != FallbackAnalysis(model.RiskHigh) {
		t.Errorf("Expected template fallback, got %+v", summary)
	}

	found := false
	for _, warning := range summary.Warnings {
		if strings.Contains(warning, "failed") && strings.Contains(warning, "rate limit") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected warning to mention error: %v", summary.Warnings)
	}
}

func TestFallbackAnalysis(t *testing.T) {
	tests := []struct {
		level model.RiskLevel
		want  string
	}{
		{model.RiskHigh, "High privacy exposure"},
		{model.RiskMedium, "Moderate privacy exposure"},
		{model.RiskLow, "Low privacy exposure"},
		{"", "Low privacy exposure"},
	}
	for _, tt := range tests {
		if got := FallbackAnalysis(tt.level); !strings.HasPrefix(got, tt.want) {
			t.Errorf("FallbackAnalysis(%q) = %q, want prefix %q", tt.level, got, tt.want)
		}
	}
}

func TestRenderSeparateMarkdown_Nil(t *testing.T) {
	if md := RenderSeparateMarkdown(nil); md != "" {
		t.Error("Expected empty markdown when nil")
	}
}

func TestRenderSeparateMarkdown_Generated(t *testing.T) {
	summary := &Summary{
		Enabled:       true,
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		StrictPrivacy: true,
		Text:          "This is the generated summary content.",
		Warnings:      []string{"Tokens used: 150"},
	}

	md := RenderSeparateMarkdown(summary)

	for _, section := range []string{
		"# Exposure Analysis",
		"GENERATED CONTENT",
		"openai",
		"gpt-4o-mini",
		"Strict Privacy Mode",
		"This is the generated summary content.",
		"## Notes",
		"Tokens used: 150",
		"determined independently",
	} {
		if !strings.Contains(md, section) {
			t.Errorf("Expected markdown to contain '%s'", section)
		}
	}
}

func TestRenderSeparateMarkdown_Template(t *testing.T) {
	md := RenderSeparateMarkdown(&Summary{Fallback: true, Text: FallbackAnalysis(model.RiskLow)})
	if !strings.Contains(md, "TEMPLATE CONTENT") {
		t.Error("Expected template notice")
	}
	if strings.Contains(md, "Provider") {
		t.Error("Expected no provider line without a provider")
	}
}

func TestRenderSeparateMarkdown_NoSummary(t *testing.T) {
	md := RenderSeparateMarkdown(&Summary{Enabled: true, Provider: "test-provider"})
	if !strings.Contains(md, "No summary generated") {
		t.Error("Expected message about no summary")
	}
}

func TestBuildPrompt_OmitsValues(t *testing.T) {
	report := testReport()
	prompt := BuildPrompt(report, []model.Field{model.FieldEmail, model.FieldPhone})

	for _, want := range []string{
		"Fields Searched: email, phone",
		"Exposure Percentage: 72%",
		"Risk Level: high",
		"- email: 1",
		"- phone: 1",
		"- spokeo.com",
		"- github.com",
		"Enable two-factor authentication",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}

	for _, leaked := range []string{"jane@x.com", "4155550100", "/janeroe", "https://"} {
		if strings.Contains(prompt, leaked) {
			t.Errorf("Prompt leaks %q", leaked)
		}
	}
}

func TestBuildPrompt_Empty(t *testing.T) {
	prompt := BuildPrompt(model.RiskReport{Level: model.RiskLow}, nil)
	if !strings.Contains(prompt, "Fields Searched: (none)") {
		t.Error("Expected placeholder for no fields")
	}
	if !strings.Contains(prompt, "- none") {
		t.Error("Expected placeholder for no findings")
	}
	if !strings.Contains(prompt, "Websites: (none)") {
		t.Error("Expected placeholder for no hosts")
	}
}

func TestBuildPrompt_PartialCoverage(t *testing.T) {
	report := model.RiskReport{Coverage: model.Coverage{Partial: true}}
	if !strings.Contains(BuildPrompt(report, nil), "Coverage Complete: false") {
		t.Error("Expected incomplete coverage flag")
	}
}

func TestReportHosts(t *testing.T) {
	hosts := ReportHosts(testReport())
	if len(hosts) != 2 || hosts[0] != "github.com" || hosts[1] != "spokeo.com" {
		t.Errorf("Unexpected hosts: %v", hosts)
	}
}

func TestJoinHosts_Many(t *testing.T) {
	hosts := make([]string, 25)
	for i := range hosts {
		hosts[i] = "h" + string(rune('a'+i)) + ".com"
	}
	got := joinHosts(hosts)
	if !strings.Contains(got, "... and 5 more") {
		t.Errorf("Expected truncation note, got %s", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != "" {
		t.Error("Expected summarization disabled by default")
	}
	if !cfg.StrictPrivacy {
		t.Error("Expected strict privacy on by default")
	}
	if cfg.Timeout <= 0 || cfg.MaxTokens <= 0 {
		t.Errorf("Expected positive timeout and token limit, got %+v", cfg)
	}
}

func TestConfigFromModel(t *testing.T) {
	disabled := ConfigFromModel(model.LLMConfig{Provider: "openai", APIKey: "k"})
	if disabled.Provider != "" {
		t.Error("Expected disabled section to yield no provider")
	}

	enabled := ConfigFromModel(model.LLMConfig{Enabled: true, Provider: "ollama", Model: "llama3", MaxTokens: 200})
	if enabled.Provider != "ollama" || enabled.Model != "llama3" || enabled.MaxTokens != 200 {
		t.Errorf("Unexpected config %+v", enabled)
	}
	if enabled.Timeout != DefaultConfig().Timeout {
		t.Errorf("Expected default timeout, got %v", enabled.Timeout)
	}
}
