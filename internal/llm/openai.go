package llm

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrPrivacyLeak is returned when a summary echoes a subject value or
// names a host outside the report
var ErrPrivacyLeak = eris.New("summary leaks data outside the report")

var urlPattern = regexp.MustCompile(`https?://[^\s\)]+`)

// OpenAIProvider implements Provider for OpenAI and OpenAI-compatible endpoints
type OpenAIProvider struct {
	client *openai.Client
	config Config
	name   string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, eris.New("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		name:   "openai",
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return p.name
}

// IsAvailable lists models as a lightweight reachability check
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	if _, err := p.client.ListModels(ctx); err != nil {
		zap.L().Warn("LLM provider check failed", zap.String("provider", p.name), zap.Error(err))
		return false
	}
	return true
}

// Summarize generates a summary using the Chat Completions API
func (p *OpenAIProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = BuildPrompt(req.Report, req.Fields)
	}

	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 600
	}

	timeout := p.config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a privacy security expert providing brief analysis of personal information exposure online.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "%s API error", p.name)
	}
	if len(resp.Choices) == 0 {
		return nil, eris.Errorf("no response from %s", p.name)
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	cited := extractURLs(summary)

	if p.config.StrictPrivacy {
		if err := checkPrivacy(summary, cited, req); err != nil {
			return nil, err
		}
	}

	return &SummarizeResponse{
		Summary:    summary,
		CitedURLs:  cited,
		Model:      model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// checkPrivacy rejects summaries echoing sensitive values or citing unknown hosts
func checkPrivacy(summary string, cited []string, req SummarizeRequest) error {
	lower := strings.ToLower(summary)
	for _, v := range req.Sensitive {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" && strings.Contains(lower, v) {
			return eris.Wrap(ErrPrivacyLeak, "summary repeats a searched value")
		}
	}

	allowed := ReportHosts(req.Report)
	for _, raw := range cited {
		u, err := url.Parse(raw)
		if err != nil {
			return eris.Wrap(ErrPrivacyLeak, "unparseable citation")
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if !contains(allowed, host) {
			return eris.Wrapf(ErrPrivacyLeak, "cited host %s", host)
		}
	}
	return nil
}

// extractURLs extracts distinct URLs from text
func extractURLs(text string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:!?")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	return unique
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
