package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/citegame/internal/logging"
)

var citationRefPattern = regexp.MustCompile(`\[([A-Za-z0-9][A-Za-z0-9_.:\-]*)\]`)

// OpenAIProvider implements the Provider interface for OpenAI-compatible chat APIs
type OpenAIProvider struct {
	client *openai.Client
	config Config
	name   string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
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

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	if _, err := p.client.ListModels(ctx); err != nil {
		logging.Warn("LLM provider check failed", "provider", p.name, "err", err)
		return false
	}
	return true
}

// Recap generates the recap using the Chat Completions API
func (p *OpenAIProvider) Recap(ctx context.Context, req RecapRequest) (*RecapResponse, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = BuildPrompt(req.Scoreboard, req.Reviews, req.CitationIDs)
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

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You write brief, factual game recaps and reference citations only by their allowed ids.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from %s", p.name)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	cited := extractCitationIDs(text)

	if p.config.StrictEvidence {
		allowed := make(map[string]bool, len(req.CitationIDs))
		for _, id := range req.CitationIDs {
			allowed[id] = true
		}
		for _, id := range cited {
			if !allowed[id] {
				return nil, fmt.Errorf("%w: recap referenced [%s]", ErrCitationLeak, id)
			}
		}
	}

	return &RecapResponse{
		Text:       text,
		CitedIDs:   cited,
		Model:      model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// extractCitationIDs returns the distinct [id] references in order of appearance
func extractCitationIDs(text string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, m := range citationRefPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	}
	return ids
}
