package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/ports"
)

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 800
)

// DefaultSystemPrompt frames every generation.
const DefaultSystemPrompt = "Bạn là trợ lý dữ liệu bán hàng. Chỉ trả lời dựa trên dữ liệu được cung cấp, ngắn gọn, bằng tiếng Việt. " +
	"Nếu dữ liệu là [NO_DATA] hoặc không đủ, hãy nói rõ là chưa có dữ liệu."

// Config configures a Generator.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Temperature  *float32
	SystemPrompt string
}

// Generator turns a prompt into an answer through a chat completion call.
type Generator struct {
	client       *Client
	model        string
	maxTokens    int
	temperature  *float32
	systemPrompt string
}

var _ ports.Generator = (*Generator)(nil)

// NewGenerator creates a generator. Extra client options (for example a
// recording HTTP client in tests) are applied after the base URL.
func NewGenerator(cfg Config, opts ...ClientOption) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	clientOpts := append([]ClientOption{WithBaseURL(cfg.BaseURL)}, opts...)
	return &Generator{
		client:       NewClient(cfg.APIKey, clientOpts...),
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		systemPrompt: cfg.SystemPrompt,
	}
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	return g.model
}

// Generate sends prompt as the user message. Deadline expiry maps to a
// generation timeout error; every other failure is a generation error.
func (g *Generator) Generate(ctx context.Context, prompt string) (*domain.Generation, error) {
	resp, err := g.client.CreateChatCompletion(ctx, &ChatCompletionRequest{
		Model: g.model,
		Messages: []ChatCompletionMessage{
			{Role: "system", Content: g.systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.ErrGenerationDeadline(err)
		}
		if apiErr, ok := IsAPIError(err); ok {
			return nil, domain.ErrGeneration("upstream "+apiErr.Type, err)
		}
		return nil, domain.ErrGeneration("chat completion failed", err)
	}

	if len(resp.Choices) == 0 {
		return nil, domain.ErrGeneration("empty completion", nil)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, domain.ErrGeneration("empty completion", nil)
	}

	return &domain.Generation{
		Text:             text,
		ApproxTokensUsed: resp.Usage.TotalTokens,
	}, nil
}
