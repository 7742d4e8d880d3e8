package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"research-agent-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider serves OpenAI and any OpenAI-compatible backend (Together, vLLM)
type OpenAIProvider struct {
	client *goopenai.Client
	model  string
	label  string
}

var _ llm.LLMProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider builds a client; label names the backend in events ("openai", "together")
func NewOpenAIProvider(label, apiKey, baseURL, model string, timeout time.Duration) *OpenAIProvider {
	config := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	config.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{
		client: goopenai.NewClientWithConfig(config),
		model:  model,
		label:  label,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.label + ":" + p.model
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := llm.Apply(llm.Options{Model: p.model}, options...)

	messages := make([]goopenai.ChatCompletionMessage, len(history))
	for i, m := range history {
		messages[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	req := goopenai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: float32(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		req.MaxCompletionTokens = opts.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", p.translateError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", llm.ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

// translateError exposes the HTTP status so the gateway can classify it
func (p *OpenAIProvider) translateError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return fmt.Errorf("%s chat completion: %w", p.label,
			&llm.StatusError{Provider: p.label, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message})
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return fmt.Errorf("%s chat completion: %w", p.label,
			&llm.StatusError{Provider: p.label, StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()})
	}
	return fmt.Errorf("%s chat completion: %w", p.label, err)
}
