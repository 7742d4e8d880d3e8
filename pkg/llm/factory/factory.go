package factory

import (
	"fmt"
	"time"

	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/llm/huggingface"
	"research-agent-be/pkg/llm/ollama"
	"research-agent-be/pkg/llm/openai"
)

// ProviderConfig selects and configures one backend
type ProviderConfig struct {
	Type    string // "openai" | "together" | "ollama" | "huggingface" | "none"
	Model   string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

const togetherBaseURL = "https://api.together.xyz/v1"

// NewLLMProvider returns nil, nil for type "none" or ""
func NewLLMProvider(cfg ProviderConfig) (llm.LLMProvider, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "openai":
		return openai.NewOpenAIProvider("openai", cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "together":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = togetherBaseURL
		}
		return openai.NewOpenAIProvider("together", cfg.APIKey, baseURL, cfg.Model, cfg.Timeout), nil
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model, cfg.Timeout), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Type)
	}
}
