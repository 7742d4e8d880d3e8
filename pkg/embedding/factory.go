package embedding

import (
	"fmt"
	"strings"
	"time"
)

type ProviderConfig struct {
	Type    string // "ollama", "openai", "jina" or "none"
	Model   string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewEmbeddingProvider returns nil for "none"; the semantic channel is then disabled
func NewEmbeddingProvider(cfg ProviderConfig) (EmbeddingProvider, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "none":
		return nil, nil
	case "ollama":
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedding provider openai requires an api key")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "jina":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedding provider jina requires an api key")
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.jina.ai/v1"
		}
		model := cfg.Model
		if model == "" {
			model = "jina-embeddings-v2-base-en"
		}
		return NewOpenAIProvider(cfg.APIKey, baseURL, model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider type: %s", cfg.Type)
	}
}
