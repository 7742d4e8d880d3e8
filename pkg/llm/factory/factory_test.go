package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      ProviderConfig
		wantName string
		wantNil  bool
		wantErr  bool
	}{
		{"openai", ProviderConfig{Type: "openai", Model: "gpt-4o-mini", APIKey: "k"}, "openai:gpt-4o-mini", false, false},
		{"together", ProviderConfig{Type: "together", Model: "meta-llama/Llama-3.3-70B-Instruct-Turbo"}, "together:meta-llama/Llama-3.3-70B-Instruct-Turbo", false, false},
		{"ollama", ProviderConfig{Type: "ollama", Model: "llama3"}, "ollama:llama3", false, false},
		{"huggingface", ProviderConfig{Type: "huggingface", Model: "qwen"}, "huggingface:qwen", false, false},
		{"none", ProviderConfig{Type: "none"}, "", true, false},
		{"unknown", ProviderConfig{Type: "bard"}, "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewLLMProvider(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}
