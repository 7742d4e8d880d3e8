package response

import (
	"context"
	"errors"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/rag/prompt"
	"research-agent-be/pkg/store"
)

var ErrNoProvider = errors.New("no language model configured")

const systemPrompt = "You are a research assistant that answers questions about research papers clearly and accurately."

// Request is everything one generation call needs
type Request struct {
	Path     prompt.Path
	Question string
	Excerpts []store.GradedCandidate
	History  []store.Turn // Oldest first
	Notice   string
	Revision *prompt.Revision
}

// Generator drafts answers through the language model gateway
type Generator struct {
	llmProvider llm.LLMProvider
	logger      logger.ILogger
}

func NewGenerator(llmProvider llm.LLMProvider, log logger.ILogger) *Generator {
	return &Generator{llmProvider: llmProvider, logger: log}
}

// Generate makes exactly one model call. Errors are returned as is so the
// caller decides how to degrade.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	if g.llmProvider == nil {
		return "", ErrNoProvider
	}

	builder := prompt.NewAnswerBuilder(req.Path, req.Question).
		WithExcerpts(req.Excerpts).
		WithNotice(req.Notice).
		WithRevision(req.Revision)

	messages := make([]llm.Message, 0, len(req.History)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, prompt.HistoryMessages(req.History)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: builder.Build()})

	temperature := 0.7
	if req.Path == prompt.PathGrounded {
		temperature = 0.2
	}

	answer, err := g.llmProvider.Chat(ctx, messages, llm.WithTemperature(temperature), llm.WithMaxTokens(1000))
	if err != nil {
		return "", err
	}

	g.logger.Debug("Generator", "Draft generated", map[string]interface{}{
		"path":     string(req.Path),
		"excerpts": len(req.Excerpts),
		"revision": req.Revision != nil,
		"length":   len(answer),
	})
	return answer, nil
}
