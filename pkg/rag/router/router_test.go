package router

import (
	"context"
	"errors"
	"testing"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	reply string
	err   error
	calls int
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return s.Chat(ctx, nil, opts...)
}

func TestPatterns(t *testing.T) {
	tests := []struct {
		question string
		memory   bool
		small    bool
		research bool
	}{
		{"What was my previous question?", true, false, false},
		{"How many questions have I asked?", true, false, false},
		{"Can you summarize our conversation so far?", true, false, false},
		{"What did I ask earlier?", true, false, false},
		{"What have we covered in this chat?", true, false, false},
		{"What does the discussion section say about limitations?", false, false, false},
		{"Which papers extend the discussion of self-debugging?", false, false, true},
		{"Hello!", false, true, false},
		{"What can you do?", false, true, false},
		{"Can LLMs benefit from multi-round self debug?", false, false, true},
		{"What do the papers say about fine-tuning?", false, false, true},
		{"What is capital of Thailand?", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.memory, IsMemoryQuestion(tt.question))
			assert.Equal(t, tt.small, IsSmallTalk(tt.question))
			assert.Equal(t, tt.research, IsResearchQuestion(tt.question))
		})
	}
}

func TestClassify_Rules(t *testing.T) {
	r := NewRouter(nil, ModeHybrid, logger.NewNopLogger())

	tests := []struct {
		name      string
		question  string
		hasCorpus bool
		want      Route
		seeking   bool
	}{
		{"memory without corpus", "What was my previous question?", false, RouteConversational, false},
		{"memory with corpus", "What was my previous question?", true, RouteConversational, false},
		{"research without corpus", "Can LLMs benefit from multi-round self debug?", false, RouteGeneralKnowledge, true},
		{"general without corpus", "What is capital of Thailand?", false, RouteGeneralKnowledge, false},
		{"general with corpus", "What is capital of Thailand?", true, RouteDocumentGrounded, false},
		{"small talk with corpus", "Hello", true, RouteGeneralKnowledge, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Classify(context.Background(), tt.question, tt.hasCorpus)
			assert.Equal(t, tt.want, d.Route)
			assert.Equal(t, tt.seeking, d.DocumentSeeking)
			assert.False(t, d.ByModel)
		})
	}
}

func TestClassify_HybridUsesModel(t *testing.T) {
	stub := &stubLLM{reply: "```json\n{\"route\": \"general\", \"reason\": \"basic fact\"}\n```"}
	r := NewRouter(stub, ModeHybrid, logger.NewNopLogger())

	d := r.Classify(context.Background(), "What is capital of Thailand?", true)
	assert.Equal(t, RouteGeneralKnowledge, d.Route)
	assert.Equal(t, "basic fact", d.Reason)
	assert.True(t, d.ByModel)

	// Memory patterns win before the model is asked
	d = r.Classify(context.Background(), "What was my previous question?", true)
	assert.Equal(t, RouteConversational, d.Route)
	assert.Equal(t, 1, stub.calls)
}

func TestClassify_PaperDiscussionSectionIsNotMemory(t *testing.T) {
	stub := &stubLLM{reply: `{"route": "vectorstore", "reason": "asks about a paper section"}`}
	r := NewRouter(stub, ModeHybrid, logger.NewNopLogger())

	d := r.Classify(context.Background(), "What does the discussion section say about limitations?", true)
	assert.Equal(t, RouteDocumentGrounded, d.Route)
	assert.True(t, d.ByModel)
	assert.Equal(t, 1, stub.calls)
}

func TestClassify_HybridSkipsModelWithoutCorpus(t *testing.T) {
	stub := &stubLLM{reply: `{"route": "vectorstore"}`}
	r := NewRouter(stub, ModeHybrid, logger.NewNopLogger())

	d := r.Classify(context.Background(), "Can LLMs benefit from multi-round self debug?", false)
	assert.Equal(t, RouteGeneralKnowledge, d.Route)
	assert.True(t, d.DocumentSeeking)
	assert.Zero(t, stub.calls)
}

func TestClassify_ModelFailureFallsBackToRules(t *testing.T) {
	stub := &stubLLM{err: errors.New("providers unavailable")}
	r := NewRouter(stub, ModeLLM, logger.NewNopLogger())

	d := r.Classify(context.Background(), "Explain the transformer architecture", true)
	assert.Equal(t, RouteDocumentGrounded, d.Route)
	assert.True(t, d.DocumentSeeking)
	assert.False(t, d.ByModel)
}

func TestClassify_LLMModeConstrainedByCorpus(t *testing.T) {
	stub := &stubLLM{reply: `{"route": "vectorstore", "reason": "technical"}`}
	r := NewRouter(stub, ModeLLM, logger.NewNopLogger())

	d := r.Classify(context.Background(), "Explain the transformer architecture", false)
	assert.Equal(t, RouteGeneralKnowledge, d.Route)
	assert.True(t, d.DocumentSeeking)
}

func TestParseRouteReply(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{`{"route": "Memory"}`, "memory"},
		{`Route: vectorstore because it is technical`, "vectorstore"},
		{`general, not memory`, "general"},
		{`no idea`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			got, _ := parseRouteReply(tt.reply)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, m)

	m, err = ParseMode("RULES")
	require.NoError(t, err)
	assert.Equal(t, ModeRules, m)

	_, err = ParseMode("magic")
	assert.Error(t, err)
}
