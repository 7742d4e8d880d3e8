package service

import (
	"context"
	"testing"
	"time"

	"research-agent-be/internal/dto"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/repository/memory"
	"research-agent-be/pkg/rag/orchestrator"
	"research-agent-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnswerer struct {
	got    orchestrator.Request
	answer *store.Answer
}

func (f *fakeAnswerer) Answer(_ context.Context, req orchestrator.Request) *store.Answer {
	f.got = req
	return f.answer
}

func TestAnswerQuestion_MapsRequestAndAnswer(t *testing.T) {
	answerer := &fakeAnswerer{answer: &store.Answer{
		Text:       "Self-debugging improves pass rates.",
		References: []store.Reference{{Source: "self-debug.pdf", RelevanceScore: 0.9, Snippet: "..."}},
		ThreadID:   "t-1",
		Route:      "document-grounded",
	}}
	svc := NewQueryService(answerer, memory.NewThreadRepository(0), logger.NewNopLogger())

	topK := 3
	timeout := 1.5
	res, err := svc.AnswerQuestion(context.Background(), &dto.QueryRequest{
		Question: "Can LLMs benefit from multi-round self debug?",
		ThreadID: "t-1",
		Config:   &dto.QueryConfig{TopK: &topK, QuestionTimeoutSeconds: &timeout},
	})
	require.NoError(t, err)

	assert.Equal(t, "Can LLMs benefit from multi-round self debug?", answerer.got.Question)
	assert.Equal(t, "t-1", answerer.got.ThreadID)
	require.NotNil(t, answerer.got.Overrides)
	assert.Equal(t, 3, *answerer.got.Overrides.TopK)
	assert.Equal(t, 1500*time.Millisecond, *answerer.got.Overrides.QuestionTimeout)
	assert.Nil(t, answerer.got.Overrides.ProviderTimeout)

	assert.Equal(t, "Self-debugging improves pass rates.", res.Answer)
	assert.Equal(t, "t-1", res.ThreadID)
	require.Len(t, res.References, 1)
	assert.Equal(t, "self-debug.pdf", res.References[0].Source)
}

func TestAnswerQuestion_NoConfigAndNoReferences(t *testing.T) {
	answerer := &fakeAnswerer{answer: &store.Answer{Text: "Hello!", ThreadID: "t-2", Route: "conversational"}}
	svc := NewQueryService(answerer, memory.NewThreadRepository(0), logger.NewNopLogger())

	res, err := svc.AnswerQuestion(context.Background(), &dto.QueryRequest{Question: "hi"})
	require.NoError(t, err)
	assert.Nil(t, answerer.got.Overrides)
	assert.NotNil(t, res.References)
	assert.Empty(t, res.References)
}

func TestThreadStatusAndReset(t *testing.T) {
	ctx := context.Background()
	threads := memory.NewThreadRepository(0)
	svc := NewQueryService(&fakeAnswerer{}, threads, logger.NewNopLogger())

	require.NoError(t, threads.Append(ctx, "t-3",
		store.HumanTurn("What is BM25?"),
		store.AssistantTurn("A lexical ranking function."),
	))

	status, err := svc.ThreadStatus(ctx, "t-3")
	require.NoError(t, err)
	assert.Equal(t, 2, status.MessageCount)
	assert.True(t, status.HasHistory)
	require.Len(t, status.Messages, 2)
	assert.Equal(t, "human", status.Messages[0].Type)
	assert.Equal(t, "ai", status.Messages[1].Type)
	assert.Equal(t, 1, status.Messages[1].Position)

	reset, err := svc.ResetThread(ctx, "t-3")
	require.NoError(t, err)
	assert.Equal(t, 2, reset.Cleared)

	status, err = svc.ThreadStatus(ctx, "t-3")
	require.NoError(t, err)
	assert.Equal(t, 0, status.MessageCount)
	assert.False(t, status.HasHistory)
	assert.NotNil(t, status.Messages)
}

func TestResetThread_UnknownThreadSucceeds(t *testing.T) {
	svc := NewQueryService(&fakeAnswerer{}, memory.NewThreadRepository(0), logger.NewNopLogger())

	res, err := svc.ResetThread(context.Background(), "never-used")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Cleared)
}
