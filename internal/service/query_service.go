package service

import (
	"context"
	"fmt"
	"time"

	"research-agent-be/internal/dto"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/repository/contract"
	"research-agent-be/pkg/rag/orchestrator"
	"research-agent-be/pkg/store"
)

type IQueryService interface {
	AnswerQuestion(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error)
	ResetThread(ctx context.Context, threadID string) (*dto.ResetThreadResponse, error)
	ThreadStatus(ctx context.Context, threadID string) (*dto.ThreadStatusResponse, error)
}

// Answerer runs the question pipeline
type Answerer interface {
	Answer(ctx context.Context, req orchestrator.Request) *store.Answer
}

type queryService struct {
	answerer Answerer
	threads  contract.ThreadRepository
	logger   logger.ILogger
}

func NewQueryService(answerer Answerer, threads contract.ThreadRepository, log logger.ILogger) IQueryService {
	return &queryService{
		answerer: answerer,
		threads:  threads,
		logger:   log,
	}
}

func (s *queryService) AnswerQuestion(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	answer := s.answerer.Answer(ctx, orchestrator.Request{
		Question:  req.Question,
		ThreadID:  req.ThreadID,
		Overrides: toOverrides(req.Config),
	})

	refs := make([]dto.ReferenceResponse, 0, len(answer.References))
	for _, r := range answer.References {
		refs = append(refs, dto.ReferenceResponse{
			Source:         r.Source,
			RelevanceScore: r.RelevanceScore,
			Snippet:        r.Snippet,
		})
	}

	return &dto.QueryResponse{
		Answer:     answer.Text,
		References: refs,
		ThreadID:   answer.ThreadID,
		Route:      answer.Route,
		Degraded:   answer.Degraded,
		Notices:    answer.Notices,
	}, nil
}

func (s *queryService) ResetThread(ctx context.Context, threadID string) (*dto.ResetThreadResponse, error) {
	turns, err := s.threads.History(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to read thread %s: %w", threadID, err)
	}
	if err := s.threads.Clear(ctx, threadID); err != nil {
		return nil, fmt.Errorf("failed to clear thread %s: %w", threadID, err)
	}

	s.logger.Info("QueryService", "Thread reset", map[string]interface{}{
		"thread_id": threadID,
		"cleared":   len(turns),
	})
	return &dto.ResetThreadResponse{ThreadID: threadID, Cleared: len(turns)}, nil
}

func (s *queryService) ThreadStatus(ctx context.Context, threadID string) (*dto.ThreadStatusResponse, error) {
	turns, err := s.threads.History(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to read thread %s: %w", threadID, err)
	}

	messages := make([]dto.ThreadMessage, 0, len(turns))
	for _, t := range turns {
		kind := "human"
		if t.Role == store.RoleAssistant {
			kind = "ai"
		}
		messages = append(messages, dto.ThreadMessage{
			Type:      kind,
			Content:   t.Content,
			Position:  t.Position,
			CreatedAt: t.CreatedAt,
		})
	}

	return &dto.ThreadStatusResponse{
		ThreadID:     threadID,
		MessageCount: len(messages),
		HasHistory:   len(messages) > 0,
		Messages:     messages,
	}, nil
}

func toOverrides(cfg *dto.QueryConfig) *orchestrator.Overrides {
	if cfg == nil {
		return nil
	}
	return &orchestrator.Overrides{
		SemanticWeight:     cfg.SemanticWeight,
		LexicalWeight:      cfg.LexicalWeight,
		TopK:               cfg.TopK,
		ChannelTopK:        cfg.ChannelTopK,
		GradeThreshold:     cfg.GradeThreshold,
		SelfCheckThreshold: cfg.SelfCheckThreshold,
		MaxRegenerations:   cfg.MaxRegenerations,
		HistoryWindow:      cfg.HistoryWindow,
		QuestionTimeout:    seconds(cfg.QuestionTimeoutSeconds),
		ProviderTimeout:    seconds(cfg.ProviderTimeoutSeconds),
		PrimaryModel:       cfg.PrimaryModel,
		BackupModel:        cfg.BackupModel,
	}
}

func seconds(v *float64) *time.Duration {
	if v == nil {
		return nil
	}
	d := time.Duration(*v * float64(time.Second))
	return &d
}
