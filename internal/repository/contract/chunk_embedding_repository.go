package contract

import (
	"context"

	"research-agent-be/internal/entity"
)

// ScoredChunkEmbedding wraps ChunkEmbedding with its cosine similarity
type ScoredChunkEmbedding struct {
	Embedding  *entity.ChunkEmbedding
	Similarity float64
}

type ChunkEmbeddingRepository interface {
	CreateBulk(ctx context.Context, embeddings []*entity.ChunkEmbedding) error
	SearchSimilarWithScore(ctx context.Context, generation int64, embedding []float32, limit int) ([]*ScoredChunkEmbedding, error)
	CountByGeneration(ctx context.Context, generation int64) (int64, error)
	DeleteByGeneration(ctx context.Context, generation int64) error
	// DeleteStale removes every generation below keep, left over by earlier processes
	DeleteStale(ctx context.Context, keep int64) error
}
