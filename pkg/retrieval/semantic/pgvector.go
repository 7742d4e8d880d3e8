package semantic

import (
	"context"
	"fmt"

	"research-agent-be/internal/entity"
	"research-agent-be/internal/repository/contract"
	"research-agent-be/pkg/embedding"
	"research-agent-be/pkg/store"
)

// PgvectorBuilder persists each generation's vectors in Postgres and lets
// pgvector rank them.
type PgvectorBuilder struct {
	embedder    embedding.EmbeddingProvider
	repo        contract.ChunkEmbeddingRepository
	concurrency int
}

func NewPgvectorBuilder(embedder embedding.EmbeddingProvider, repo contract.ChunkEmbeddingRepository, concurrency int) *PgvectorBuilder {
	return &PgvectorBuilder{embedder: embedder, repo: repo, concurrency: concurrency}
}

func (b *PgvectorBuilder) Name() string {
	return "pgvector:" + b.embedder.Name()
}

func (b *PgvectorBuilder) Build(ctx context.Context, generation int64, chunks []store.DocumentChunk) (Index, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedding.GenerateAll(ctx, b.embedder, texts, embedding.TaskRetrievalDocument, b.concurrency)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	rows := make([]*entity.ChunkEmbedding, len(chunks))
	for i, c := range chunks {
		rows[i] = &entity.ChunkEmbedding{
			Generation:     generation,
			ChunkId:        c.ID,
			Source:         c.Source,
			Locator:        c.Locator,
			Document:       c.Text,
			Metadata:       c.Metadata,
			EmbeddingValue: vectors[i],
		}
	}

	if err := b.repo.CreateBulk(ctx, rows); err != nil {
		// Partial batches may have landed
		_ = b.repo.DeleteByGeneration(context.WithoutCancel(ctx), generation)
		return nil, fmt.Errorf("store chunk embeddings: %w", err)
	}
	return &pgvectorIndex{embedder: b.embedder, repo: b.repo, generation: generation}, nil
}

type pgvectorIndex struct {
	embedder   embedding.EmbeddingProvider
	repo       contract.ChunkEmbeddingRepository
	generation int64
}

func (ix *pgvectorIndex) Search(ctx context.Context, query string, k int) ([]store.RetrievalCandidate, error) {
	if k <= 0 {
		return nil, nil
	}
	q, err := ix.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored, err := ix.repo.SearchSimilarWithScore(ctx, ix.generation, q, k)
	if err != nil {
		return nil, fmt.Errorf("search chunk embeddings: %w", err)
	}

	hits := make([]store.RetrievalCandidate, len(scored))
	for i, s := range scored {
		hits[i] = store.RetrievalCandidate{
			ChunkID: s.Embedding.ChunkId,
			Score:   s.Similarity,
			Channel: store.ChannelSemantic,
		}
	}
	return hits, nil
}

func (ix *pgvectorIndex) Close(ctx context.Context) error {
	return ix.repo.DeleteByGeneration(ctx, ix.generation)
}
