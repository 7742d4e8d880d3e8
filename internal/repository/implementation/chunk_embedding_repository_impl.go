package implementation

import (
	"context"

	"research-agent-be/internal/entity"
	"research-agent-be/internal/mapper"
	"research-agent-be/internal/model"
	"research-agent-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const chunkEmbeddingBatchSize = 200

type ChunkEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChunkEmbeddingMapper
}

func NewChunkEmbeddingRepository(db *gorm.DB) contract.ChunkEmbeddingRepository {
	return &ChunkEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewChunkEmbeddingMapper(),
	}
}

func (r *ChunkEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.ChunkEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	models := r.mapper.ToModels(embeddings)
	return r.db.WithContext(ctx).CreateInBatches(models, chunkEmbeddingBatchSize).Error
}

func (r *ChunkEmbeddingRepositoryImpl) SearchSimilarWithScore(ctx context.Context, generation int64, embedding []float32, limit int) ([]*contract.ScoredChunkEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}

	// pgvector <=> is cosine distance, so similarity = 1 - distance
	type result struct {
		model.ChunkEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("chunk_embeddings").
		Select("chunk_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("generation = ?", generation).
		Order("similarity DESC").
		Order("chunk_id ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredChunkEmbedding, len(results))
	for i := range results {
		scored[i] = &contract.ScoredChunkEmbedding{
			Embedding:  r.mapper.ToEntity(&results[i].ChunkEmbedding),
			Similarity: results[i].Similarity,
		}
	}
	return scored, nil
}

func (r *ChunkEmbeddingRepositoryImpl) CountByGeneration(ctx context.Context, generation int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ChunkEmbedding{}).Where("generation = ?", generation).Count(&count).Error
	return count, err
}

func (r *ChunkEmbeddingRepositoryImpl) DeleteByGeneration(ctx context.Context, generation int64) error {
	return r.db.WithContext(ctx).Where("generation = ?", generation).Delete(&model.ChunkEmbedding{}).Error
}

func (r *ChunkEmbeddingRepositoryImpl) DeleteStale(ctx context.Context, keep int64) error {
	return r.db.WithContext(ctx).Where("generation < ?", keep).Delete(&model.ChunkEmbedding{}).Error
}
