package mapper

import (
	"encoding/json"

	"research-agent-be/internal/entity"
	"research-agent-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type ChunkEmbeddingMapper struct{}

func NewChunkEmbeddingMapper() *ChunkEmbeddingMapper {
	return &ChunkEmbeddingMapper{}
}

func (m *ChunkEmbeddingMapper) ToEntity(e *model.ChunkEmbedding) *entity.ChunkEmbedding {
	if e == nil {
		return nil
	}

	var metadata map[string]interface{}
	if len(e.Metadata) > 0 {
		_ = json.Unmarshal(e.Metadata, &metadata)
	}

	return &entity.ChunkEmbedding{
		Id:             e.Id,
		Generation:     e.Generation,
		ChunkId:        e.ChunkId,
		Source:         e.Source,
		Locator:        e.Locator,
		Document:       e.Document,
		Metadata:       metadata,
		EmbeddingValue: e.EmbeddingValue.Slice(),
		CreatedAt:      e.CreatedAt,
	}
}

func (m *ChunkEmbeddingMapper) ToModel(e *entity.ChunkEmbedding) *model.ChunkEmbedding {
	if e == nil {
		return nil
	}

	var metadata datatypes.JSON
	if len(e.Metadata) > 0 {
		if raw, err := json.Marshal(e.Metadata); err == nil {
			metadata = datatypes.JSON(raw)
		}
	}

	return &model.ChunkEmbedding{
		Id:             e.Id,
		Generation:     e.Generation,
		ChunkId:        e.ChunkId,
		Source:         e.Source,
		Locator:        e.Locator,
		Document:       e.Document,
		Metadata:       metadata,
		EmbeddingValue: pgvector.NewVector(e.EmbeddingValue),
		CreatedAt:      e.CreatedAt,
	}
}

func (m *ChunkEmbeddingMapper) ToModels(embeddings []*entity.ChunkEmbedding) []*model.ChunkEmbedding {
	models := make([]*model.ChunkEmbedding, len(embeddings))
	for i, e := range embeddings {
		models[i] = m.ToModel(e)
	}
	return models
}
