package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Rows are written once per rebuild and removed with their generation.
// The vector column is left undimensioned so any embedding model fits.
type ChunkEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Generation     int64           `gorm:"not null;index:idx_chunk_embeddings_generation"`
	ChunkId        string          `gorm:"type:text;not null"`
	Source         string          `gorm:"type:text;index"`
	Locator        string          `gorm:"type:text"`
	Document       string          `gorm:"type:text"`
	Metadata       datatypes.JSON  `gorm:"type:jsonb"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

func (ChunkEmbedding) TableName() string {
	return "chunk_embeddings"
}
