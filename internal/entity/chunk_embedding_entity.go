package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChunkEmbedding is one chunk vector belonging to an index generation
type ChunkEmbedding struct {
	Id             uuid.UUID
	Generation     int64
	ChunkId        string
	Source         string
	Locator        string
	Document       string
	Metadata       map[string]interface{}
	EmbeddingValue []float32
	CreatedAt      time.Time
}
