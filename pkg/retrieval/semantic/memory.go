package semantic

import (
	"context"
	"fmt"
	"sort"

	"research-agent-be/pkg/embedding"
	"research-agent-be/pkg/store"
)

// MemoryBuilder keeps vectors in process and searches them exhaustively
type MemoryBuilder struct {
	embedder    embedding.EmbeddingProvider
	concurrency int
}

func NewMemoryBuilder(embedder embedding.EmbeddingProvider, concurrency int) *MemoryBuilder {
	return &MemoryBuilder{embedder: embedder, concurrency: concurrency}
}

func (b *MemoryBuilder) Name() string {
	return "memory:" + b.embedder.Name()
}

func (b *MemoryBuilder) Build(ctx context.Context, _ int64, chunks []store.DocumentChunk) (Index, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedding.GenerateAll(ctx, b.embedder, texts, embedding.TaskRetrievalDocument, b.concurrency)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return &memoryIndex{embedder: b.embedder, ids: ids, vectors: vectors}, nil
}

type memoryIndex struct {
	embedder embedding.EmbeddingProvider
	ids      []string
	vectors  [][]float32
}

func (ix *memoryIndex) Search(ctx context.Context, query string, k int) ([]store.RetrievalCandidate, error) {
	if k <= 0 || len(ix.ids) == 0 {
		return nil, nil
	}
	q, err := ix.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits := make([]store.RetrievalCandidate, len(ix.ids))
	for i, v := range ix.vectors {
		hits[i] = store.RetrievalCandidate{
			ChunkID: ix.ids[i],
			Score:   embedding.Cosine(q, v),
			Channel: store.ChannelSemantic,
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (ix *memoryIndex) Close(context.Context) error {
	return nil
}
