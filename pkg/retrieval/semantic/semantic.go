package semantic

import (
	"context"

	"research-agent-be/pkg/store"
)

// Index answers similarity queries over one built chunk set
type Index interface {
	Search(ctx context.Context, query string, k int) ([]store.RetrievalCandidate, error)
	// Close releases whatever the build allocated; called once the index is retired
	Close(ctx context.Context) error
}

// Builder embeds a chunk set into a new Index without touching any published one.
// A failed build leaves nothing behind.
type Builder interface {
	Name() string
	Build(ctx context.Context, generation int64, chunks []store.DocumentChunk) (Index, error)
}
