package contract

import (
	"context"

	"research-agent-be/pkg/store"
)

// ThreadRepository is the conversation store: per-thread ordered turn logs.
// Unknown thread identifiers behave as empty threads.
type ThreadRepository interface {
	// Append adds turns to the end of the thread in the given order
	Append(ctx context.Context, threadID string, turns ...store.Turn) error
	// History returns the ordered turns of the thread (empty for unknown threads)
	History(ctx context.Context, threadID string) ([]store.Turn, error)
	// Clear empties the thread; the identifier stays valid
	Clear(ctx context.Context, threadID string) error
	// NewThreadID mints an identifier not used by any existing thread
	NewThreadID(ctx context.Context) (string, error)
}
