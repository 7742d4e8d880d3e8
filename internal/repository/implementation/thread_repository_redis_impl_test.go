package implementation

import (
	"context"
	"os"
	"testing"

	"research-agent-be/pkg/store"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisThreadRepository(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping integration test: REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	repo := NewRedisThreadRepository(rdb, 0)

	id, err := repo.NewThreadID(ctx)
	require.NoError(t, err)
	defer repo.Clear(ctx, id)

	t.Run("unknown thread is empty", func(t *testing.T) {
		history, err := repo.History(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("append keeps order", func(t *testing.T) {
		require.NoError(t, repo.Append(ctx, id, store.HumanTurn("q1"), store.AssistantTurn("a1")))
		history, err := repo.History(ctx, id)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "q1", history[0].Content)
		assert.Equal(t, 1, history[1].Position)
	})

	t.Run("clear twice", func(t *testing.T) {
		require.NoError(t, repo.Clear(ctx, id))
		require.NoError(t, repo.Clear(ctx, id))
		history, err := repo.History(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}
