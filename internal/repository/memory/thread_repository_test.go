package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"research-agent-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadRepository_AppendAndHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewThreadRepository(0)

	require.NoError(t, repo.Append(ctx, "t1",
		store.HumanTurn("What is the capital of Thailand?"),
		store.AssistantTurn("Bangkok"),
	))

	history, err := repo.History(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, store.RoleHuman, history[0].Role)
	assert.Equal(t, 0, history[0].Position)
	assert.Equal(t, "Bangkok", history[1].Content)
	assert.Equal(t, 1, history[1].Position)
}

func TestThreadRepository_UnknownThreadIsEmpty(t *testing.T) {
	repo := NewThreadRepository(0)

	history, err := repo.History(context.Background(), "never-used")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestThreadRepository_ThreadIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewThreadRepository(0)

	require.NoError(t, repo.Append(ctx, "b", store.HumanTurn("hello b")))
	before, _ := repo.History(ctx, "b")

	require.NoError(t, repo.Append(ctx, "a", store.HumanTurn("hello a"), store.AssistantTurn("hi")))

	after, _ := repo.History(ctx, "b")
	assert.Equal(t, before, after)
}

func TestThreadRepository_Clear(t *testing.T) {
	ctx := context.Background()
	repo := NewThreadRepository(0)

	tests := []struct {
		name  string
		setup func()
	}{
		{"existing thread", func() { _ = repo.Append(ctx, "x", store.HumanTurn("q")) }},
		{"already cleared thread", func() {}},
		{"unknown thread", func() {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			require.NoError(t, repo.Clear(ctx, "x"))
			history, err := repo.History(ctx, "x")
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}

	// Identifier remains usable after a reset
	require.NoError(t, repo.Append(ctx, "x", store.HumanTurn("again")))
	history, _ := repo.History(ctx, "x")
	require.Len(t, history, 1)
	assert.Equal(t, 0, history[0].Position)
}

func TestThreadRepository_HistoryReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewThreadRepository(0)
	require.NoError(t, repo.Append(ctx, "t", store.HumanTurn("original")))

	history, _ := repo.History(ctx, "t")
	history[0].Content = "mutated"

	again, _ := repo.History(ctx, "t")
	assert.Equal(t, "original", again[0].Content)
}

func TestThreadRepository_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	repo := NewThreadRepository(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.Append(ctx, "shared",
				store.HumanTurn(fmt.Sprintf("q%d", i)),
				store.AssistantTurn(fmt.Sprintf("a%d", i)),
			)
		}(i)
	}
	wg.Wait()

	history, err := repo.History(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, history, 100)
	for i := 0; i < len(history); i += 2 {
		// Pairs appended in one call stay adjacent
		assert.Equal(t, store.RoleHuman, history[i].Role)
		assert.Equal(t, store.RoleAssistant, history[i+1].Role)
		assert.Equal(t, history[i].Content[1:], history[i+1].Content[1:])
		assert.Equal(t, i, history[i].Position)
	}
}

func TestThreadRepository_NewThreadIDUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewThreadRepository(0)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := repo.NewThreadID(ctx)
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
