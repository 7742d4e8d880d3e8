package implementation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"research-agent-be/internal/repository/contract"
	"research-agent-be/pkg/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const threadKeyPrefix = "rag:thread:"

// RedisThreadRepository stores each thread as a Redis list of JSON turns
type RedisThreadRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisThreadRepository(rdb *redis.Client, ttl time.Duration) contract.ThreadRepository {
	return &RedisThreadRepository{
		rdb: rdb,
		ttl: ttl,
	}
}

func threadKey(threadID string) string {
	return threadKeyPrefix + threadID
}

type redisTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *RedisThreadRepository) Append(ctx context.Context, threadID string, turns ...store.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]interface{}, len(turns))
	for i, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now()
		}
		data, err := json.Marshal(redisTurn{Role: t.Role, Content: t.Content, CreatedAt: t.CreatedAt})
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values[i] = data
	}

	// One RPUSH keeps the pair contiguous
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, threadKey(threadID), values...)
	if r.ttl > 0 {
		pipe.Expire(ctx, threadKey(threadID), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append thread %s: %w", threadID, err)
	}
	return nil
}

func (r *RedisThreadRepository) History(ctx context.Context, threadID string) ([]store.Turn, error) {
	raw, err := r.rdb.LRange(ctx, threadKey(threadID), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []store.Turn{}, nil
		}
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}

	turns := make([]store.Turn, 0, len(raw))
	for i, item := range raw {
		var t redisTurn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("decode turn %d of thread %s: %w", i, threadID, err)
		}
		turns = append(turns, store.Turn{
			Role:      t.Role,
			Content:   t.Content,
			Position:  i,
			CreatedAt: t.CreatedAt,
		})
	}
	return turns, nil
}

func (r *RedisThreadRepository) Clear(ctx context.Context, threadID string) error {
	if err := r.rdb.Del(ctx, threadKey(threadID)).Err(); err != nil {
		return fmt.Errorf("clear thread %s: %w", threadID, err)
	}
	return nil
}

func (r *RedisThreadRepository) NewThreadID(ctx context.Context) (string, error) {
	for {
		id := uuid.NewString()
		n, err := r.rdb.Exists(ctx, threadKey(id)).Result()
		if err != nil {
			return "", fmt.Errorf("check thread id: %w", err)
		}
		if n == 0 {
			return id, nil
		}
	}
}
