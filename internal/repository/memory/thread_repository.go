package memory

import (
	"context"
	"sync"
	"time"

	"research-agent-be/internal/repository/contract"
	"research-agent-be/pkg/store"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type threadLog struct {
	mu    sync.Mutex
	turns []store.Turn
}

// ThreadRepository keeps thread logs in process memory.
// A ttl of zero keeps threads for the life of the process.
type ThreadRepository struct {
	cache *cache.Cache
	mu    sync.Mutex // guards log creation
}

var _ contract.ThreadRepository = (*ThreadRepository)(nil)

func NewThreadRepository(ttl time.Duration) *ThreadRepository {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = 10 * time.Minute
	}
	return &ThreadRepository{
		cache: cache.New(expiration, cleanup),
	}
}

func (r *ThreadRepository) lookup(threadID string, create bool) *threadLog {
	if x, found := r.cache.Get(threadID); found {
		return x.(*threadLog)
	}
	if !create {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if x, found := r.cache.Get(threadID); found {
		return x.(*threadLog)
	}
	l := &threadLog{}
	r.cache.SetDefault(threadID, l)
	return l
}

func (r *ThreadRepository) Append(ctx context.Context, threadID string, turns ...store.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	l := r.lookup(threadID, true)

	l.mu.Lock()
	for _, t := range turns {
		t.Position = len(l.turns)
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now()
		}
		l.turns = append(l.turns, t)
	}
	l.mu.Unlock()

	// Refresh expiry on activity
	r.cache.SetDefault(threadID, l)
	return nil
}

func (r *ThreadRepository) History(ctx context.Context, threadID string) ([]store.Turn, error) {
	l := r.lookup(threadID, false)
	if l == nil {
		return []store.Turn{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]store.Turn, len(l.turns))
	copy(out, l.turns)
	return out, nil
}

func (r *ThreadRepository) Clear(ctx context.Context, threadID string) error {
	l := r.lookup(threadID, false)
	if l == nil {
		return nil
	}

	l.mu.Lock()
	l.turns = nil
	l.mu.Unlock()
	return nil
}

func (r *ThreadRepository) NewThreadID(ctx context.Context) (string, error) {
	for {
		id := uuid.NewString()
		r.mu.Lock()
		_, taken := r.cache.Get(id)
		if !taken {
			r.cache.SetDefault(id, &threadLog{})
		}
		r.mu.Unlock()
		if !taken {
			return id, nil
		}
	}
}
