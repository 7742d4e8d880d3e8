package hybrid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/retrieval/semantic"
	"research-agent-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBuilder builds an index that scores chunks by shared words with the query
type stubBuilder struct {
	buildErr  error
	searchErr error
	block     chan struct{}
	closed    atomic.Int32
}

func (b *stubBuilder) Name() string { return "stub" }

func (b *stubBuilder) Build(ctx context.Context, _ int64, chunks []store.DocumentChunk) (semantic.Index, error) {
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.buildErr != nil {
		return nil, b.buildErr
	}
	return &stubIndex{owner: b, chunks: chunks}, nil
}

type stubIndex struct {
	owner  *stubBuilder
	chunks []store.DocumentChunk
}

func (ix *stubIndex) Search(_ context.Context, query string, k int) ([]store.RetrievalCandidate, error) {
	if ix.owner.searchErr != nil {
		return nil, ix.owner.searchErr
	}
	var out []store.RetrievalCandidate
	for _, c := range ix.chunks {
		score := 0.0
		for _, w := range strings.Fields(strings.ToLower(query)) {
			if strings.Contains(strings.ToLower(c.Text), w) {
				score++
			}
		}
		out = append(out, store.RetrievalCandidate{ChunkID: c.ID, Score: score, Channel: store.ChannelSemantic})
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (ix *stubIndex) Close(context.Context) error {
	ix.owner.closed.Add(1)
	return nil
}

func papers() []store.DocumentChunk {
	return []store.DocumentChunk{
		{ID: "debug-0", Source: "docs/self-debug.pdf", Text: "Teaching large language models to self debug with multi-round feedback."},
		{ID: "debug-1", Source: "docs/self-debug.pdf", Text: "Unit test execution results explain failures to the model."},
		{ID: "rag-0", Source: "docs/rag.pdf", Text: "Retrieval augmented generation grounds answers in documents."},
		{ID: "vit-0", Source: "docs/vit.pdf", Text: "Vision transformers split images into patches."},
	}
}

func newEngine(b semantic.Builder) *Engine {
	return NewEngine(b, time.Millisecond, logger.NewNopLogger())
}

func TestRetrieve_BeforeIndex(t *testing.T) {
	_, err := newEngine(nil).Retrieve(context.Background(), "anything", DefaultOptions())
	assert.ErrorIs(t, err, ErrIndexNotReady)
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	e := newEngine(&stubBuilder{})
	require.NoError(t, e.Index(context.Background(), nil))

	res, err := e.Retrieve(context.Background(), "self debug", DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.False(t, e.Status().HasDocuments)
}

func TestRetrieve_OnlyIndexedChunks(t *testing.T) {
	e := newEngine(&stubBuilder{})
	require.NoError(t, e.Index(context.Background(), papers()))

	res, err := e.Retrieve(context.Background(), "self debug feedback", DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	assert.False(t, res.Degraded())

	known := map[string]bool{}
	for _, c := range papers() {
		known[c.ID] = true
	}
	for _, c := range res.Candidates {
		assert.True(t, known[c.Chunk.ID])
	}
	assert.Equal(t, "debug-0", res.Candidates[0].Chunk.ID)
	assert.Equal(t, "self-debug.pdf", res.Candidates[0].Source)
	assert.NotEmpty(t, res.Candidates[0].Snippet)
	assert.NotNil(t, res.Candidates[0].LexicalScore)
	assert.NotNil(t, res.Candidates[0].SemanticScore)
}

func TestRetrieve_DeterministicOrdering(t *testing.T) {
	e := newEngine(&stubBuilder{})
	require.NoError(t, e.Index(context.Background(), papers()))

	first, err := e.Retrieve(context.Background(), "model", DefaultOptions())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Retrieve(context.Background(), "model", DefaultOptions())
		require.NoError(t, err)
		require.Len(t, again.Candidates, len(first.Candidates))
		for j := range first.Candidates {
			assert.Equal(t, first.Candidates[j].Chunk.ID, again.Candidates[j].Chunk.ID)
		}
	}
	for i := 1; i < len(first.Candidates); i++ {
		prev, cur := first.Candidates[i-1], first.Candidates[i]
		assert.True(t, prev.Score > cur.Score || (prev.Score == cur.Score && prev.Chunk.ID < cur.Chunk.ID))
	}
}

func TestRetrieve_RespectsK(t *testing.T) {
	e := newEngine(&stubBuilder{})
	require.NoError(t, e.Index(context.Background(), papers()))

	opts := DefaultOptions()
	opts.K = 2
	res, err := e.Retrieve(context.Background(), "model images documents", opts)
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)
}

func TestRetrieve_SemanticFailureDegrades(t *testing.T) {
	b := &stubBuilder{}
	e := newEngine(b)
	require.NoError(t, e.Index(context.Background(), papers()))
	b.searchErr = errors.New("embedding backend down")

	res, err := e.Retrieve(context.Background(), "vision transformers", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.Equal(t, []string{store.ChannelSemantic}, res.DegradedChannels)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "vit-0", res.Candidates[0].Chunk.ID)
	assert.InDelta(t, 1.0, res.Candidates[0].Score, 1e-9)
	assert.Nil(t, res.Candidates[0].SemanticScore)
}

func TestRetrieve_NoSemanticBuilder(t *testing.T) {
	e := newEngine(nil)
	require.NoError(t, e.Index(context.Background(), papers()))

	res, err := e.Retrieve(context.Background(), "retrieval augmented generation", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "rag-0", res.Candidates[0].Chunk.ID)
	assert.Equal(t, "disabled", e.Status().SemanticBackend)
}

func TestIndex_FailureKeepsPreviousCorpus(t *testing.T) {
	b := &stubBuilder{}
	e := newEngine(b)
	require.NoError(t, e.Index(context.Background(), papers()[:2]))
	before := e.Status()

	b.buildErr = errors.New("embedding quota exceeded")
	err := e.Index(context.Background(), papers())
	require.Error(t, err)

	after := e.Status()
	assert.Equal(t, before.Generation, after.Generation)
	assert.Equal(t, 2, after.ChunkCount)
	assert.Equal(t, 1, after.DocumentCount)
}

func TestIndex_RejectsDuplicateIDs(t *testing.T) {
	e := newEngine(nil)
	chunks := append(papers(), store.DocumentChunk{ID: "rag-0", Source: "x.pdf", Text: "dup"})

	err := e.Index(context.Background(), chunks)
	assert.ErrorIs(t, err, ErrInvalidCorpus)
	_, err = e.Retrieve(context.Background(), "x", DefaultOptions())
	assert.ErrorIs(t, err, ErrIndexNotReady)
}

func TestIndex_SingleRebuildInFlight(t *testing.T) {
	b := &stubBuilder{block: make(chan struct{})}
	e := newEngine(b)

	done := make(chan error, 1)
	go func() { done <- e.Index(context.Background(), papers()) }()

	require.Eventually(t, func() bool { return e.Status().Rebuilding }, time.Second, time.Millisecond)

	assert.ErrorIs(t, e.Index(context.Background(), papers()), ErrRebuildInProgress)
	assert.ErrorIs(t, e.Reset(context.Background()), ErrRebuildInProgress)

	close(b.block)
	require.NoError(t, <-done)
	assert.False(t, e.Status().Rebuilding)
	assert.Equal(t, 4, e.Status().ChunkCount)
}

func chunkIDs(chunks []store.DocumentChunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

func TestReplace_SwapsDocumentsByName(t *testing.T) {
	tests := []struct {
		name     string
		initial  []store.DocumentChunk
		fresh    []store.DocumentChunk
		wantIDs  []string
		wantDocs int
	}{
		{
			name:     "empty engine",
			fresh:    papers()[2:3],
			wantIDs:  []string{"rag-0"},
			wantDocs: 1,
		},
		{
			name:     "same name replaces every old chunk",
			initial:  papers(),
			fresh:    []store.DocumentChunk{{ID: "debug-v2-0", Source: "docs/self-debug.pdf", Text: "Revised self debugging paper."}},
			wantIDs:  []string{"rag-0", "vit-0", "debug-v2-0"},
			wantDocs: 3,
		},
		{
			name:     "new name is added",
			initial:  papers()[:2],
			fresh:    papers()[3:],
			wantIDs:  []string{"debug-0", "debug-1", "vit-0"},
			wantDocs: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(&stubBuilder{})
			if tt.initial != nil {
				require.NoError(t, e.Index(context.Background(), tt.initial))
			}
			require.NoError(t, e.Replace(context.Background(), tt.fresh))
			assert.Equal(t, tt.wantIDs, chunkIDs(e.Chunks()))
			assert.Equal(t, tt.wantDocs, e.Status().DocumentCount)
		})
	}
}

func TestReplace_KeepsDocumentsOfEarlierReplace(t *testing.T) {
	b := &stubBuilder{}
	e := newEngine(b)
	require.NoError(t, e.Index(context.Background(), papers()[:1]))

	b.block = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- e.Replace(context.Background(), papers()[2:3]) }()
	require.Eventually(t, func() bool { return e.Status().Rebuilding }, time.Second, time.Millisecond)

	assert.ErrorIs(t, e.Replace(context.Background(), papers()[3:]), ErrRebuildInProgress)

	close(b.block)
	require.NoError(t, <-done)
	b.block = nil
	require.NoError(t, e.Replace(context.Background(), papers()[3:]))

	assert.Equal(t, []string{"debug-0", "rag-0", "vit-0"}, chunkIDs(e.Chunks()))
}

func TestRetrieve_ServesPreviousCorpusDuringRebuild(t *testing.T) {
	b := &stubBuilder{}
	e := newEngine(b)
	require.NoError(t, e.Index(context.Background(), papers()[:1]))

	b.block = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- e.Index(context.Background(), papers()) }()
	require.Eventually(t, func() bool { return e.Status().Rebuilding }, time.Second, time.Millisecond)

	res, err := e.Retrieve(context.Background(), "vision transformers self debug", DefaultOptions())
	require.NoError(t, err)
	for _, c := range res.Candidates {
		assert.Equal(t, "debug-0", c.Chunk.ID)
	}

	close(b.block)
	require.NoError(t, <-done)
	res, err = e.Retrieve(context.Background(), "vision transformers", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "vit-0", res.Candidates[0].Chunk.ID)
}

func TestReset_RetiresIndex(t *testing.T) {
	b := &stubBuilder{}
	e := newEngine(b)
	require.NoError(t, e.Index(context.Background(), papers()))
	require.NoError(t, e.Reset(context.Background()))
	require.NoError(t, e.Reset(context.Background()))

	_, err := e.Retrieve(context.Background(), "self debug", DefaultOptions())
	assert.ErrorIs(t, err, ErrIndexNotReady)
	assert.Equal(t, Status{SemanticBackend: "stub"}, e.Status())
	assert.Empty(t, e.Chunks())
	assert.Eventually(t, func() bool { return b.closed.Load() == 1 }, time.Second, time.Millisecond)
}

func TestRetrieve_ConcurrentReaders(t *testing.T) {
	e := newEngine(&stubBuilder{})
	require.NoError(t, e.Index(context.Background(), papers()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				_ = e.Index(context.Background(), papers())
				return
			}
			res, err := e.Retrieve(context.Background(), fmt.Sprintf("model %d", i), DefaultOptions())
			if assert.NoError(t, err) {
				assert.NotEmpty(t, res.Candidates)
			}
		}(i)
	}
	wg.Wait()
}
