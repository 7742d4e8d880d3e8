package hybrid

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/metrics"
	"research-agent-be/pkg/retrieval/lexical"
	"research-agent-be/pkg/retrieval/semantic"
	"research-agent-be/pkg/store"

	"golang.org/x/sync/errgroup"
)

var (
	ErrIndexNotReady     = errors.New("index not ready: no corpus has been indexed")
	ErrRebuildInProgress = errors.New("index rebuild already in progress")
	ErrInvalidCorpus     = errors.New("invalid corpus")
)

// snapshot is one fully built corpus. It is never mutated after publication.
type snapshot struct {
	generation int64
	chunks     []store.DocumentChunk
	byID       map[string]int
	documents  int
	lexical    *lexical.Index
	semantic   semantic.Index // nil when no semantic builder is configured
}

// Options tune a single retrieval
type Options struct {
	K              int
	ChannelK       int // Hits requested from each channel before fusion
	SemanticWeight float64
	LexicalWeight  float64
}

func DefaultOptions() Options {
	return Options{K: 6, ChannelK: 12, SemanticWeight: 0.5, LexicalWeight: 0.5}
}

type Result struct {
	Candidates       []store.FusedCandidate
	DegradedChannels []string
	Generation       int64
}

func (r *Result) Degraded() bool {
	return len(r.DegradedChannels) > 0
}

type Status struct {
	DocumentCount   int    `json:"document_count"`
	ChunkCount      int    `json:"chunk_count"`
	HasDocuments    bool   `json:"has_documents"`
	Generation      int64  `json:"generation"`
	Rebuilding      bool   `json:"rebuilding"`
	SemanticBackend string `json:"semantic_backend"`
}

// Engine fuses lexical and semantic retrieval over an atomically swapped corpus.
// Retrieve never blocks on a rebuild; at most one rebuild runs at a time.
type Engine struct {
	current    atomic.Pointer[snapshot]
	rebuilding atomic.Bool
	lastGen    atomic.Int64

	builder     semantic.Builder
	retireAfter time.Duration
	logger      logger.ILogger
}

// NewEngine accepts a nil builder, in which case only the lexical channel serves
// and every retrieval reports the semantic channel as degraded.
func NewEngine(builder semantic.Builder, retireAfter time.Duration, log logger.ILogger) *Engine {
	return &Engine{
		builder:     builder,
		retireAfter: retireAfter,
		logger:      log,
	}
}

// Index replaces the corpus in both channels. Both are built off to the side
// and published together; any failure keeps the previous corpus serving.
func (e *Engine) Index(ctx context.Context, chunks []store.DocumentChunk) error {
	return e.rebuild(ctx, func() []store.DocumentChunk { return chunks })
}

// Replace publishes the current corpus with every document named in fresh
// swapped for its new chunks. The merge reads the corpus while holding the
// rebuild slot, so concurrent replacements cannot drop each other's documents.
func (e *Engine) Replace(ctx context.Context, fresh []store.DocumentChunk) error {
	return e.rebuild(ctx, func() []store.DocumentChunk {
		replaced := make(map[string]struct{})
		for _, c := range fresh {
			replaced[c.Source] = struct{}{}
		}
		var merged []store.DocumentChunk
		if snap := e.current.Load(); snap != nil {
			merged = make([]store.DocumentChunk, 0, len(snap.chunks)+len(fresh))
			for _, c := range snap.chunks {
				if _, ok := replaced[c.Source]; !ok {
					merged = append(merged, c)
				}
			}
		}
		return append(merged, fresh...)
	})
}

// rebuild runs corpus and the build inside the single rebuild slot
func (e *Engine) rebuild(ctx context.Context, corpus func() []store.DocumentChunk) error {
	if !e.rebuilding.CompareAndSwap(false, true) {
		metrics.IncRebuild("rejected")
		return ErrRebuildInProgress
	}
	defer e.rebuilding.Store(false)

	start := time.Now()
	chunks := corpus()
	next, err := e.build(ctx, chunks)
	if err != nil {
		metrics.IncRebuild("failed")
		e.logger.Error("HybridEngine", "Index rebuild failed, previous corpus kept", map[string]interface{}{
			"chunks": len(chunks),
			"error":  err,
		})
		return err
	}

	e.publish(next)
	metrics.IncRebuild("ok")
	e.logger.Info("HybridEngine", "Index published", map[string]interface{}{
		"generation":  next.generation,
		"chunks":      len(next.chunks),
		"documents":   next.documents,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (e *Engine) build(ctx context.Context, chunks []store.DocumentChunk) (*snapshot, error) {
	byID := make(map[string]int, len(chunks))
	sources := make(map[string]struct{})
	for i, c := range chunks {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: chunk %d has no id", ErrInvalidCorpus, i)
		}
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate chunk id %q", ErrInvalidCorpus, c.ID)
		}
		byID[c.ID] = i
		sources[c.Source] = struct{}{}
	}

	owned := make([]store.DocumentChunk, len(chunks))
	copy(owned, chunks)

	next := &snapshot{
		generation: e.nextGeneration(),
		chunks:     owned,
		byID:       byID,
		documents:  len(sources),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		next.lexical = lexical.NewIndex(owned)
		return nil
	})
	if e.builder != nil && len(owned) > 0 {
		g.Go(func() error {
			ix, err := e.builder.Build(gctx, next.generation, owned)
			if err != nil {
				return fmt.Errorf("build semantic index: %w", err)
			}
			next.semantic = ix
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return next, nil
}

// nextGeneration is time based so persisted generations never collide across restarts
func (e *Engine) nextGeneration() int64 {
	for {
		prev := e.lastGen.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if e.lastGen.CompareAndSwap(prev, next) {
			return next
		}
	}
}

func (e *Engine) publish(next *snapshot) {
	old := e.current.Swap(next)
	e.retire(old)
}

// retire closes a replaced semantic index once in-flight searches had time to finish
func (e *Engine) retire(old *snapshot) {
	if old == nil || old.semantic == nil {
		return
	}
	time.AfterFunc(e.retireAfter, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := old.semantic.Close(ctx); err != nil {
			e.logger.Warn("HybridEngine", "Failed to release retired index", map[string]interface{}{
				"generation": old.generation,
				"error":      err,
			})
		}
	})
}

// Reset unpublishes the corpus; retrieval reports ErrIndexNotReady until the next Index
func (e *Engine) Reset(ctx context.Context) error {
	if !e.rebuilding.CompareAndSwap(false, true) {
		return ErrRebuildInProgress
	}
	defer e.rebuilding.Store(false)

	old := e.current.Swap(nil)
	e.retire(old)
	e.logger.Info("HybridEngine", "Index reset", nil)
	return nil
}

func (e *Engine) Status() Status {
	s := Status{Rebuilding: e.rebuilding.Load(), SemanticBackend: "disabled"}
	if e.builder != nil {
		s.SemanticBackend = e.builder.Name()
	}
	if snap := e.current.Load(); snap != nil {
		s.DocumentCount = snap.documents
		s.ChunkCount = len(snap.chunks)
		s.HasDocuments = len(snap.chunks) > 0
		s.Generation = snap.generation
	}
	return s
}

// Chunks returns a copy of the published corpus
func (e *Engine) Chunks() []store.DocumentChunk {
	snap := e.current.Load()
	if snap == nil {
		return nil
	}
	out := make([]store.DocumentChunk, len(snap.chunks))
	copy(out, snap.chunks)
	return out
}

// Retrieve returns up to opts.K fused candidates for query. A channel that
// fails or is not built is skipped and reported in DegradedChannels.
func (e *Engine) Retrieve(ctx context.Context, query string, opts Options) (*Result, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, ErrIndexNotReady
	}
	result := &Result{Generation: snap.generation}
	if len(snap.chunks) == 0 || opts.K <= 0 {
		return result, nil
	}
	channelK := opts.ChannelK
	if channelK < opts.K {
		channelK = opts.K
	}

	var lexicalHits, semanticHits []store.RetrievalCandidate
	var semanticErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		lexicalHits = snap.lexical.Search(query, channelK)
		metrics.ObserveRetriever(store.ChannelLexical, start, len(lexicalHits))
		return nil
	})
	if snap.semantic != nil {
		g.Go(func() error {
			start := time.Now()
			semanticHits, semanticErr = snap.semantic.Search(gctx, query, channelK)
			metrics.ObserveRetriever(store.ChannelSemantic, start, len(semanticHits))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	semanticUp := snap.semantic != nil && semanticErr == nil
	if !semanticUp {
		result.DegradedChannels = append(result.DegradedChannels, store.ChannelSemantic)
		semanticHits = nil
		if semanticErr != nil {
			e.logger.Warn("HybridEngine", "Semantic channel failed, serving lexical only", map[string]interface{}{
				"error": semanticErr,
			})
		}
	}

	ws, wl := weights(opts.SemanticWeight, opts.LexicalWeight, semanticUp, true)
	ranked := fuse(lexicalHits, keepKnown(semanticHits, snap.byID), ws, wl)
	if len(ranked) > opts.K {
		ranked = ranked[:opts.K]
	}

	result.Candidates = make([]store.FusedCandidate, 0, len(ranked))
	for _, f := range ranked {
		chunk := snap.chunks[snap.byID[f.id]]
		result.Candidates = append(result.Candidates, store.FusedCandidate{
			Chunk:         chunk,
			Score:         f.score,
			Source:        filepath.Base(chunk.Source),
			Snippet:       Snippet(chunk.Text, query, MaxSnippetLength),
			LexicalScore:  f.lexical,
			SemanticScore: f.semantic,
		})
	}
	return result, nil
}

// keepKnown drops hits for chunk ids outside the snapshot
func keepKnown(hits []store.RetrievalCandidate, byID map[string]int) []store.RetrievalCandidate {
	out := hits[:0]
	for _, h := range hits {
		if _, ok := byID[h.ChunkID]; ok {
			out = append(out, h)
		}
	}
	return out
}
