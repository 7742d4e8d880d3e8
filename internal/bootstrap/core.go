package bootstrap

import (
	"context"
	"fmt"
	"time"

	"research-agent-be/internal/config"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/repository/contract"
	"research-agent-be/internal/repository/implementation"
	"research-agent-be/internal/repository/memory"
	"research-agent-be/pkg/database"
	"research-agent-be/pkg/embedding"
	"research-agent-be/pkg/ingest"
	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/llm/factory"
	"research-agent-be/pkg/llm/gateway"
	"research-agent-be/pkg/observability"
	"research-agent-be/pkg/rag/grade"
	"research-agent-be/pkg/rag/orchestrator"
	"research-agent-be/pkg/rag/response"
	"research-agent-be/pkg/rag/rewrite"
	"research-agent-be/pkg/rag/router"
	"research-agent-be/pkg/retrieval/hybrid"
	"research-agent-be/pkg/retrieval/semantic"

	"github.com/redis/go-redis/v9"
)

// Core is the question pipeline and the stores it reads, without any transport
type Core struct {
	Engine       *hybrid.Engine
	Ingestor     *ingest.Ingestor
	Threads      contract.ThreadRepository
	Gateway      *gateway.Gateway
	Orchestrator *orchestrator.Orchestrator

	// Redis is nil unless the redis thread store is configured
	Redis *redis.Client

	closers []func()
}

// Close releases connections opened by NewCore
func (c *Core) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// NewCore wires the pipeline from configuration. sink receives every
// pipeline and gateway event.
func NewCore(ctx context.Context, cfg *config.Config, sink observability.Sink, log logger.ILogger) (*Core, error) {
	core := &Core{}

	// 1. Language models
	primary, err := factory.NewLLMProvider(factory.ProviderConfig(cfg.Ai.Primary))
	if err != nil {
		return nil, fmt.Errorf("primary provider: %w", err)
	}
	backup, err := factory.NewLLMProvider(factory.ProviderConfig(cfg.Ai.Backup))
	if err != nil {
		return nil, fmt.Errorf("backup provider: %w", err)
	}
	policy := gateway.DefaultPolicy()
	policy.PrimaryAttempts = uint(cfg.Ai.PrimaryAttempts)
	policy.InitialBackoff = cfg.Ai.InitialBackoff
	policy.CallTimeout = cfg.Pipeline.ProviderTimeout
	core.Gateway = gateway.New(primary, backup, policy, sink, log)

	var model llm.LLMProvider
	if core.Gateway.Available() {
		model = core.Gateway
	} else {
		log.Warn("Bootstrap", "No language model configured; answers are limited to model-free paths", nil)
	}

	// 2. Retrieval
	embedder, err := embedding.NewEmbeddingProvider(embedding.ProviderConfig{
		Type:    cfg.Ai.EmbeddingProvider,
		Model:   cfg.Ai.EmbeddingModel,
		BaseURL: cfg.Ai.EmbeddingBaseURL,
		APIKey:  cfg.Ai.EmbeddingAPIKey,
		Timeout: cfg.Ai.EmbeddingTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	builder, err := semanticBuilder(ctx, cfg, embedder, log)
	if err != nil {
		return nil, err
	}
	core.Engine = hybrid.NewEngine(builder, cfg.Retrieval.RetireAfter, log)

	splitter, err := ingest.NewSplitter(cfg.Retrieval.ChunkTokens, cfg.Retrieval.OverlapTokens)
	if err != nil {
		return nil, fmt.Errorf("splitter: %w", err)
	}
	core.Ingestor = ingest.NewIngestor(splitter, log)

	// 3. Conversation store
	switch cfg.Storage.ThreadStore {
	case "redis":
		opt, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			log.Warn("Bootstrap", "Failed to parse Redis URL, using it as an address", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.Storage.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("redis thread store: %w", err)
		}
		core.Redis = rdb
		core.closers = append(core.closers, func() { rdb.Close() })
		core.Threads = implementation.NewRedisThreadRepository(rdb, cfg.Storage.ThreadTTL)
	default:
		core.Threads = memory.NewThreadRepository(cfg.Storage.ThreadTTL)
	}

	// 4. Pipeline
	mode, err := router.ParseMode(cfg.Ai.ClassifierMode)
	if err != nil {
		return nil, err
	}
	core.Orchestrator = orchestrator.NewOrchestrator(orchestrator.Dependencies{
		Threads:   core.Threads,
		Retriever: core.Engine,
		Router:    router.NewRouter(model, mode, log),
		Rewriter:  rewrite.NewRewriter(model, log),
		Grader:    grade.NewGrader(model, cfg.Retrieval.GradeConcurrency, log),
		Generator: response.NewGenerator(model, log),
		Sink:      sink,
	}, Settings(cfg), log)

	log.Info("Bootstrap", "Pipeline ready", map[string]interface{}{
		"llm":          core.Gateway.Name(),
		"semantic":     core.Engine.Status().SemanticBackend,
		"thread_store": cfg.Storage.ThreadStore,
		"classifier":   string(mode),
	})
	return core, nil
}

// Settings maps configuration onto the process-wide pipeline defaults
func Settings(cfg *config.Config) orchestrator.Settings {
	s := orchestrator.DefaultSettings()
	s.SemanticWeight = cfg.Retrieval.SemanticWeight
	s.LexicalWeight = cfg.Retrieval.LexicalWeight
	s.TopK = cfg.Retrieval.TopK
	s.ChannelTopK = cfg.Retrieval.ChannelTopK
	s.GradeThreshold = cfg.Pipeline.GradeThreshold
	s.SelfCheckThreshold = cfg.Pipeline.SelfCheckThreshold
	s.MaxRegenerations = cfg.Pipeline.MaxRegenerations
	s.HistoryWindow = cfg.Pipeline.HistoryWindow
	s.QuestionTimeout = cfg.Pipeline.QuestionTimeout
	s.ProviderTimeout = cfg.Pipeline.ProviderTimeout
	return s.Normalize()
}

func semanticBuilder(ctx context.Context, cfg *config.Config, embedder embedding.EmbeddingProvider, log logger.ILogger) (semantic.Builder, error) {
	if embedder == nil {
		log.Warn("Bootstrap", "No embedding provider; retrieval is lexical only", nil)
		return nil, nil
	}
	if cfg.Storage.SemanticBackend != "pgvector" {
		return semantic.NewMemoryBuilder(embedder, cfg.Retrieval.EmbedConcurrency), nil
	}

	db, err := database.NewGormDBFromDSN(cfg.Storage.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("pgvector database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	repo := implementation.NewChunkEmbeddingRepository(db)
	// Generations are time-based; anything older belongs to an earlier process
	if err := repo.DeleteStale(ctx, time.Now().UnixNano()); err != nil {
		log.Warn("Bootstrap", "Failed to clear stale embeddings", map[string]interface{}{"error": err.Error()})
	}
	return semantic.NewPgvectorBuilder(embedder, repo, cfg.Retrieval.EmbedConcurrency), nil
}
