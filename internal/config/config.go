package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Ai        AIConfig
	Retrieval RetrievalConfig
	Pipeline  PipelineConfig
	Storage   StorageConfig
	Events    EventsConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port               string `validate:"required,numeric"`
	Environment        string `validate:"oneof=development production test"`
	LogFilePath        string `validate:"required"`
	CorsAllowedOrigins string
	DocsFolder         string // Preloaded at startup when set
	BodyLimitMB        int    `validate:"gte=1,lte=512"`
}

// ProviderConfig describes one language model backend
type ProviderConfig struct {
	Type    string `validate:"omitempty,oneof=ollama openai together huggingface none"`
	Model   string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type AIConfig struct {
	Primary           ProviderConfig
	Backup            ProviderConfig
	PrimaryAttempts   int           `validate:"gte=1,lte=5"`
	InitialBackoff    time.Duration `validate:"gte=0"`
	EmbeddingProvider string        `validate:"omitempty,oneof=ollama openai jina none"`
	EmbeddingModel    string
	EmbeddingBaseURL  string
	EmbeddingAPIKey   string
	EmbeddingTimeout  time.Duration
	ClassifierMode    string        `validate:"omitempty,oneof=rules hybrid llm"`
}

type RetrievalConfig struct {
	SemanticWeight   float64 `validate:"gte=0,lte=1"`
	LexicalWeight    float64 `validate:"gte=0,lte=1"`
	TopK             int     `validate:"gte=1,lte=50"`
	ChannelTopK      int     `validate:"gte=1,lte=200"`
	ChunkTokens      int     `validate:"gte=50"`
	OverlapTokens    int     `validate:"gte=0,ltfield=ChunkTokens"`
	EmbedConcurrency int     `validate:"gte=1,lte=64"`
	GradeConcurrency int     `validate:"gte=1,lte=32"`
	RetireAfter      time.Duration
}

type PipelineConfig struct {
	GradeThreshold     float64 `validate:"gte=0,lte=1"`
	SelfCheckThreshold float64 `validate:"gte=0,lte=1"`
	MaxRegenerations   int     `validate:"gte=0,lte=1"`
	HistoryWindow      int     `validate:"gte=0,lte=100"`
	QuestionTimeout    time.Duration
	ProviderTimeout    time.Duration
}

type StorageConfig struct {
	ThreadStore     string `validate:"oneof=memory redis"`
	RedisURL        string `validate:"required_if=ThreadStore redis"`
	ThreadTTL       time.Duration
	SemanticBackend string `validate:"oneof=memory pgvector"`
	DBConnection    string `validate:"required_if=SemanticBackend pgvector"`
}

type EventsConfig struct {
	NatsEnabled bool
	NatsURL     string `validate:"required_if=NatsEnabled true"`
	Topic       string `validate:"required"`
	EventLog    string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			DocsFolder:         getEnv("DOCS_FOLDER", "docs"),
			BodyLimitMB:        getEnvAsInt("BODY_LIMIT_MB", 50),
		},
		Ai: AIConfig{
			Primary: ProviderConfig{
				Type:    getEnv("LLM_PROVIDER", "openai"),
				Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
				BaseURL: getEnv("LLM_BASE_URL", ""),
				APIKey:  getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", "")),
				Timeout: getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
			},
			Backup: ProviderConfig{
				Type:    getEnv("BACKUP_LLM_PROVIDER", "together"),
				Model:   getEnv("BACKUP_LLM_MODEL", "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free"),
				BaseURL: getEnv("BACKUP_LLM_BASE_URL", ""),
				APIKey:  getEnv("BACKUP_LLM_API_KEY", getEnv("TOGETHER_API_KEY", "")),
				Timeout: getEnvAsDuration("BACKUP_LLM_TIMEOUT", 30*time.Second),
			},
			PrimaryAttempts:   getEnvAsInt("LLM_PRIMARY_ATTEMPTS", 3),
			InitialBackoff:    getEnvAsDuration("LLM_INITIAL_BACKOFF", 250*time.Millisecond),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingBaseURL:  getEnv("EMBEDDING_BASE_URL", getEnv("OLLAMA_BASE_URL", "http://localhost:11434")),
			EmbeddingAPIKey:   getEnv("EMBEDDING_API_KEY", ""),
			EmbeddingTimeout:  getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
			ClassifierMode:    getEnv("CLASSIFIER_MODE", "hybrid"),
		},
		Retrieval: RetrievalConfig{
			SemanticWeight:   getEnvAsFloat("SEMANTIC_WEIGHT", 0.5),
			LexicalWeight:    getEnvAsFloat("LEXICAL_WEIGHT", 0.5),
			TopK:             getEnvAsInt("RETRIEVAL_K", 6),
			ChannelTopK:      getEnvAsInt("RETRIEVAL_CHANNEL_K", 12),
			ChunkTokens:      getEnvAsInt("CHUNK_TOKENS", 1000),
			OverlapTokens:    getEnvAsInt("CHUNK_OVERLAP_TOKENS", 200),
			EmbedConcurrency: getEnvAsInt("EMBED_CONCURRENCY", 4),
			RetireAfter:      getEnvAsDuration("INDEX_RETIRE_AFTER", 2*time.Minute),
			GradeConcurrency: getEnvAsInt("GRADE_CONCURRENCY", 4),
		},
		Pipeline: PipelineConfig{
			GradeThreshold:     getEnvAsFloat("GRADE_THRESHOLD", 0.5),
			SelfCheckThreshold: getEnvAsFloat("SELF_CHECK_THRESHOLD", 0.45),
			MaxRegenerations:   getEnvAsInt("MAX_REGENERATIONS", 1),
			HistoryWindow:      getEnvAsInt("HISTORY_WINDOW", 6),
			QuestionTimeout:    getEnvAsDuration("QUESTION_TIMEOUT", 90*time.Second),
			ProviderTimeout:    getEnvAsDuration("PROVIDER_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			ThreadStore:     getEnv("THREAD_STORE", "memory"),
			RedisURL:        getEnv("REDIS_URL", ""),
			ThreadTTL:       getEnvAsDuration("THREAD_TTL", 24*time.Hour),
			SemanticBackend: getEnv("SEMANTIC_BACKEND", "memory"),
			DBConnection:    getEnv("DB_CONNECTION_STRING", ""),
		},
		Events: EventsConfig{
			NatsEnabled: getEnvAsBool("NATS_ENABLED", false),
			NatsURL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Topic:       getEnv("EVENTS_TOPIC", "rag.events"),
			EventLog:    getEnv("EVENT_LOG_PATH", "logs/events.log"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "research-agent-backend"),
		},
	}
}

// Validate checks ranges and cross-field requirements
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90")
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
