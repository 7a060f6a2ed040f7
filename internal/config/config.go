package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string
	LogFile  string

	DataDir         string
	CollectionPath  string
	TopicsPath      string
	GroundTruthPath string
	QrelsPath       string
	IndexDir        string
	RunsDir         string

	RAGRetrievalMode string
	RAGTopK          int
	RAGRunHits       int
	AssistantName    string

	DenseBackend       string
	LexicalBackend     string
	GenerationProvider string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string

	QdrantURL               string
	QdrantCollection        string
	QdrantLexicalCollection string

	MeilisearchURL    string
	MeilisearchAPIKey string
	MeilisearchIndex  string

	PostgresDSN     string
	PgvectorTable   string
	TranscriptTimeout time.Duration

	NATSURL     string
	NATSSubject string

	EmbedCacheSize int

	APIRateLimitRPS      float64
	APIRateLimitBurst    int
	APIMaxInFlight       int
	APIBackpressureWait  time.Duration
	APISessionIdleExpiry time.Duration

	ResilienceRetryMaxAttempts     int
	ResilienceRetryInitialBackoff  time.Duration
	ResilienceRetryMaxBackoff      time.Duration
	ResilienceBreakerEnabled       bool
	ResilienceBreakerMinRequests   int
	ResilienceBreakerFailureRatio  float64
	ResilienceBreakerOpenTimeout   time.Duration
	ResilienceBreakerHalfOpenCalls int

	WorkerMetricsPort string
	WorkerRunTimeout  time.Duration
}

func Load() Config {
	dataDir := mustEnv("DATA_DIR", "./data")

	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),
		LogFile:  mustEnv("LOG_FILE", "./target/logs/pulse.log"),

		DataDir:         dataDir,
		CollectionPath:  mustEnv("COLLECTION_PATH", filepath.Join(dataDir, "collection.csv")),
		TopicsPath:      mustEnv("TOPICS_PATH", filepath.Join(dataDir, "topics.csv")),
		GroundTruthPath: mustEnv("GROUNDTRUTH_PATH", filepath.Join(dataDir, "groundtruth.csv")),
		QrelsPath:       mustEnv("QRELS_PATH", filepath.Join(dataDir, "qrels.txt")),
		IndexDir:        mustEnv("INDEX_DIR", "./target/indexes"),
		RunsDir:         mustEnv("RUNS_DIR", "./target/runs"),

		RAGRetrievalMode: mustEnv("RAG_RETRIEVAL_MODE", "dense"),
		RAGTopK:          mustEnvInt("RAG_TOP_K", 3),
		RAGRunHits:       mustEnvInt("RAG_RUN_HITS", 100),
		AssistantName:    mustEnv("ASSISTANT_NAME", "VicRoads assistant"),

		DenseBackend:       mustEnv("DENSE_BACKEND", "qdrant"),
		LexicalBackend:     mustEnv("LEXICAL_BACKEND", "bm25"),
		GenerationProvider: mustEnv("GENERATION_PROVIDER", "ollama"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		OpenAIBaseURL: mustEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:  mustEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   mustEnv("OPENAI_MODEL", "gpt-4o-mini"),

		QdrantURL:               mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:        mustEnv("QDRANT_COLLECTION", "vicroads_passages"),
		QdrantLexicalCollection: mustEnv("QDRANT_LEXICAL_COLLECTION", "vicroads_passages_sparse"),

		MeilisearchURL:    mustEnv("MEILISEARCH_URL", "http://localhost:7700"),
		MeilisearchAPIKey: mustEnv("MEILISEARCH_API_KEY", ""),
		MeilisearchIndex:  mustEnv("MEILISEARCH_INDEX", "vicroads_passages"),

		PostgresDSN:     mustEnv("POSTGRES_DSN", ""),
		PgvectorTable:   mustEnv("PGVECTOR_TABLE", "passage_embeddings"),
		TranscriptTimeout: mustEnvDuration("TRANSCRIPT_WRITE_TIMEOUT", 5*time.Second),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "pulse.runs"),

		EmbedCacheSize: mustEnvInt("EMBED_CACHE_SIZE", 512),

		APIRateLimitRPS:      mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:    mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:       mustEnvInt("API_MAX_IN_FLIGHT", 32),
		APIBackpressureWait:  mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),
		APISessionIdleExpiry: mustEnvDuration("API_SESSION_IDLE_EXPIRY", 30*time.Minute),

		ResilienceRetryMaxAttempts:     mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
		ResilienceRetryInitialBackoff:  mustEnvDuration("RESILIENCE_RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
		ResilienceRetryMaxBackoff:      mustEnvDuration("RESILIENCE_RETRY_MAX_BACKOFF", 400*time.Millisecond),
		ResilienceBreakerEnabled:       mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		ResilienceBreakerMinRequests:   mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", 10),
		ResilienceBreakerFailureRatio:  mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.5),
		ResilienceBreakerOpenTimeout:   mustEnvDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		ResilienceBreakerHalfOpenCalls: mustEnvInt("RESILIENCE_BREAKER_HALF_OPEN_MAX_CALLS", 2),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
		WorkerRunTimeout:  mustEnvDuration("WORKER_RUN_TIMEOUT", 15*time.Minute),
	}
}

// TranscriptsEnabled reports whether conversation threads are mirrored to Postgres.
func (c Config) TranscriptsEnabled() bool {
	return c.PostgresDSN != ""
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go duration strings ("250ms") or plain seconds.
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
