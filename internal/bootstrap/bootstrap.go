package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/pulse-assistant/internal/config"
	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
	"github.com/kirillkom/pulse-assistant/internal/core/usecase"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/corpus"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/embedcache"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/search/bm25"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/search/localvec"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/search/meili"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/trec"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/vector/pgstore"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/pulse-assistant/internal/observability/metrics"
)

// Options tune the process-level wiring. A nil Registerer disables chat metrics.
type Options struct {
	Service    string
	Registerer prometheus.Registerer
}

type App struct {
	Config config.Config

	Passages  *usecase.PassageStore
	Retriever *usecase.Retriever
	Chat      *usecase.ChatUseCase
	Runs      *usecase.RunWriterUseCase

	// Transcripts is nil unless POSTGRES_DSN is set.
	Transcripts ports.TranscriptReader

	// RegistryOptions must be passed to every conversation registry the surface creates.
	RegistryOptions []usecase.RegistryOption

	executor *resilience.Executor

	queueOnce sync.Once
	queue     *nats.Queue
	queueErr  error

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}

	var chatMetrics *metrics.ChatMetrics
	var executorOpts []resilience.Option
	if opts.Registerer != nil {
		chatMetrics = metrics.NewChatMetrics(opts.Service, opts.Registerer)
		executorOpts = append(executorOpts, resilience.WithStateObserver(chatMetrics.ObserveBreakerState))
	}
	app.executor = resilience.NewExecutor(resilienceConfig(cfg), executorOpts...)

	reader := newCorpusReader(cfg)
	passages, err := reader.ReadPassages(ctx)
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
	}
	store, err := usecase.NewPassageStore(passages)
	if err != nil {
		return nil, fmt.Errorf("build passage store: %w", err)
	}
	app.Passages = store

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.onClose(func() { _ = db.Close() })
	}

	embedder, err := newEmbedder(cfg, app.executor)
	if err != nil {
		app.Close()
		return nil, err
	}
	dense, err := newDenseBackend(cfg, app.executor, embedder, db, store.Len())
	if err != nil {
		app.Close()
		return nil, err
	}
	lexical, err := newLexicalBackend(cfg, app.executor, store.Len())
	if err != nil {
		app.Close()
		return nil, err
	}
	completer, err := newCompleter(cfg, app.executor)
	if err != nil {
		app.Close()
		return nil, err
	}

	denseStrategy := usecase.NewLazyStrategy(domain.ModeDense, dense, store)
	lexicalStrategy := usecase.NewLazyStrategy(domain.ModeLexical, lexical, store)
	if chatMetrics != nil {
		denseStrategy.WithObserver(chatMetrics)
		lexicalStrategy.WithObserver(chatMetrics)
	}
	app.Retriever = usecase.NewRetriever(denseStrategy, lexicalStrategy)

	mode, err := domain.ParseRetrievalMode(cfg.RAGRetrievalMode)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("RAG_RETRIEVAL_MODE: %w", err)
	}
	app.Chat = usecase.NewChatUseCase(
		app.Retriever,
		usecase.NewContextAssembler(store),
		usecase.NewAnswerGenerator(completer, cfg.AssistantName),
		mode,
		cfg.RAGTopK,
	)
	if chatMetrics != nil {
		app.Chat.WithObserver(chatMetrics)
	}

	runStorage, err := localfs.New(cfg.RunsDir)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init run storage: %w", err)
	}
	app.Runs = usecase.NewRunWriterUseCase(reader, app.Retriever, trec.NewCodec(), runStorage, cfg.RAGRunHits)

	if db != nil {
		transcripts := postgres.NewTranscriptRepository(db)
		if err := transcripts.EnsureSchema(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("ensure transcript schema: %w", err)
		}
		app.Transcripts = transcripts
		recorder := usecase.NewTranscriptRecorder(transcripts, cfg.TranscriptTimeout)
		app.RegistryOptions = append(app.RegistryOptions, usecase.WithRegistryObserver(recorder))
	}

	slog.Info("bootstrap_ready",
		"passages", store.Len(),
		"mode", mode,
		"dense_backend", cfg.DenseBackend,
		"lexical_backend", cfg.LexicalBackend,
		"generation_provider", cfg.GenerationProvider,
		"transcripts", db != nil,
	)
	return app, nil
}

// NewSession creates a conversation registry wired to the configured transcript store.
func (a *App) NewSession(sessionID string) *usecase.ConversationRegistry {
	return usecase.NewConversationRegistry(sessionID, a.RegistryOptions...)
}

// Queue connects to NATS on first use.
func (a *App) Queue() (*nats.Queue, error) {
	a.queueOnce.Do(func() {
		a.queue, a.queueErr = nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
			ResilienceExecutor: a.executor,
		})
		if a.queueErr == nil {
			a.onClose(a.queue.Close)
		}
	})
	return a.queue, a.queueErr
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// NewPrepareUseCase needs only the corpus files, not the retrieval stack. Outputs land in DATA_DIR.
func NewPrepareUseCase(cfg config.Config) (*usecase.PrepareDataUseCase, error) {
	storage, err := localfs.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init data storage: %w", err)
	}
	return usecase.NewPrepareDataUseCase(newCorpusReader(cfg), trec.NewCodec(), corpus.JSONLExporter{}, storage), nil
}

func NewEvaluateUseCase() *usecase.EvaluateUseCase {
	return usecase.NewEvaluateUseCase(trec.NewCodec(), 0)
}

func newCorpusReader(cfg config.Config) *corpus.Reader {
	return corpus.NewReader(cfg.CollectionPath, cfg.TopicsPath, cfg.GroundTruthPath)
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff:     cfg.ResilienceRetryInitialBackoff,
		RetryMaxBackoff:         cfg.ResilienceRetryMaxBackoff,
		BreakerEnabled:          cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.ResilienceBreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:      cfg.ResilienceBreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.ResilienceBreakerHalfOpenCalls, 0)),
	}
}

func newEmbedder(cfg config.Config, executor *resilience.Executor) (ports.Embedder, error) {
	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
	var embedder ports.Embedder = ollama.NewEmbedder(client)
	if cfg.EmbedCacheSize <= 0 {
		return embedder, nil
	}
	cached, err := embedcache.New(embedder, cfg.EmbedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	return cached, nil
}

func newDenseBackend(cfg config.Config, executor *resilience.Executor, embedder ports.Embedder, db *sql.DB, passages int) (ports.SearchBackend, error) {
	switch strings.ToLower(cfg.DenseBackend) {
	case "qdrant":
		client := qdrant.New(cfg.QdrantURL, qdrant.WithExecutor(executor))
		return qdrant.NewDenseIndex(client, cfg.QdrantCollection, embedder).WithExpectedPoints(passages), nil
	case "local":
		return localvec.New(filepath.Join(cfg.IndexDir, "dense"), embedder, 0), nil
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("DENSE_BACKEND=pgvector requires POSTGRES_DSN")
		}
		index, err := pgstore.New(db, cfg.PgvectorTable, embedder)
		if err != nil {
			return nil, fmt.Errorf("init pgvector index: %w", err)
		}
		return index, nil
	default:
		return nil, fmt.Errorf("unknown DENSE_BACKEND %q (want qdrant, local or pgvector)", cfg.DenseBackend)
	}
}

func newLexicalBackend(cfg config.Config, executor *resilience.Executor, passages int) (ports.SearchBackend, error) {
	switch strings.ToLower(cfg.LexicalBackend) {
	case "bm25":
		return bm25.New(filepath.Join(cfg.IndexDir, "lexical"), bm25.DefaultK1, bm25.DefaultB), nil
	case "qdrant":
		client := qdrant.New(cfg.QdrantURL, qdrant.WithExecutor(executor))
		return qdrant.NewSparseIndex(client, cfg.QdrantLexicalCollection).WithExpectedPoints(passages), nil
	case "meilisearch":
		return meili.New(cfg.MeilisearchURL, cfg.MeilisearchAPIKey, cfg.MeilisearchIndex), nil
	default:
		return nil, fmt.Errorf("unknown LEXICAL_BACKEND %q (want bm25, qdrant or meilisearch)", cfg.LexicalBackend)
	}
}

func newCompleter(cfg config.Config, executor *resilience.Executor) (ports.TextCompleter, error) {
	switch strings.ToLower(cfg.GenerationProvider) {
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
		return ollama.NewCompleter(client), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("GENERATION_PROVIDER=openai requires OPENAI_API_KEY")
		}
		return openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, nil, openai.WithExecutor(executor)), nil
	default:
		return nil, fmt.Errorf("unknown GENERATION_PROVIDER %q (want ollama or openai)", cfg.GenerationProvider)
	}
}
