package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/pulse-assistant/internal/config"
	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/search/bm25"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/search/localvec"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/search/meili"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/vector/qdrant"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	collection := filepath.Join(dir, "collection.csv")
	body := "passage_id,passage\nP1,Customer service centres are open 9am to 5pm.\nP2,Renew your registration online.\n"
	if err := os.WriteFile(collection, []byte(body), 0o644); err != nil {
		t.Fatalf("write collection: %v", err)
	}
	return config.Config{
		DataDir:            dir,
		CollectionPath:     collection,
		IndexDir:           filepath.Join(dir, "indexes"),
		RunsDir:            filepath.Join(dir, "runs"),
		RAGRetrievalMode:   "lexical",
		RAGTopK:            3,
		DenseBackend:       "local",
		LexicalBackend:     "bm25",
		GenerationProvider: "ollama",
		OllamaURL:          "http://127.0.0.1:1",
		EmbedCacheSize:     8,
	}
}

func TestNewWiresLocalStack(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(context.Background(), cfg, Options{Service: "test", Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Passages.Len() != 2 {
		t.Fatalf("expected 2 passages, got %d", app.Passages.Len())
	}
	if app.Chat.Mode() != domain.ModeLexical {
		t.Fatalf("expected lexical chat mode, got %s", app.Chat.Mode())
	}
	if len(app.RegistryOptions) != 0 {
		t.Fatalf("expected no transcript observer without a DSN")
	}
	if session := app.NewSession("s1"); len(session.Threads()) != 1 {
		t.Fatalf("expected bootstrap thread")
	}

	hits, err := app.Retriever.Search(context.Background(), "registration renewal", domain.ModeLexical, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].PassageID != "P2" {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestNewRejectsBadSettings(t *testing.T) {
	cases := map[string]func(*config.Config){
		"unknown dense":      func(c *config.Config) { c.DenseBackend = "faiss" },
		"pgvector no dsn":    func(c *config.Config) { c.DenseBackend = "pgvector" },
		"unknown lexical":    func(c *config.Config) { c.LexicalBackend = "solr" },
		"openai without key": func(c *config.Config) { c.GenerationProvider = "openai" },
		"bad mode":           func(c *config.Config) { c.RAGRetrievalMode = "hybrid" },
		"missing collection": func(c *config.Config) { c.CollectionPath = filepath.Join(c.DataDir, "nope.csv") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			mutate(&cfg)
			if _, err := New(context.Background(), cfg, Options{}); err == nil {
				t.Fatalf("expected bootstrap error")
			}
		})
	}
}

func TestBackendSelection(t *testing.T) {
	cfg := testConfig(t)

	dense, err := newDenseBackend(cfg, nil, nil, nil, 3)
	if _, ok := dense.(*localvec.Index); err != nil || !ok {
		t.Fatalf("expected local dense index, got %T %v", dense, err)
	}
	cfg.DenseBackend = "QDRANT"
	dense, err = newDenseBackend(cfg, nil, nil, nil, 3)
	if _, ok := dense.(*qdrant.DenseIndex); err != nil || !ok {
		t.Fatalf("expected qdrant dense index, got %T %v", dense, err)
	}

	lexical, err := newLexicalBackend(cfg, nil, 3)
	if _, ok := lexical.(*bm25.Index); err != nil || !ok {
		t.Fatalf("expected bm25 index, got %T %v", lexical, err)
	}
	cfg.LexicalBackend = "qdrant"
	lexical, err = newLexicalBackend(cfg, nil, 3)
	if _, ok := lexical.(*qdrant.SparseIndex); err != nil || !ok {
		t.Fatalf("expected qdrant sparse index, got %T %v", lexical, err)
	}
	cfg.LexicalBackend = "meilisearch"
	lexical, err = newLexicalBackend(cfg, nil, 3)
	if _, ok := lexical.(*meili.Index); err != nil || !ok {
		t.Fatalf("expected meilisearch index, got %T %v", lexical, err)
	}

	cfg.GenerationProvider = "openai"
	cfg.OpenAIAPIKey = "sk-test"
	if _, err := newCompleter(cfg, nil); err != nil {
		t.Fatalf("newCompleter() error = %v", err)
	}
	cfg.GenerationProvider = "watsonx"
	if _, err := newCompleter(cfg, nil); err == nil || !strings.Contains(err.Error(), "GENERATION_PROVIDER") {
		t.Fatalf("expected provider error, got %v", err)
	}
}
