package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/resilience"
)

type embedderFake struct{}

func (embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for range texts {
		out = append(out, []float32{0.1, 0.2, 0.3})
	}
	return out, nil
}

func (embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

// fakeQdrant records collection schemas and upserted points.
type fakeQdrant struct {
	mu      sync.Mutex
	schemas map[string]map[string]any
	points  map[string][]map[string]any
	deletes int
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{
		schemas: make(map[string]map[string]any),
		points:  make(map[string][]map[string]any),
	}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "collections" {
		http.NotFound(w, r)
		return
	}
	name := parts[1]
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		if _, ok := f.schemas[name]; !ok {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"points_count": len(f.points[name])}})
	case len(parts) == 2 && r.Method == http.MethodDelete:
		f.deletes++
		if _, ok := f.schemas[name]; !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		delete(f.schemas, name)
		delete(f.points, name)
		_, _ = w.Write([]byte(`{"result":true}`))
	case len(parts) == 2 && r.Method == http.MethodPut:
		var schema map[string]any
		_ = json.NewDecoder(r.Body).Decode(&schema)
		f.schemas[name] = schema
		_, _ = w.Write([]byte(`{"result":true}`))
	case len(parts) == 3 && parts[2] == "points" && r.Method == http.MethodPut:
		var body struct {
			Points []map[string]any `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points[name] = append(f.points[name], body.Points...)
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	case len(parts) == 4 && parts[3] == "search":
		_, _ = w.Write([]byte(`{"result":[{"score":0.91,"payload":{"passage_id":"P1"}},{"score":0.42,"payload":{"passage_id":"P2"}}]}`))
	case len(parts) == 4 && parts[3] == "query":
		_, _ = w.Write([]byte(`{"result":{"points":[{"score":3.5,"payload":{"passage_id":"P3"}},{"score":1.0,"payload":{}}]}}`))
	default:
		http.NotFound(w, r)
	}
}

func passages() []domain.Passage {
	return []domain.Passage{
		{ID: "P1", Text: "Centres are open 9am to 5pm."},
		{ID: "P2", Text: "Renew your registration online."},
		{ID: "P3", Text: "Book a licence test."},
	}
}

func TestDenseIndexLifecycle(t *testing.T) {
	fake := newFakeQdrant()
	server := httptest.NewServer(fake)
	defer server.Close()

	idx := NewDenseIndex(New(server.URL), "vicroads", embedderFake{})
	exists, err := idx.IndexExists(context.Background())
	if err != nil || exists {
		t.Fatalf("expected missing collection to report false, got %v, %v", exists, err)
	}

	if err := idx.BuildIndex(context.Background(), passages()); err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	exists, err = idx.IndexExists(context.Background())
	if err != nil || !exists {
		t.Fatalf("expected index after build, got %v, %v", exists, err)
	}

	vectors := fake.schemas["vicroads"]["vectors"].(map[string]any)
	if vectors["size"].(float64) != 3 || vectors["distance"] != "Cosine" {
		t.Fatalf("unexpected schema %v", vectors)
	}
	stored := fake.points["vicroads"]
	if len(stored) != 3 || stored[0]["id"] != pointID("P1") {
		t.Fatalf("unexpected points %v", stored)
	}

	hits, err := idx.Search(context.Background(), "opening hours", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 || hits[0].PassageID != "P1" || hits[0].Score != 0.91 {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestRebuildReplacesCollection(t *testing.T) {
	fake := newFakeQdrant()
	server := httptest.NewServer(fake)
	defer server.Close()

	idx := NewDenseIndex(New(server.URL), "vicroads", embedderFake{})
	for i := 0; i < 2; i++ {
		if err := idx.BuildIndex(context.Background(), passages()); err != nil {
			t.Fatalf("BuildIndex() #%d error = %v", i, err)
		}
	}
	if len(fake.points["vicroads"]) != 3 {
		t.Fatalf("expected rebuild to keep 3 points, got %d", len(fake.points["vicroads"]))
	}
	if fake.deletes != 2 {
		t.Fatalf("expected delete before each build, got %d", fake.deletes)
	}
}

// flakyEmbedder fails every call after the first failAfter successes.
type flakyEmbedder struct {
	embedderFake
	calls     int
	failAfter int
}

func (e *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.failAfter > 0 && e.calls > e.failAfter {
		return nil, errors.New("ollama restarted")
	}
	return e.embedderFake.Embed(ctx, texts)
}

func TestInterruptedBuildIsNotReportedAsIndex(t *testing.T) {
	fake := newFakeQdrant()
	server := httptest.NewServer(fake)
	defer server.Close()

	embedder := &flakyEmbedder{failAfter: 1}
	idx := NewDenseIndex(New(server.URL), "vicroads", embedder).WithExpectedPoints(len(passages()))
	idx.batchSize = 2

	if err := idx.BuildIndex(context.Background(), passages()); err == nil {
		t.Fatalf("expected build to fail on second batch")
	}
	if len(fake.points["vicroads"]) != 2 {
		t.Fatalf("expected a partial collection with 2 points, got %d", len(fake.points["vicroads"]))
	}
	exists, err := idx.IndexExists(context.Background())
	if err != nil || exists {
		t.Fatalf("expected partial collection to need a rebuild, got %v, %v", exists, err)
	}

	embedder.failAfter = 0
	if err := idx.BuildIndex(context.Background(), passages()); err != nil {
		t.Fatalf("BuildIndex() retry error = %v", err)
	}
	exists, err = idx.IndexExists(context.Background())
	if err != nil || !exists {
		t.Fatalf("expected complete collection after rebuild, got %v, %v", exists, err)
	}
}

func TestSparseIndexUsesIDFModifier(t *testing.T) {
	fake := newFakeQdrant()
	server := httptest.NewServer(fake)
	defer server.Close()

	idx := NewSparseIndex(New(server.URL), "vicroads-lexical")
	if err := idx.BuildIndex(context.Background(), passages()); err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	sparse := fake.schemas["vicroads-lexical"]["sparse_vectors"].(map[string]any)
	if sparse["text"].(map[string]any)["modifier"] != "idf" {
		t.Fatalf("unexpected sparse schema %v", sparse)
	}
	vector := fake.points["vicroads-lexical"][0]["vector"].(map[string]any)
	if _, ok := vector["text"]; !ok {
		t.Fatalf("expected named sparse vector, got %v", vector)
	}

	hits, err := idx.Search(context.Background(), "licence test", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].PassageID != "P3" {
		t.Fatalf("expected payload-less points to be skipped, got %+v", hits)
	}

	none, err := idx.Search(context.Background(), "the of", 5)
	if err != nil || none != nil {
		t.Fatalf("expected no hits for stopword query, got %+v, %v", none, err)
	}
}

func TestStatusErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "wrong vector size", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewDenseIndex(New(server.URL), "vicroads", embedderFake{}).Search(context.Background(), "q", 3)
	if err == nil || !strings.Contains(err.Error(), "wrong vector size") {
		t.Fatalf("expected error to include body, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 400 to be permanent, got %v", err)
	}
}

func TestSearchRetriesUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"result":[{"score":0.5,"payload":{"passage_id":"P2"}}]}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
	hits, err := NewDenseIndex(New(server.URL, WithExecutor(exec)), "vicroads", embedderFake{}).Search(context.Background(), "rego", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected success after one retry, got %+v after %d calls", hits, calls)
	}
}

func TestIndexExistsNotFoundIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, RetryInitialBackoff: time.Millisecond, BreakerEnabled: false})
	exists, err := NewSparseIndex(New(server.URL, WithExecutor(exec)), "missing").IndexExists(context.Background())
	if err != nil || exists {
		t.Fatalf("expected false without error, got %v, %v", exists, err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) {
		t.Fatalf("unexpected status error %v", statusErr)
	}
}
