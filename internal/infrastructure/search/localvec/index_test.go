package localvec

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

// keywordEmbedder maps text onto three fixed axes.
type keywordEmbedder struct {
	batches int
	err     error
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.batches++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, axes(text))
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return axes(text), nil
}

func axes(text string) []float32 {
	lower := strings.ToLower(text)
	v := []float32{0.01, 0.01, 0.01}
	if strings.Contains(lower, "hours") || strings.Contains(lower, "open") {
		v[0] = 1
	}
	if strings.Contains(lower, "registration") || strings.Contains(lower, "rego") {
		v[1] = 1
	}
	if strings.Contains(lower, "licence") {
		v[2] = 1
	}
	return v
}

func passages() []domain.Passage {
	return []domain.Passage{
		{ID: "P1", Text: "Centres are open 9am to 5pm."},
		{ID: "P2", Text: "Renew your registration online."},
		{ID: "P3", Text: "Book a licence test."},
	}
}

func TestBuildAndSearch(t *testing.T) {
	embedder := &keywordEmbedder{}
	idx := New(t.TempDir(), embedder, 2)

	exists, err := idx.IndexExists(context.Background())
	if err != nil || exists {
		t.Fatalf("expected no index, got %v %v", exists, err)
	}
	if err := idx.BuildIndex(context.Background(), passages()); err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	if embedder.batches != 2 {
		t.Fatalf("expected 2 embedding batches, got %d", embedder.batches)
	}

	hits, err := idx.Search(context.Background(), "What are your business hours?", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 || hits[0].PassageID != "P1" || hits[0].Score <= hits[1].Score {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestSearchReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	if err := New(dir, &keywordEmbedder{}, 0).BuildIndex(context.Background(), passages()); err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	reopened := New(dir, &keywordEmbedder{}, 0)
	exists, _ := reopened.IndexExists(context.Background())
	if !exists {
		t.Fatalf("expected persisted index")
	}
	hits, err := reopened.Search(context.Background(), "rego renewal", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].PassageID != "P2" {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestBuildFailsWhenEmbedderFails(t *testing.T) {
	idx := New(t.TempDir(), &keywordEmbedder{err: errors.New("ollama down")}, 0)
	if err := idx.BuildIndex(context.Background(), passages()); err == nil {
		t.Fatalf("expected build error")
	}
	exists, _ := idx.IndexExists(context.Background())
	if exists {
		t.Fatalf("expected no artifact after failed build")
	}
}
