package meili

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

// fakeMeili emulates the handful of Meilisearch endpoints the index uses.
type fakeMeili struct {
	mu     sync.Mutex
	docs   []document
	exists bool
	tasks  int
}

func (f *fakeMeili) enqueue(w http.ResponseWriter) {
	f.tasks++
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"taskUid":    f.tasks,
		"indexUid":   "vicroads",
		"status":     "enqueued",
		"enqueuedAt": "2026-01-01T00:00:00Z",
	})
}

func (f *fakeMeili) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/indexes/vicroads/stats":
		if !f.exists {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Index vicroads not found.","code":"index_not_found","type":"invalid_request","link":""}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"numberOfDocuments": len(f.docs), "isIndexing": false})
	case r.Method == http.MethodDelete && r.URL.Path == "/indexes/vicroads":
		f.docs = nil
		f.exists = false
		f.enqueue(w)
	case r.Method == http.MethodPost && r.URL.Path == "/indexes/vicroads/documents":
		var docs []document
		_ = json.NewDecoder(r.Body).Decode(&docs)
		f.docs = append(f.docs, docs...)
		f.exists = true
		f.enqueue(w)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/tasks/"):
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"uid":1,"indexUid":"vicroads","status":"succeeded","type":"documentAdditionOrUpdate"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/indexes/vicroads/search":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":[{"id":"P3","_rankingScore":0.93},{"id":"P1","_rankingScore":0.41}],"query":"licence","limit":2}`))
	default:
		http.NotFound(w, r)
	}
}

func TestIndexLifecycle(t *testing.T) {
	fake := &fakeMeili{}
	server := httptest.NewServer(fake)
	defer server.Close()

	idx := New(server.URL, "master-key", "vicroads")
	idx.batchSize = 2

	exists, err := idx.IndexExists(context.Background())
	if err != nil || exists {
		t.Fatalf("expected missing index, got %v, %v", exists, err)
	}

	passages := []domain.Passage{
		{ID: "P1", Text: "Centres are open 9am to 5pm."},
		{ID: "P2", Text: "Renew your registration online."},
		{ID: "P3", Text: "Book a licence test."},
	}
	if err := idx.BuildIndex(context.Background(), passages); err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	if len(fake.docs) != 3 || fake.docs[2].Contents != "Book a licence test." {
		t.Fatalf("unexpected documents %+v", fake.docs)
	}

	exists, err = idx.IndexExists(context.Background())
	if err != nil || !exists {
		t.Fatalf("expected index after build, got %v, %v", exists, err)
	}

	hits, err := idx.Search(context.Background(), "licence", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 || hits[0].PassageID != "P3" || hits[0].Score != 0.93 {
		t.Fatalf("unexpected hits %+v", hits)
	}
}
