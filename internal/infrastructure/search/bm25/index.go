package bm25

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/search/analysis"
)

const (
	DefaultK1 = 0.9
	DefaultB  = 0.4

	artifactName    = "index.json"
	artifactVersion = 1
)

type posting struct {
	Doc int `json:"d"`
	TF  int `json:"f"`
}

type artifact struct {
	Version   int                  `json:"version"`
	K1        float64              `json:"k1"`
	B         float64              `json:"b"`
	IDs       []string             `json:"ids"`
	Lengths   []int                `json:"lengths"`
	AvgLength float64              `json:"avg_length"`
	Postings  map[string][]posting `json:"postings"`
}

// Index is a file-backed BM25 inverted index over the passage collection.
type Index struct {
	dir string
	k1  float64
	b   float64

	mu     sync.RWMutex
	loaded *artifact
}

func New(dir string, k1, b float64) *Index {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 || b > 1 {
		b = DefaultB
	}
	return &Index{dir: dir, k1: k1, b: b}
}

func (i *Index) path() string {
	return filepath.Join(i.dir, artifactName)
}

func (i *Index) IndexExists(context.Context) (bool, error) {
	i.mu.RLock()
	loaded := i.loaded != nil
	i.mu.RUnlock()
	if loaded {
		return true, nil
	}

	_, err := os.Stat(i.path())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat bm25 index: %w", err)
	}
	return true, nil
}

// BuildIndex writes the artifact to a temporary file and renames it into place.
func (i *Index) BuildIndex(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return fmt.Errorf("bm25 build: empty collection")
	}

	a := &artifact{
		Version:  artifactVersion,
		K1:       i.k1,
		B:        i.b,
		IDs:      make([]string, len(passages)),
		Lengths:  make([]int, len(passages)),
		Postings: make(map[string][]posting),
	}
	var total int
	for doc, p := range passages {
		if doc%512 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		terms := analysis.Terms(p.Text)
		a.IDs[doc] = p.ID
		a.Lengths[doc] = len(terms)
		total += len(terms)

		tf := make(map[string]int, len(terms))
		for _, term := range terms {
			tf[term]++
		}
		for term, n := range tf {
			a.Postings[term] = append(a.Postings[term], posting{Doc: doc, TF: n})
		}
	}
	a.AvgLength = float64(total) / float64(len(passages))

	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return fmt.Errorf("create bm25 index dir: %w", err)
	}
	tmp, err := os.CreateTemp(i.dir, artifactName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create bm25 temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := json.NewEncoder(tmp).Encode(a); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode bm25 index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close bm25 temp file: %w", err)
	}
	if err := os.Rename(tmpPath, i.path()); err != nil {
		return fmt.Errorf("publish bm25 index: %w", err)
	}

	i.mu.Lock()
	i.loaded = a
	i.mu.Unlock()
	return nil
}

func (i *Index) Search(_ context.Context, query string, topK int) ([]domain.RetrievalHit, error) {
	a, err := i.artifact()
	if err != nil {
		return nil, err
	}

	queryTF := make(map[string]int)
	for _, term := range analysis.Terms(query) {
		queryTF[term]++
	}
	if len(queryTF) == 0 {
		return nil, nil
	}

	n := float64(len(a.IDs))
	scores := make(map[int]float64)
	for term, qtf := range queryTF {
		postings := a.Postings[term]
		if len(postings) == 0 {
			continue
		}
		df := float64(len(postings))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for _, p := range postings {
			tf := float64(p.TF)
			norm := a.K1 * (1 - a.B + a.B*float64(a.Lengths[p.Doc])/a.AvgLength)
			scores[p.Doc] += float64(qtf) * idf * tf * (a.K1 + 1) / (tf + norm)
		}
	}

	docs := make([]int, 0, len(scores))
	for doc := range scores {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(x, y int) bool {
		if scores[docs[x]] != scores[docs[y]] {
			return scores[docs[x]] > scores[docs[y]]
		}
		return docs[x] < docs[y]
	})
	if topK > 0 && len(docs) > topK {
		docs = docs[:topK]
	}

	hits := make([]domain.RetrievalHit, 0, len(docs))
	for _, doc := range docs {
		hits = append(hits, domain.RetrievalHit{PassageID: a.IDs[doc], Score: scores[doc]})
	}
	return hits, nil
}

func (i *Index) artifact() (*artifact, error) {
	i.mu.RLock()
	a := i.loaded
	i.mu.RUnlock()
	if a != nil {
		return a, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.loaded != nil {
		return i.loaded, nil
	}
	f, err := os.Open(i.path())
	if err != nil {
		return nil, fmt.Errorf("open bm25 index: %w", err)
	}
	defer f.Close()

	var loaded artifact
	if err := json.NewDecoder(f).Decode(&loaded); err != nil {
		return nil, fmt.Errorf("decode bm25 index: %w", err)
	}
	if loaded.Version != artifactVersion {
		return nil, fmt.Errorf("bm25 index version %d, want %d", loaded.Version, artifactVersion)
	}
	i.loaded = &loaded
	return i.loaded, nil
}
