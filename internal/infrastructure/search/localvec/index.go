package localvec

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
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
)

const (
	artifactName     = "vectors.json"
	artifactVersion  = 1
	defaultBatchSize = 32
)

type artifact struct {
	Version   int         `json:"version"`
	Dimension int         `json:"dimension"`
	IDs       []string    `json:"ids"`
	Vectors   [][]float32 `json:"vectors"`
}

// Index is a brute-force cosine index persisted as a single file. Vectors are stored L2-normalised.
type Index struct {
	dir       string
	embedder  ports.Embedder
	batchSize int

	mu     sync.RWMutex
	loaded *artifact
}

func New(dir string, embedder ports.Embedder, batchSize int) *Index {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Index{dir: dir, embedder: embedder, batchSize: batchSize}
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
		return false, fmt.Errorf("stat vector index: %w", err)
	}
	return true, nil
}

func (i *Index) BuildIndex(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return fmt.Errorf("vector build: empty collection")
	}

	a := &artifact{
		Version: artifactVersion,
		IDs:     make([]string, 0, len(passages)),
		Vectors: make([][]float32, 0, len(passages)),
	}
	for start := 0; start < len(passages); start += i.batchSize {
		end := min(start+i.batchSize, len(passages))
		texts := make([]string, 0, end-start)
		for _, p := range passages[start:end] {
			texts = append(texts, p.Text)
		}
		vectors, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed passages %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embed passages %d-%d: got %d vectors", start, end, len(vectors))
		}
		for j, v := range vectors {
			if a.Dimension == 0 {
				a.Dimension = len(v)
			}
			if len(v) != a.Dimension {
				return fmt.Errorf("vector dimension mismatch: %d vs %d", len(v), a.Dimension)
			}
			a.IDs = append(a.IDs, passages[start+j].ID)
			a.Vectors = append(a.Vectors, normalize(v))
		}
	}

	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return fmt.Errorf("create vector index dir: %w", err)
	}
	tmp, err := os.CreateTemp(i.dir, artifactName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create vector temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := json.NewEncoder(tmp).Encode(a); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode vector index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close vector temp file: %w", err)
	}
	if err := os.Rename(tmpPath, i.path()); err != nil {
		return fmt.Errorf("publish vector index: %w", err)
	}

	i.mu.Lock()
	i.loaded = a
	i.mu.Unlock()
	return nil
}

func (i *Index) Search(ctx context.Context, query string, topK int) ([]domain.RetrievalHit, error) {
	a, err := i.artifact()
	if err != nil {
		return nil, err
	}
	qv, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qv) != a.Dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(qv), a.Dimension)
	}
	qv = normalize(qv)

	scores := make([]float64, len(a.Vectors))
	order := make([]int, len(a.Vectors))
	for j, v := range a.Vectors {
		scores[j] = dot(v, qv)
		order[j] = j
	}
	sort.SliceStable(order, func(x, y int) bool {
		return scores[order[x]] > scores[order[y]]
	})
	if topK > 0 && len(order) > topK {
		order = order[:topK]
	}

	hits := make([]domain.RetrievalHit, 0, len(order))
	for _, j := range order {
		hits = append(hits, domain.RetrievalHit{PassageID: a.IDs[j], Score: scores[j]})
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
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	defer f.Close()

	var loaded artifact
	if err := json.NewDecoder(f).Decode(&loaded); err != nil {
		return nil, fmt.Errorf("decode vector index: %w", err)
	}
	if loaded.Version != artifactVersion {
		return nil, fmt.Errorf("vector index version %d, want %d", loaded.Version, artifactVersion)
	}
	i.loaded = &loaded
	return i.loaded, nil
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for j, x := range v {
		out[j] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for j := range a {
		sum += float64(a[j]) * float64(b[j])
	}
	return sum
}
