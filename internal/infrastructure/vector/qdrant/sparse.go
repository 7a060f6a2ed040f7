package qdrant

import (
	"context"
	"fmt"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

const sparseVectorName = "text"

// SparseIndex is a lexical index built on Qdrant sparse vectors with server-side IDF.
type SparseIndex struct {
	client     *Client
	collection string
	batchSize  int
	expected   int
}

func NewSparseIndex(client *Client, collection string) *SparseIndex {
	return &SparseIndex{client: client, collection: collection, batchSize: defaultBatchSize * 4}
}

// WithExpectedPoints has the same meaning as DenseIndex.WithExpectedPoints.
func (s *SparseIndex) WithExpectedPoints(n int) *SparseIndex {
	s.expected = n
	return s
}

func (s *SparseIndex) IndexExists(ctx context.Context) (bool, error) {
	return s.client.collectionComplete(ctx, s.collection, s.expected)
}

func (s *SparseIndex) BuildIndex(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return fmt.Errorf("qdrant sparse build: empty collection")
	}
	schema := map[string]any{
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{"modifier": "idf"},
		},
	}
	if err := s.client.recreateCollection(ctx, s.collection, schema); err != nil {
		return err
	}

	for start := 0; start < len(passages); start += s.batchSize {
		batch := passages[start:min(start+s.batchSize, len(passages))]
		points := make([]point, 0, len(batch))
		for _, p := range batch {
			points = append(points, point{
				ID:      pointID(p.ID),
				Vector:  map[string]sparseVector{sparseVectorName: encodeSparseDocument(p.Text)},
				Payload: map[string]any{payloadPassageID: p.ID},
			})
		}
		if err := s.client.upsert(ctx, s.collection, points); err != nil {
			return err
		}
	}
	return nil
}

func (s *SparseIndex) Search(ctx context.Context, query string, topK int) ([]domain.RetrievalHit, error) {
	vector := encodeSparseQuery(query)
	if len(vector.Indices) == 0 {
		return nil, nil
	}
	points, err := s.client.query(ctx, s.collection, map[string]any{
		"query":        vector,
		"using":        sparseVectorName,
		"limit":        topK,
		"with_payload": []string{payloadPassageID},
	})
	if err != nil {
		return nil, err
	}
	return hitsFromPoints(points), nil
}
