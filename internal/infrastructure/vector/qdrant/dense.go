package qdrant

import (
	"context"
	"fmt"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
)

// DenseIndex stores one embedding per passage in a cosine collection.
type DenseIndex struct {
	client     *Client
	collection string
	embedder   ports.Embedder
	batchSize  int
	expected   int
}

func NewDenseIndex(client *Client, collection string, embedder ports.Embedder) *DenseIndex {
	return &DenseIndex{
		client:     client,
		collection: collection,
		embedder:   embedder,
		batchSize:  defaultBatchSize,
	}
}

// WithExpectedPoints makes IndexExists report a collection as built only when it holds one
// point per passage, so an interrupted build is redone.
func (d *DenseIndex) WithExpectedPoints(n int) *DenseIndex {
	d.expected = n
	return d
}

func (d *DenseIndex) IndexExists(ctx context.Context) (bool, error) {
	return d.client.collectionComplete(ctx, d.collection, d.expected)
}

func (d *DenseIndex) BuildIndex(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return fmt.Errorf("qdrant dense build: empty collection")
	}

	created := false
	for start := 0; start < len(passages); start += d.batchSize {
		batch := passages[start:min(start+d.batchSize, len(passages))]
		texts := make([]string, 0, len(batch))
		for _, p := range batch {
			texts = append(texts, p.Text)
		}
		vectors, err := d.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed passages: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embed passages: got %d vectors for %d passages", len(vectors), len(batch))
		}

		if !created {
			schema := map[string]any{
				"vectors": map[string]any{
					"size":     len(vectors[0]),
					"distance": "Cosine",
				},
			}
			if err := d.client.recreateCollection(ctx, d.collection, schema); err != nil {
				return err
			}
			created = true
		}

		points := make([]point, 0, len(batch))
		for i, p := range batch {
			points = append(points, point{
				ID:      pointID(p.ID),
				Vector:  vectors[i],
				Payload: map[string]any{payloadPassageID: p.ID},
			})
		}
		if err := d.client.upsert(ctx, d.collection, points); err != nil {
			return err
		}
	}
	return nil
}

func (d *DenseIndex) Search(ctx context.Context, query string, topK int) ([]domain.RetrievalHit, error) {
	vector, err := d.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	points, err := d.client.search(ctx, d.collection, map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": []string{payloadPassageID},
	})
	if err != nil {
		return nil, err
	}
	return hitsFromPoints(points), nil
}
