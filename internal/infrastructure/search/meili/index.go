package meili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

const (
	defaultBatchSize = 1000
	taskPollInterval = 50 * time.Millisecond
)

type document struct {
	ID       string `json:"id"`
	Contents string `json:"contents"`
}

// Index is a lexical backend on a Meilisearch index whose documents mirror the passage collection.
type Index struct {
	client    meilisearch.ServiceManager
	uid       string
	batchSize int
}

func New(host, apiKey, uid string) *Index {
	return NewWithClient(meilisearch.New(host, meilisearch.WithAPIKey(apiKey)), uid)
}

func NewWithClient(client meilisearch.ServiceManager, uid string) *Index {
	return &Index{client: client, uid: uid, batchSize: defaultBatchSize}
}

func (i *Index) IndexExists(context.Context) (bool, error) {
	stats, err := i.client.Index(i.uid).GetStats()
	var apiErr *meilisearch.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("meilisearch stats: %w", err)
	}
	return stats.NumberOfDocuments > 0, nil
}

func (i *Index) BuildIndex(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return fmt.Errorf("meilisearch build: empty collection")
	}

	// A delete of a missing index fails as a task; that is fine here.
	if task, err := i.client.DeleteIndex(i.uid); err == nil {
		_, _ = i.client.Index(i.uid).WaitForTask(task.TaskUID, taskPollInterval)
	}

	index := i.client.Index(i.uid)
	for start := 0; start < len(passages); start += i.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := passages[start:min(start+i.batchSize, len(passages))]
		docs := make([]document, 0, len(batch))
		for _, p := range batch {
			docs = append(docs, document{ID: p.ID, Contents: p.Text})
		}
		info, err := index.AddDocuments(docs, nil)
		if err != nil {
			return fmt.Errorf("meilisearch add documents: %w", err)
		}
		task, err := index.WaitForTask(info.TaskUID, taskPollInterval)
		if err != nil {
			return fmt.Errorf("meilisearch wait for task %d: %w", info.TaskUID, err)
		}
		if task.Status != meilisearch.TaskStatusSucceeded {
			return fmt.Errorf("meilisearch task %d ended as %s: %v", info.TaskUID, task.Status, task.Error)
		}
	}
	return nil
}

func (i *Index) Search(_ context.Context, query string, topK int) ([]domain.RetrievalHit, error) {
	resp, err := i.client.Index(i.uid).Search(query, &meilisearch.SearchRequest{
		Limit:                int64(topK),
		ShowRankingScore:     true,
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	raw, err := json.Marshal(resp.Hits)
	if err != nil {
		return nil, fmt.Errorf("encode meilisearch hits: %w", err)
	}
	var hits []struct {
		ID    string  `json:"id"`
		Score float64 `json:"_rankingScore"`
	}
	if err := json.Unmarshal(raw, &hits); err != nil {
		return nil, fmt.Errorf("decode meilisearch hits: %w", err)
	}

	out := make([]domain.RetrievalHit, 0, len(hits))
	for _, h := range hits {
		if h.ID == "" {
			continue
		}
		out = append(out, domain.RetrievalHit{PassageID: h.ID, Score: h.Score})
	}
	return out, nil
}
