package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

// SearchBackend is the external search collaborator behind one retrieval mode.
type SearchBackend interface {
	IndexExists(ctx context.Context) (bool, error)
	BuildIndex(ctx context.Context, passages []domain.Passage) error
	Search(ctx context.Context, query string, topK int) ([]domain.RetrievalHit, error)
}

// TextCompleter is the external generation collaborator.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder builds vectors for passages and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CorpusReader loads the passage collection and evaluation topics.
type CorpusReader interface {
	ReadPassages(ctx context.Context) ([]domain.Passage, error)
	ReadTopics(ctx context.Context) ([]domain.Topic, error)
	ReadGroundTruth(ctx context.Context) ([]domain.GroundTruth, error)
}

// EvaluationSource loads judgments and ranked runs.
type EvaluationSource interface {
	RunExists(ctx context.Context, path string) (bool, error)
	LoadJudgments(ctx context.Context, path string) ([]domain.RelevanceJudgment, error)
	LoadRun(ctx context.Context, path string) (domain.RankedRun, error)
}

// ObjectStorage stores generated artifacts such as run files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Path(key string) string
}

// RunQueue publishes/consumes run generation jobs.
type RunQueue interface {
	PublishRunRequest(ctx context.Context, req domain.RunRequest) error
	SubscribeRunRequests(ctx context.Context, handler func(context.Context, domain.RunRequest) error) error
}

// TranscriptStore mirrors conversation threads to durable storage.
type TranscriptStore interface {
	SaveThread(ctx context.Context, sessionID string, thread domain.Thread) error
	AppendMessage(ctx context.Context, sessionID, threadID string, msg domain.Message) error
	ClearThread(ctx context.Context, sessionID, threadID string) error
	DeleteThread(ctx context.Context, sessionID, threadID string) error
}

// TranscriptReader loads a persisted session transcript, threads in creation order.
type TranscriptReader interface {
	ListThreads(ctx context.Context, sessionID string) ([]domain.Thread, error)
}

// RunFormatter serialises ranked runs and relevance judgments in the exchange format.
type RunFormatter interface {
	FormatRun(w io.Writer, run domain.RankedRun) error
	FormatJudgments(w io.Writer, judgments []domain.RelevanceJudgment) error
}

// CollectionExporter writes the passage collection for external indexers.
type CollectionExporter interface {
	ExportPassages(w io.Writer, passages []domain.Passage) error
}
