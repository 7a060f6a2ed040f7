package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
)

const DefaultRunHits = 100

// RunTag names the run produced for a retrieval mode.
func RunTag(mode domain.RetrievalMode) string {
	return "vicroads-" + mode.String()
}

// RunKey is the storage key of the run file for a retrieval mode.
func RunKey(mode domain.RetrievalMode) string {
	return RunTag(mode) + ".txt"
}

// RunWriterUseCase searches every evaluation topic and stores the ranked results as a run file.
type RunWriterUseCase struct {
	corpus    ports.CorpusReader
	retriever *Retriever
	formatter ports.RunFormatter
	storage   ports.ObjectStorage
	hits      int
}

func NewRunWriterUseCase(
	corpus ports.CorpusReader,
	retriever *Retriever,
	formatter ports.RunFormatter,
	storage ports.ObjectStorage,
	hits int,
) *RunWriterUseCase {
	if hits <= 0 {
		hits = DefaultRunHits
	}
	return &RunWriterUseCase{
		corpus:    corpus,
		retriever: retriever,
		formatter: formatter,
		storage:   storage,
		hits:      hits,
	}
}

// WriteRun returns the filesystem path of the stored run.
func (uc *RunWriterUseCase) WriteRun(ctx context.Context, req domain.RunRequest) (string, error) {
	if !req.Mode.Valid() {
		return "", domain.WrapError(domain.ErrInvalidInput, "write run", fmt.Errorf("unsupported retrieval mode %q", req.Mode))
	}
	hits := req.Hits
	if hits <= 0 {
		hits = uc.hits
	}

	run, err := uc.BuildRun(ctx, req.Mode, hits)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := uc.formatter.FormatRun(&buf, run); err != nil {
		return "", fmt.Errorf("format run: %w", err)
	}
	key := RunKey(req.Mode)
	if err := uc.storage.Save(ctx, key, &buf); err != nil {
		return "", fmt.Errorf("save run %s: %w", key, err)
	}

	path := uc.storage.Path(key)
	slog.Info("run_written", "mode", req.Mode, "hits", hits, "entries", len(run.Entries), "path", path)
	return path, nil
}

// BuildRun ranks up to hits passages for every topic. Ranks start at 1 within each topic.
func (uc *RunWriterUseCase) BuildRun(ctx context.Context, mode domain.RetrievalMode, hits int) (domain.RankedRun, error) {
	topics, err := uc.corpus.ReadTopics(ctx)
	if err != nil {
		return domain.RankedRun{}, fmt.Errorf("read topics: %w", err)
	}

	tag := RunTag(mode)
	run := domain.RankedRun{Name: tag}
	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return domain.RankedRun{}, err
		}
		if strings.TrimSpace(topic.Question) == "" {
			slog.Warn("run_topic_skipped", "question_id", topic.QuestionID, "reason", "empty question")
			continue
		}

		results, err := uc.retriever.Search(ctx, topic.Question, mode, hits)
		if err != nil {
			return domain.RankedRun{}, fmt.Errorf("search topic %s: %w", topic.QuestionID, err)
		}
		for i, hit := range results {
			run.Entries = append(run.Entries, domain.RunEntry{
				QueryID:   topic.QuestionID,
				PassageID: hit.PassageID,
				Rank:      i + 1,
				Score:     hit.Score,
				Tag:       tag,
			})
		}
	}
	return run, nil
}
