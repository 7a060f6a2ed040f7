package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
)

const (
	QrelsKey      = "qrels.txt"
	CollectionKey = "collection.jsonl"
)

type PrepareResult struct {
	QrelsPath      string `json:"qrels_path"`
	CollectionPath string `json:"collection_path"`
	Judgments      int    `json:"judgments"`
	Passages       int    `json:"passages"`
}

// PrepareDataUseCase derives the evaluation judgments and the indexer collection from the raw corpus files.
type PrepareDataUseCase struct {
	corpus    ports.CorpusReader
	formatter ports.RunFormatter
	exporter  ports.CollectionExporter
	storage   ports.ObjectStorage
}

func NewPrepareDataUseCase(
	corpus ports.CorpusReader,
	formatter ports.RunFormatter,
	exporter ports.CollectionExporter,
	storage ports.ObjectStorage,
) *PrepareDataUseCase {
	return &PrepareDataUseCase{
		corpus:    corpus,
		formatter: formatter,
		exporter:  exporter,
		storage:   storage,
	}
}

func (uc *PrepareDataUseCase) Prepare(ctx context.Context) (*PrepareResult, error) {
	topics, err := uc.corpus.ReadTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("read topics: %w", err)
	}
	truth, err := uc.corpus.ReadGroundTruth(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ground truth: %w", err)
	}
	passages, err := uc.corpus.ReadPassages(ctx)
	if err != nil {
		return nil, fmt.Errorf("read passages: %w", err)
	}

	judgments := JoinJudgments(topics, truth)

	var qrels bytes.Buffer
	if err := uc.formatter.FormatJudgments(&qrels, judgments); err != nil {
		return nil, fmt.Errorf("format judgments: %w", err)
	}
	if err := uc.storage.Save(ctx, QrelsKey, &qrels); err != nil {
		return nil, fmt.Errorf("save %s: %w", QrelsKey, err)
	}

	var collection bytes.Buffer
	if err := uc.exporter.ExportPassages(&collection, passages); err != nil {
		return nil, fmt.Errorf("export passages: %w", err)
	}
	if err := uc.storage.Save(ctx, CollectionKey, &collection); err != nil {
		return nil, fmt.Errorf("save %s: %w", CollectionKey, err)
	}

	result := &PrepareResult{
		QrelsPath:      uc.storage.Path(QrelsKey),
		CollectionPath: uc.storage.Path(CollectionKey),
		Judgments:      len(judgments),
		Passages:       len(passages),
	}
	slog.Info("data_prepared",
		"judgments", result.Judgments,
		"passages", result.Passages,
		"qrels_path", result.QrelsPath,
		"collection_path", result.CollectionPath,
	)
	return result, nil
}

// JoinJudgments pairs every topic question with the ground truth of its topic, keeping topic order.
func JoinJudgments(topics []domain.Topic, truth []domain.GroundTruth) []domain.RelevanceJudgment {
	byTopic := make(map[string][]domain.GroundTruth)
	for _, gt := range truth {
		byTopic[gt.TopicID] = append(byTopic[gt.TopicID], gt)
	}

	out := make([]domain.RelevanceJudgment, 0, len(truth))
	for _, topic := range topics {
		for _, gt := range byTopic[topic.TopicID] {
			out = append(out, domain.RelevanceJudgment{
				QueryID:   topic.QuestionID,
				PassageID: gt.PassageID,
				Score:     gt.Judgment,
			})
		}
	}
	return out
}
