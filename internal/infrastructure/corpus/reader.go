package corpus

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

// Reader loads the passage collection, topics and ground truth from CSV files with header rows.
// A collection path ending in .jsonl is read as {"id","contents"} records.
type Reader struct {
	collectionPath  string
	topicsPath      string
	groundTruthPath string
}

func NewReader(collectionPath, topicsPath, groundTruthPath string) *Reader {
	return &Reader{
		collectionPath:  collectionPath,
		topicsPath:      topicsPath,
		groundTruthPath: groundTruthPath,
	}
}

func (r *Reader) ReadPassages(ctx context.Context) ([]domain.Passage, error) {
	if strings.EqualFold(filepath.Ext(r.collectionPath), ".jsonl") {
		return r.readJSONLPassages(ctx)
	}

	var out []domain.Passage
	err := readCSV(ctx, r.collectionPath, []string{"passage_id", "passage"}, func(row map[string]string) error {
		out = append(out, domain.Passage{ID: row["passage_id"], Text: row["passage"]})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reader) ReadTopics(ctx context.Context) ([]domain.Topic, error) {
	var out []domain.Topic
	err := readCSV(ctx, r.topicsPath, []string{"topic_id", "question_id", "question"}, func(row map[string]string) error {
		out = append(out, domain.Topic{
			TopicID:    row["topic_id"],
			QuestionID: row["question_id"],
			Question:   row["question"],
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reader) ReadGroundTruth(ctx context.Context) ([]domain.GroundTruth, error) {
	var out []domain.GroundTruth
	err := readCSV(ctx, r.groundTruthPath, []string{"topic_id", "passage_id", "relevance_judgment"}, func(row map[string]string) error {
		judgment, err := strconv.Atoi(row["relevance_judgment"])
		if err != nil || judgment < 0 {
			return domain.WrapError(domain.ErrMalformedJudgments, "read ground truth", fmt.Errorf("invalid judgment %q", row["relevance_judgment"]))
		}
		out = append(out, domain.GroundTruth{
			TopicID:   row["topic_id"],
			PassageID: row["passage_id"],
			Judgment:  judgment,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type jsonlPassage struct {
	ID       string `json:"id"`
	Contents string `json:"contents"`
}

func (r *Reader) readJSONLPassages(ctx context.Context) ([]domain.Passage, error) {
	f, err := os.Open(r.collectionPath)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	defer f.Close()

	var out []domain.Passage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec jsonlPassage
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode %s line %d: %w", r.collectionPath, line, err)
		}
		out = append(out, domain.Passage{ID: rec.ID, Text: rec.Contents})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan collection: %w", err)
	}
	return out, nil
}

func readCSV(ctx context.Context, path string, required []string, fn func(map[string]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return domain.WrapError(domain.ErrInvalidInput, "read "+filepath.Base(path), fmt.Errorf("missing column %q", name))
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		row := make(map[string]string, len(required))
		for _, name := range required {
			i := index[name]
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
