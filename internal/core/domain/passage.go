package domain

import (
	"fmt"
	"strings"
)

// Passage is a unit of retrievable text with a stable identifier.
type Passage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RetrievalHit is a scored reference to a passage produced by a search strategy.
type RetrievalHit struct {
	PassageID string  `json:"passage_id"`
	Score     float64 `json:"score"`
}

type RetrievalMode string

const (
	ModeDense   RetrievalMode = "dense"
	ModeLexical RetrievalMode = "lexical"
)

// RetrievalModes lists every supported mode in a stable order.
func RetrievalModes() []RetrievalMode {
	return []RetrievalMode{ModeDense, ModeLexical}
}

func (m RetrievalMode) Valid() bool {
	return m == ModeDense || m == ModeLexical
}

func (m RetrievalMode) String() string {
	return string(m)
}

// ParseRetrievalMode accepts the canonical mode names and the "bm25" alias for lexical search.
func ParseRetrievalMode(raw string) (RetrievalMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dense", "semantic":
		return ModeDense, nil
	case "lexical", "bm25":
		return ModeLexical, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse retrieval mode", fmt.Errorf("mode must be dense or lexical, got %q", raw))
	}
}

// Topic is an evaluation question.
type Topic struct {
	TopicID    string `json:"topic_id"`
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
}

// GroundTruth links a topic to a judged passage before it is flattened into qrels.
type GroundTruth struct {
	TopicID   string `json:"topic_id"`
	PassageID string `json:"passage_id"`
	Judgment  int    `json:"relevance_judgment"`
}
