package domain

// RelevanceJudgment is a reference-assigned relevance score for a (query, passage) pair.
type RelevanceJudgment struct {
	QueryID   string `json:"query_id"`
	PassageID string `json:"passage_id"`
	Score     int    `json:"score"`
}

type RunEntry struct {
	QueryID   string  `json:"query_id"`
	PassageID string  `json:"passage_id"`
	Rank      int     `json:"rank"`
	Score     float64 `json:"score"`
	Tag       string  `json:"tag"`
}

// RankedRun is the ranked output of one retrieval strategy over a topic set.
type RankedRun struct {
	Name    string     `json:"name"`
	Entries []RunEntry `json:"entries"`
}

// RunRequest asks a worker to produce a run file for a retrieval mode.
type RunRequest struct {
	Mode RetrievalMode `json:"mode"`
	Hits int           `json:"hits"`
}
