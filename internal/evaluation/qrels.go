package evaluation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

// Qrels maps query id to judged passage ids and their relevance.
type Qrels map[string]map[string]int

func NewQrels(judgments []domain.RelevanceJudgment) (Qrels, error) {
	if len(judgments) == 0 {
		return nil, domain.WrapError(domain.ErrMalformedJudgments, "load judgments", fmt.Errorf("no judgments"))
	}
	out := make(Qrels)
	for i, j := range judgments {
		qid := strings.TrimSpace(j.QueryID)
		pid := strings.TrimSpace(j.PassageID)
		if qid == "" || pid == "" {
			return nil, domain.WrapError(domain.ErrMalformedJudgments, "load judgments", fmt.Errorf("judgment %d has an empty id", i+1))
		}
		if j.Score < 0 {
			return nil, domain.WrapError(domain.ErrMalformedJudgments, "load judgments", fmt.Errorf("judgment %d has negative score %d", i+1, j.Score))
		}
		if out[qid] == nil {
			out[qid] = make(map[string]int)
		}
		out[qid][pid] = j.Score
	}
	return out, nil
}

// Run holds a run's passage ids per query, ordered by descending score.
type Run struct {
	Name     string
	Rankings map[string][]string
}

// NewRun orders entries by descending score with rank as tie-break. Repeated passages keep their
// best position. Unnamed runs are named after their position.
func NewRun(raw domain.RankedRun, position int) Run {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = fmt.Sprintf("run_%d", position+1)
	}

	byQuery := make(map[string][]domain.RunEntry)
	for _, e := range raw.Entries {
		byQuery[e.QueryID] = append(byQuery[e.QueryID], e)
	}

	run := Run{Name: name, Rankings: make(map[string][]string, len(byQuery))}
	for qid, entries := range byQuery {
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Score != entries[j].Score {
				return entries[i].Score > entries[j].Score
			}
			return entries[i].Rank < entries[j].Rank
		})
		seen := make(map[string]struct{}, len(entries))
		ranked := make([]string, 0, len(entries))
		for _, e := range entries {
			if _, ok := seen[e.PassageID]; ok {
				continue
			}
			seen[e.PassageID] = struct{}{}
			ranked = append(ranked, e.PassageID)
		}
		run.Rankings[qid] = ranked
	}
	return run
}
