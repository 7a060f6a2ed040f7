package evaluation

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

type MetricKind string

const (
	MetricNDCG       MetricKind = "ndcg"
	MetricNDCGBurges MetricKind = "ndcg_burges"
	MetricMRR        MetricKind = "mrr"
	MetricPrecision  MetricKind = "precision"
	MetricRecall     MetricKind = "recall"
	MetricMAP        MetricKind = "map"
	MetricHitRate    MetricKind = "hit_rate"
)

// relevantLevel is the minimum judgment counted as relevant by binary metrics.
const relevantLevel = 1

// Metric is a parsed metric identifier such as ndcg@5. K == 0 means no cutoff.
type Metric struct {
	Kind MetricKind
	K    int
}

func (m Metric) String() string {
	if m.K == 0 {
		return string(m.Kind)
	}
	return string(m.Kind) + "@" + strconv.Itoa(m.K)
}

func ParseMetric(raw string) (Metric, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	base, cutoff, hasCutoff := strings.Cut(name, "@")

	var kind MetricKind
	switch base {
	case "ndcg":
		kind = MetricNDCG
	case "ndcg_burges":
		kind = MetricNDCGBurges
	case "mrr":
		kind = MetricMRR
	case "precision":
		kind = MetricPrecision
	case "recall":
		kind = MetricRecall
	case "map":
		kind = MetricMAP
	case "hit_rate", "hits":
		kind = MetricHitRate
	default:
		return Metric{}, domain.WrapError(domain.ErrInvalidInput, "parse metric", fmt.Errorf("unknown metric %q", raw))
	}

	m := Metric{Kind: kind}
	if hasCutoff {
		k, err := strconv.Atoi(cutoff)
		if err != nil || k < 1 {
			return Metric{}, domain.WrapError(domain.ErrInvalidInput, "parse metric", fmt.Errorf("invalid cutoff in %q", raw))
		}
		m.K = k
	}
	switch kind {
	case MetricPrecision, MetricHitRate:
		if m.K == 0 {
			return Metric{}, domain.WrapError(domain.ErrInvalidInput, "parse metric", fmt.Errorf("metric %q requires a cutoff", raw))
		}
	}
	return m, nil
}

func ParseMetrics(raw []string) ([]Metric, error) {
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse metrics", fmt.Errorf("at least one metric is required"))
	}
	out := make([]Metric, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		m, err := ParseMetric(item)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[m.String()]; ok {
			continue
		}
		seen[m.String()] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}

// Score evaluates one metric for one query. judged maps passage id to relevance; ranked is the
// run's passage ids in rank order.
func (m Metric) Score(judged map[string]int, ranked []string) float64 {
	if m.K > 0 && len(ranked) > m.K {
		ranked = ranked[:m.K]
	}
	switch m.Kind {
	case MetricNDCG:
		return ndcg(judged, ranked, m.K, linearGain)
	case MetricNDCGBurges:
		return ndcg(judged, ranked, m.K, exponentialGain)
	case MetricMRR:
		for i, id := range ranked {
			if judged[id] >= relevantLevel {
				return 1 / float64(i+1)
			}
		}
		return 0
	case MetricPrecision:
		return float64(countRelevant(judged, ranked)) / float64(m.K)
	case MetricRecall:
		total := totalRelevant(judged)
		if total == 0 {
			return 0
		}
		return float64(countRelevant(judged, ranked)) / float64(total)
	case MetricMAP:
		total := totalRelevant(judged)
		if total == 0 {
			return 0
		}
		var hits, sum float64
		for i, id := range ranked {
			if judged[id] >= relevantLevel {
				hits++
				sum += hits / float64(i+1)
			}
		}
		return sum / float64(total)
	case MetricHitRate:
		if countRelevant(judged, ranked) > 0 {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func linearGain(rel int) float64 {
	return float64(rel)
}

func exponentialGain(rel int) float64 {
	return math.Pow(2, float64(rel)) - 1
}

func ndcg(judged map[string]int, ranked []string, k int, gain func(int) float64) float64 {
	var dcg float64
	for i, id := range ranked {
		rel := judged[id]
		if rel <= 0 {
			continue
		}
		dcg += gain(rel) / math.Log2(float64(i+2))
	}

	ideal := idealRelevances(judged)
	if k > 0 && len(ideal) > k {
		ideal = ideal[:k]
	}
	var idcg float64
	for i, rel := range ideal {
		idcg += gain(rel) / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func idealRelevances(judged map[string]int) []int {
	out := make([]int, 0, len(judged))
	for _, rel := range judged {
		if rel > 0 {
			out = append(out, rel)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func countRelevant(judged map[string]int, ranked []string) int {
	n := 0
	for _, id := range ranked {
		if judged[id] >= relevantLevel {
			n++
		}
	}
	return n
}

func totalRelevant(judged map[string]int) int {
	n := 0
	for _, rel := range judged {
		if rel >= relevantLevel {
			n++
		}
	}
	return n
}
