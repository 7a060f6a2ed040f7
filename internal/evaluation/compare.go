package evaluation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

type QueryPolicy string

const (
	// PolicyJudged evaluates every judged query; queries a run did not answer score zero.
	PolicyJudged QueryPolicy = "judged"
	// PolicyIntersection evaluates only judged queries answered by every run.
	PolicyIntersection QueryPolicy = "intersection"
)

const (
	DefaultMaxP     = 0.01
	DefaultRounding = 4
)

// DefaultMetrics are the cutoffs reported when a request names none.
func DefaultMetrics() []string {
	return []string{"ndcg@1", "ndcg@3", "ndcg@5"}
}

func ParseQueryPolicy(raw string) (QueryPolicy, error) {
	switch QueryPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyJudged:
		return PolicyJudged, nil
	case PolicyIntersection:
		return PolicyIntersection, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "parse query policy", fmt.Errorf("unknown policy %q", raw))
	}
}

func ParseStatTest(raw string) (StatTest, error) {
	switch StatTest(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TestTukey:
		return TestTukey, nil
	case TestStudent:
		return TestStudent, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "parse statistical test", fmt.Errorf("unknown test %q", raw))
	}
}

// Request compares already-loaded runs against judgments.
type Request struct {
	Judgments []domain.RelevanceJudgment
	Runs      []domain.RankedRun
	Metrics   []string
	MaxP      float64
	Policy    QueryPolicy
	Test      StatTest
	Rounding  int
}

// FileRequest names the judgment and run files of a comparison.
type FileRequest struct {
	TopicSet  string      `yaml:"topic_set" json:"topic_set,omitempty"`
	QrelsPath string      `yaml:"qrels" json:"qrels"`
	RunPaths  []string    `yaml:"runs" json:"runs"`
	Metrics   []string    `yaml:"metrics" json:"metrics,omitempty"`
	MaxP      float64     `yaml:"max_p" json:"max_p,omitempty"`
	Policy    QueryPolicy `yaml:"policy" json:"policy,omitempty"`
	Test      StatTest    `yaml:"stat_test" json:"stat_test,omitempty"`
	Rounding  int         `yaml:"rounding_digits" json:"rounding_digits,omitempty"`
}

type RunResult struct {
	Label string             `json:"label"`
	Name  string             `json:"name"`
	Means map[string]float64 `json:"means"`
	// Superior lists, per metric, the labels of runs this run significantly outperforms.
	Superior map[string][]string `json:"superior"`

	perQuery map[string][]float64
}

type Comparison struct {
	Metric      string  `json:"metric"`
	RunA        string  `json:"run_a"`
	RunB        string  `json:"run_b"`
	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant"`
}

type Report struct {
	TopicSet    string       `json:"topic_set,omitempty"`
	Metrics     []string     `json:"metrics"`
	Runs        []RunResult  `json:"runs"`
	Comparisons []Comparison `json:"comparisons"`
	Queries     int          `json:"queries"`
	Policy      QueryPolicy  `json:"policy"`
	Test        StatTest     `json:"stat_test"`
	MaxP        float64      `json:"max_p"`
	Rounding    int          `json:"rounding_digits"`
}

// Compare scores every run on every metric over the policy's query universe and marks pairwise
// differences whose p-value is below MaxP.
func Compare(req Request) (*Report, error) {
	if len(req.Runs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "compare runs", fmt.Errorf("at least one run is required"))
	}
	rawMetrics := req.Metrics
	if len(rawMetrics) == 0 {
		rawMetrics = DefaultMetrics()
	}
	metrics, err := ParseMetrics(rawMetrics)
	if err != nil {
		return nil, err
	}
	policy, err := ParseQueryPolicy(string(req.Policy))
	if err != nil {
		return nil, err
	}
	test, err := ParseStatTest(string(req.Test))
	if err != nil {
		return nil, err
	}
	maxP := req.MaxP
	if maxP <= 0 {
		maxP = DefaultMaxP
	}
	rounding := req.Rounding
	if rounding <= 0 {
		rounding = DefaultRounding
	}

	qrels, err := NewQrels(req.Judgments)
	if err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(req.Runs))
	for i, raw := range req.Runs {
		runs = append(runs, NewRun(raw, i))
	}
	queries := queryUniverse(qrels, runs, policy)
	if len(queries) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "compare runs", fmt.Errorf("no queries to evaluate under policy %q", policy))
	}

	report := &Report{
		Metrics:  make([]string, 0, len(metrics)),
		Runs:     make([]RunResult, len(runs)),
		Queries:  len(queries),
		Policy:   policy,
		Test:     test,
		MaxP:     maxP,
		Rounding: rounding,
	}
	for _, m := range metrics {
		report.Metrics = append(report.Metrics, m.String())
	}

	for i, run := range runs {
		result := RunResult{
			Label:    runLabel(i),
			Name:     run.Name,
			Means:    make(map[string]float64, len(metrics)),
			Superior: make(map[string][]string, len(metrics)),
			perQuery: make(map[string][]float64, len(metrics)),
		}
		for _, m := range metrics {
			scores := make([]float64, len(queries))
			var sum float64
			for q, qid := range queries {
				scores[q] = m.Score(qrels[qid], run.Rankings[qid])
				sum += scores[q]
			}
			result.perQuery[m.String()] = scores
			result.Means[m.String()] = round(sum/float64(len(queries)), rounding)
		}
		report.Runs[i] = result
	}

	for _, m := range metrics {
		name := m.String()
		pvalues := pairwisePValues(report.Runs, name, test)
		for i := range report.Runs {
			for j := i + 1; j < len(report.Runs); j++ {
				a, b := &report.Runs[i], &report.Runs[j]
				p := pvalues[i][j]
				significant := p < maxP
				report.Comparisons = append(report.Comparisons, Comparison{
					Metric:      name,
					RunA:        a.Name,
					RunB:        b.Name,
					PValue:      p,
					Significant: significant,
				})
				if !significant {
					continue
				}
				switch {
				case mean(a.perQuery[name]) > mean(b.perQuery[name]):
					a.Superior[name] = append(a.Superior[name], b.Label)
				case mean(b.perQuery[name]) > mean(a.perQuery[name]):
					b.Superior[name] = append(b.Superior[name], a.Label)
				}
			}
		}
	}
	return report, nil
}

func pairwisePValues(runs []RunResult, metric string, test StatTest) [][]float64 {
	if test == TestTukey {
		groups := make([][]float64, len(runs))
		for i := range runs {
			groups[i] = runs[i].perQuery[metric]
		}
		return tukeyHSD(groups)
	}

	p := make([][]float64, len(runs))
	for i := range p {
		p[i] = make([]float64, len(runs))
		p[i][i] = 1
	}
	for i := range runs {
		for j := i + 1; j < len(runs); j++ {
			v := pairedStudentP(runs[i].perQuery[metric], runs[j].perQuery[metric])
			p[i][j], p[j][i] = v, v
		}
	}
	return p
}

func queryUniverse(qrels Qrels, runs []Run, policy QueryPolicy) []string {
	out := make([]string, 0, len(qrels))
	for qid := range qrels {
		if policy == PolicyIntersection {
			answered := true
			for _, run := range runs {
				if _, ok := run.Rankings[qid]; !ok {
					answered = false
					break
				}
			}
			if !answered {
				continue
			}
		}
		out = append(out, qid)
	}
	sort.Strings(out)
	return out
}

func runLabel(i int) string {
	if i < 26 {
		return string(rune('a' + i))
	}
	return fmt.Sprintf("r%d", i+1)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
