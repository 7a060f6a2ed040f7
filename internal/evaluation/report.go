package evaluation

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

var superscripts = map[rune]string{
	'a': "ᵃ", 'b': "ᵇ", 'c': "ᶜ", 'd': "ᵈ", 'e': "ᵉ", 'f': "ᶠ", 'g': "ᵍ", 'h': "ʰ", 'i': "ⁱ",
	'j': "ʲ", 'k': "ᵏ", 'l': "ˡ", 'm': "ᵐ", 'n': "ⁿ", 'o': "ᵒ", 'p': "ᵖ", 'r': "ʳ", 's': "ˢ",
	't': "ᵗ", 'u': "ᵘ", 'v': "ᵛ", 'w': "ʷ", 'x': "ˣ", 'y': "ʸ", 'z': "ᶻ",
}

// Score formats a metric mean with the report's rounding.
func (r *Report) Score(run RunResult, metric string) string {
	return strconv.FormatFloat(run.Means[metric], 'f', r.Rounding, 64)
}

// WriteText renders the comparison as an aligned table. A superscript label after a score marks
// a run that is significantly outperformed.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := append([]string{"#", "Model"}, r.Metrics...)
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, run := range r.Runs {
		cells := []string{run.Label, run.Name}
		for _, metric := range r.Metrics {
			var marks strings.Builder
			for _, label := range run.Superior[metric] {
				if sup, ok := superscripts[rune(label[0])]; ok && len(label) == 1 {
					marks.WriteString(sup)
				} else {
					marks.WriteString("^" + label)
				}
			}
			cells = append(cells, r.Score(run, metric)+marks.String())
		}
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nqueries=%d policy=%s test=%s max_p=%g\n", r.Queries, r.Policy, r.Test, r.MaxP)
	return err
}

// WriteLaTeX renders the comparison as a LaTeX table with the best score per metric in bold.
func (r *Report) WriteLaTeX(w io.Writer) error {
	best := make(map[string]float64, len(r.Metrics))
	for _, metric := range r.Metrics {
		for i, run := range r.Runs {
			if i == 0 || run.Means[metric] > best[metric] {
				best[metric] = run.Means[metric]
			}
		}
	}

	var b strings.Builder
	b.WriteString("\\begin{table*}[ht]\n\\centering\n")
	b.WriteString("\\begin{tabular}{c|l" + strings.Repeat("|c", len(r.Metrics)) + "}\n\\toprule\n")
	b.WriteString("\\textbf{\\#} & \\textbf{Model}")
	for _, metric := range r.Metrics {
		b.WriteString(" & \\textbf{" + latexEscape(metric) + "}")
	}
	b.WriteString(" \\\\\n\\midrule\n")

	for _, run := range r.Runs {
		b.WriteString(run.Label + " & " + latexEscape(run.Name))
		for _, metric := range r.Metrics {
			score := r.Score(run, metric)
			if run.Means[metric] == best[metric] {
				score = "\\textbf{" + score + "}"
			}
			if labels := run.Superior[metric]; len(labels) > 0 {
				score += "$^{" + strings.Join(labels, "") + "}$"
			}
			b.WriteString(" & " + score)
		}
		b.WriteString(" \\\\\n")
	}

	b.WriteString("\\bottomrule\n\\end{tabular}\n")
	fmt.Fprintf(&b, "\\caption{Superscripts denote significant differences (%s, $p < %g$) over %d queries.}\n", r.Test, r.MaxP, r.Queries)
	b.WriteString("\\end{table*}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func latexEscape(s string) string {
	replacer := strings.NewReplacer("_", "\\_", "&", "\\&", "%", "\\%", "#", "\\#")
	return replacer.Replace(s)
}
