package xlsx

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/pulse-assistant/internal/evaluation"
)

const (
	summarySheet     = "Summary"
	comparisonsSheet = "Comparisons"
)

// WriteReport exports an evaluation report as a workbook: one summary sheet with the best
// score per metric in bold, and one sheet listing every pairwise test.
func WriteReport(w io.Writer, report *evaluation.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeSummary(f, report); err != nil {
		return err
	}
	if _, err := f.NewSheet(comparisonsSheet); err != nil {
		return fmt.Errorf("create comparisons sheet: %w", err)
	}
	if err := writeComparisons(f, report); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, report *evaluation.Report) error {
	header := []any{"#", "Model"}
	for _, metric := range report.Metrics {
		header = append(header, metric, metric+" superior to")
	}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create bold style: %w", err)
	}
	best := bestScores(report)

	for i, run := range report.Runs {
		row := []any{run.Label, run.Name}
		for _, metric := range report.Metrics {
			row = append(row, round(run.Means[metric], report.Rounding), strings.Join(run.Superior[metric], ","))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
		for m, metric := range report.Metrics {
			if run.Means[metric] != best[metric] {
				continue
			}
			scoreCell, err := excelize.CoordinatesToCellName(3+2*m, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(summarySheet, scoreCell, scoreCell, bold); err != nil {
				return fmt.Errorf("style best score: %w", err)
			}
		}
	}

	footer := []any{"queries", report.Queries, "policy", string(report.Policy), "test", string(report.Test), "max_p", report.MaxP}
	cell, err := excelize.CoordinatesToCellName(1, len(report.Runs)+3)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(summarySheet, cell, &footer); err != nil {
		return fmt.Errorf("write summary footer: %w", err)
	}
	return nil
}

func writeComparisons(f *excelize.File, report *evaluation.Report) error {
	header := []any{"metric", "run_a", "run_b", "p_value", "significant"}
	if err := f.SetSheetRow(comparisonsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write comparisons header: %w", err)
	}
	for i, c := range report.Comparisons {
		row := []any{c.Metric, c.RunA, c.RunB, c.PValue, c.Significant}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(comparisonsSheet, cell, &row); err != nil {
			return fmt.Errorf("write comparison row: %w", err)
		}
	}
	return nil
}

func bestScores(report *evaluation.Report) map[string]float64 {
	best := make(map[string]float64, len(report.Metrics))
	for _, metric := range report.Metrics {
		for i, run := range report.Runs {
			if i == 0 || run.Means[metric] > best[metric] {
				best[metric] = run.Means[metric]
			}
		}
	}
	return best
}

func round(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
