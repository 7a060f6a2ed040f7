package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pulse-assistant/internal/bootstrap"
	"github.com/kirillkom/pulse-assistant/internal/config"
	"github.com/kirillkom/pulse-assistant/internal/evaluation"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/report/xlsx"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Compare run files against relevance judgments",
	Long: `Score run files with the requested metrics and test pairwise differences.

Examples:
  pulse eval --run target/runs/vicroads-dense.txt --run target/runs/vicroads-lexical.txt
  pulse eval --config eval.yaml --format latex
  pulse eval --run a.txt --run b.txt --metric mrr --metric recall@10 --test student --format xlsx --out report.xlsx`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().String("config", "", "YAML file describing the comparison")
	evalCmd.Flags().String("qrels", "", "relevance judgments (default QRELS_PATH)")
	evalCmd.Flags().StringArray("run", nil, "run file to compare (repeatable)")
	evalCmd.Flags().StringArray("metric", nil, "metric identifier such as ndcg@5 or mrr (repeatable)")
	evalCmd.Flags().Float64("max-p", evaluation.DefaultMaxP, "significance threshold")
	evalCmd.Flags().String("policy", "judged", "query policy: judged or intersection")
	evalCmd.Flags().String("test", "tukey", "statistical test: tukey or student")
	evalCmd.Flags().Int("rounding", evaluation.DefaultRounding, "digits shown in the report")
	evalCmd.Flags().String("topic-set", "vicroads", "topic set name shown in the report")
	evalCmd.Flags().String("format", "text", "output format: text, latex or xlsx")
	evalCmd.Flags().StringP("out", "o", "", "write the report to a file instead of stdout")
}

func runEval(cmd *cobra.Command, _ []string) error {
	req, err := evalRequest(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")
	if format == "xlsx" && outPath == "" {
		return fmt.Errorf("--format xlsx requires --out")
	}

	report, err := bootstrap.NewEvaluateUseCase().CompareFiles(cmd.Context(), req)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch strings.ToLower(format) {
	case "text":
		return report.WriteText(w)
	case "latex":
		return report.WriteLaTeX(w)
	case "xlsx":
		return xlsx.WriteReport(w, report)
	default:
		return fmt.Errorf("unknown format %q (want text, latex or xlsx)", format)
	}
}

func evalRequest(cmd *cobra.Command) (evaluation.FileRequest, error) {
	flags := cmd.Flags()
	var req evaluation.FileRequest
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.LoadEvalConfig(path)
		if err != nil {
			return evaluation.FileRequest{}, err
		}
		req = loaded
	}

	if flags.Changed("qrels") || req.QrelsPath == "" {
		qrels, _ := flags.GetString("qrels")
		if qrels == "" {
			qrels = cfg.QrelsPath
		}
		req.QrelsPath = qrels
	}
	if flags.Changed("run") {
		req.RunPaths, _ = flags.GetStringArray("run")
	}
	if flags.Changed("metric") || len(req.Metrics) == 0 {
		req.Metrics, _ = flags.GetStringArray("metric")
	}
	if flags.Changed("max-p") || req.MaxP == 0 {
		req.MaxP, _ = flags.GetFloat64("max-p")
	}
	if flags.Changed("rounding") || req.Rounding == 0 {
		req.Rounding, _ = flags.GetInt("rounding")
	}
	if flags.Changed("topic-set") || req.TopicSet == "" {
		req.TopicSet, _ = flags.GetString("topic-set")
	}

	if flags.Changed("policy") || req.Policy == "" {
		raw, _ := flags.GetString("policy")
		policy, err := evaluation.ParseQueryPolicy(raw)
		if err != nil {
			return evaluation.FileRequest{}, err
		}
		req.Policy = policy
	}
	if flags.Changed("test") || req.Test == "" {
		raw, _ := flags.GetString("test")
		test, err := evaluation.ParseStatTest(raw)
		if err != nil {
			return evaluation.FileRequest{}, err
		}
		req.Test = test
	}
	return req, nil
}
