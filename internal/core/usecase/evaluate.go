package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
	"github.com/kirillkom/pulse-assistant/internal/evaluation"
)

const defaultRunLoadConcurrency = 4

// EvaluateUseCase loads judgments and run files and compares the runs.
type EvaluateUseCase struct {
	source      ports.EvaluationSource
	concurrency int
}

func NewEvaluateUseCase(source ports.EvaluationSource, concurrency int) *EvaluateUseCase {
	if concurrency <= 0 {
		concurrency = defaultRunLoadConcurrency
	}
	return &EvaluateUseCase{source: source, concurrency: concurrency}
}

// CompareFiles fails before any scoring when a run file is missing or the judgments are malformed.
func (uc *EvaluateUseCase) CompareFiles(ctx context.Context, req evaluation.FileRequest) (*evaluation.Report, error) {
	if strings.TrimSpace(req.QrelsPath) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "compare runs", fmt.Errorf("qrels path is required"))
	}
	if len(req.RunPaths) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "compare runs", fmt.Errorf("at least one run file is required"))
	}

	var missing []string
	for _, path := range req.RunPaths {
		exists, err := uc.source.RunExists(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("stat run %s: %w", path, err)
		}
		if !exists {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return nil, domain.WrapError(domain.ErrMissingRunFile, "compare runs", fmt.Errorf("missing: %s", strings.Join(missing, ", ")))
	}

	judgments, err := uc.source.LoadJudgments(ctx, req.QrelsPath)
	if err != nil {
		if domain.IsKind(err, domain.ErrMalformedJudgments) {
			return nil, err
		}
		return nil, fmt.Errorf("load judgments: %w", err)
	}

	runs := make([]domain.RankedRun, len(req.RunPaths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for i, path := range req.RunPaths {
		g.Go(func() error {
			run, err := uc.source.LoadRun(gctx, path)
			if err != nil {
				return fmt.Errorf("load run %s: %w", path, err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report, err := evaluation.Compare(evaluation.Request{
		Judgments: judgments,
		Runs:      runs,
		Metrics:   req.Metrics,
		MaxP:      req.MaxP,
		Policy:    req.Policy,
		Test:      req.Test,
		Rounding:  req.Rounding,
	})
	if err != nil {
		return nil, err
	}
	report.TopicSet = req.TopicSet

	slog.Info("runs_compared",
		"topic_set", req.TopicSet,
		"runs", len(runs),
		"queries", report.Queries,
		"policy", report.Policy,
		"stat_test", report.Test,
	)
	return report, nil
}
