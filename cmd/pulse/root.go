package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kirillkom/pulse-assistant/internal/bootstrap"
	"github.com/kirillkom/pulse-assistant/internal/config"
	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/observability/logging"
)

const serviceName = "pulse"

var (
	envFile  string
	modeFlag string
	topKFlag int
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Grounded VicRoads question answering",
	Long: `pulse answers questions about VicRoads services from a fixed passage collection and
evaluates retrieval quality against relevance judgments.

Example usage:
  pulse chat                          # interactive multi-thread chat
  pulse ask "What are your business hours?"
  pulse index all                     # build dense and lexical indexes
  pulse runs --mode lexical           # write a TREC run for every topic
  pulse eval --run target/runs/vicroads-dense.txt --run target/runs/vicroads-lexical.txt`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		} else {
			_ = godotenv.Load()
		}
		cfg = config.Load()
		if cmd.Flags().Changed("mode") && modeFlag != "all" {
			cfg.RAGRetrievalMode = modeFlag
		}
		if cmd.Flags().Changed("top-k") {
			cfg.RAGTopK = topKFlag
		}
		slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env when present)")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "retrieval mode: dense or lexical (alias bm25)")
	rootCmd.PersistentFlags().IntVar(&topKFlag, "top-k", 0, "passages retrieved per question")
}

func loadApp(ctx context.Context) (*bootstrap.App, error) {
	return bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName})
}

// modesFromArg expands "all" into every retrieval mode.
func modesFromArg(raw string) ([]domain.RetrievalMode, error) {
	if raw == "" || raw == "all" {
		return domain.RetrievalModes(), nil
	}
	mode, err := domain.ParseRetrievalMode(raw)
	if err != nil {
		return nil, err
	}
	return []domain.RetrievalMode{mode}, nil
}
