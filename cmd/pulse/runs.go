package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Write TREC run files for every evaluation topic",
	Long: `Search every topic question and write the ranked passages as a TREC run file
(vicroads-<mode>.txt under RUNS_DIR). With --queue the job is published to NATS and
executed by the worker instead.`,
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().Int("hits", 0, "passages per topic (default RAG_RUN_HITS)")
	runsCmd.Flags().Bool("queue", false, "publish the job to NATS instead of running it here")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	modes, err := modesFromArg(modeFlag)
	if err != nil {
		return err
	}
	hits, _ := cmd.Flags().GetInt("hits")
	useQueue, _ := cmd.Flags().GetBool("queue")

	app, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	for _, mode := range modes {
		req := domain.RunRequest{Mode: mode, Hits: hits}
		if useQueue {
			queue, err := app.Queue()
			if err != nil {
				return err
			}
			if err := queue.PublishRunRequest(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s run on %s\n", mode, cfg.NATSSubject)
			continue
		}

		path, err := app.Runs.WriteRun(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	}
	return nil
}
