package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pulse-assistant/internal/bootstrap"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Derive qrels and the JSONL collection from the raw CSV files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		uc, err := bootstrap.NewPrepareUseCase(cfg)
		if err != nil {
			return err
		}
		result, err := uc.Prepare(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "qrels: %s (%d judgments)\ncollection: %s (%d passages)\n",
			result.QrelsPath, result.Judgments, result.CollectionPath, result.Passages)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prepareCmd)
}
