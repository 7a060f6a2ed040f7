package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:       "index [dense|lexical|all]",
	Short:     "Build retrieval indexes ahead of the first question",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"dense", "lexical", "bm25", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "all"
		if len(args) == 1 {
			target = args[0]
		}
		modes, err := modesFromArg(target)
		if err != nil {
			return err
		}

		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		for _, mode := range modes {
			start := time.Now()
			if err := app.Retriever.Warm(cmd.Context(), mode); err != nil {
				return fmt.Errorf("build %s index: %w", mode, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s index ready (%s)\n", mode, time.Since(start).Round(time.Millisecond))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
