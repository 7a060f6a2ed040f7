package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript SESSION_ID",
	Short: "Print a stored session transcript (requires POSTGRES_DSN)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if app.Transcripts == nil {
			return fmt.Errorf("transcripts are not enabled: set POSTGRES_DSN")
		}
		threads, err := app.Transcripts.ListThreads(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(threads) == 0 {
			return domain.WrapError(domain.ErrSessionNotFound, "transcript", fmt.Errorf("no transcript for session %s", args[0]))
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(threads)
		}
		writeTranscript(cmd.OutOrStdout(), threads)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transcriptCmd)
	transcriptCmd.Flags().Bool("json", false, "print threads as JSON")
}

func writeTranscript(w io.Writer, threads []domain.Thread) {
	for i, thread := range threads {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "== %s (%s)\n", thread.Name, thread.ID)
		for _, msg := range thread.Messages {
			fmt.Fprintf(w, "%s: %s\n", msg.Role, msg.Content)
		}
	}
}
