package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().Bool("context", false, "print the retrieved passages")
	askCmd.Flags().Bool("json", false, "print the full turn as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	session := app.NewSession(uuid.NewString())
	turn, err := app.Chat.Ask(cmd.Context(), session, strings.Join(args, " "))
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(turn)
	}

	fmt.Fprintln(cmd.OutOrStdout(), turn.Display)
	if showContext, _ := cmd.Flags().GetBool("context"); showContext {
		fmt.Fprintln(cmd.OutOrStdout(), "\nRetrieved context:")
		writeContexts(cmd.OutOrStdout(), turn.Contexts)
	}
	return nil
}

func writeContexts(w io.Writer, contexts []domain.Passage) {
	for i, passage := range contexts {
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, passage.ID, passage.Text)
	}
}
