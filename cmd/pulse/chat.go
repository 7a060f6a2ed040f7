package main

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kirillkom/pulse-assistant/internal/adapters/tui"
	"github.com/kirillkom/pulse-assistant/internal/observability/logging"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive multi-thread chat",
	Long: `Start the terminal chat. Commands inside the chat:
  /new          start a new thread
  /switch N     switch to thread N
  /clear        clear the current thread (same as typing exit)
  /delete       delete the current thread
  /context      toggle display of retrieved passages
  /quit         leave`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Bool("show-context", false, "show retrieved passages under each answer")
}

func runChat(cmd *cobra.Command, _ []string) error {
	logFile, err := logging.OpenLogFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()
	slog.SetDefault(logging.NewJSONLoggerTo(logFile, serviceName, cfg.LogLevel))

	app, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	showContext, _ := cmd.Flags().GetBool("show-context")
	session := app.NewSession(uuid.NewString())
	model := tui.New(cmd.Context(), app.Chat, session, "Pulse · VicRoads", showContext)
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
