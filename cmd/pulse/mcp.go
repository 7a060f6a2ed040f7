package main

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/pulse-assistant/internal/adapters/mcp"
	"github.com/kirillkom/pulse-assistant/internal/observability/logging"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the ask_vicroads tool over MCP stdio",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logFile, err := logging.OpenLogFile(cfg.LogFile)
		if err != nil {
			return err
		}
		defer logFile.Close()
		slog.SetDefault(logging.NewJSONLoggerTo(logFile, serviceName+"-mcp", cfg.LogLevel))

		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		tools := mcpadapter.NewTools(app.Chat, app.NewSession(uuid.NewString()))
		return mcpadapter.ServeStdio(mcpadapter.NewServer(version, tools))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
