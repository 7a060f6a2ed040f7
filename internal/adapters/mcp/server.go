package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
	"github.com/kirillkom/pulse-assistant/internal/core/usecase"
)

const (
	AskToolName       = "ask_vicroads"
	NewThreadToolName = "new_vicroads_thread"
)

// Tools exposes the chat use case to MCP clients. One stdio connection is one session.
type Tools struct {
	chat    ports.ChatService
	session *usecase.ConversationRegistry
}

func NewTools(chat ports.ChatService, session *usecase.ConversationRegistry) *Tools {
	return &Tools{chat: chat, session: session}
}

func NewServer(version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer("pulse-vicroads", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(AskToolName,
		mcp.WithDescription("Answer a question about VicRoads services using only the indexed VicRoads passages."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer.")),
		mcp.WithString("mode", mcp.Description("Retrieval mode: dense or lexical."), mcp.Enum("dense", "lexical")),
		mcp.WithNumber("top_k", mcp.Description("Number of passages to retrieve.")),
		mcp.WithBoolean("include_context", mcp.Description("Return the retrieved passages with the answer.")),
	), tools.Ask)

	s.AddTool(mcp.NewTool(NewThreadToolName,
		mcp.WithDescription("Start a fresh conversation thread; later questions no longer share history with earlier ones."),
	), tools.NewThread)

	return s
}

// ServeStdio blocks until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type askResult struct {
	Answer   string                `json:"answer"`
	Outcome  domain.AnswerOutcome  `json:"outcome"`
	Mode     domain.RetrievalMode  `json:"mode"`
	ThreadID string                `json:"thread_id"`
	Hits     []domain.RetrievalHit `json:"hits,omitempty"`
	Contexts []domain.Passage      `json:"contexts,omitempty"`
}

func (t *Tools) Ask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question is required"), nil
	}

	var opts domain.AskOptions
	if raw := request.GetString("mode", ""); raw != "" {
		mode, err := domain.ParseRetrievalMode(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts.Mode = mode
	}
	opts.TopK = request.GetInt("top_k", 0)

	turn, err := t.chat.AskWith(ctx, t.session, question, opts)
	if err != nil {
		slog.Warn("mcp_ask_failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := askResult{
		Answer:   turn.Display,
		Outcome:  turn.Answer.Outcome,
		Mode:     turn.Mode,
		ThreadID: turn.ThreadID,
	}
	if request.GetBool("include_context", false) {
		out.Hits = turn.Hits
		out.Contexts = turn.Contexts
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode ask result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (t *Tools) NewThread(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	thread := t.session.CreateThread()
	return mcp.NewToolResultText(fmt.Sprintf("Started %s (%s)", thread.Name, thread.ID)), nil
}
