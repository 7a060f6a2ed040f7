package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
)

const (
	DefaultTopK = 3
	exitCommand = "exit"
)

// TurnObserver receives per-turn telemetry.
type TurnObserver interface {
	ObserveTurn(mode domain.RetrievalMode, outcome domain.AnswerOutcome, hits int, duration time.Duration)
}

// ChatUseCase runs one question/answer turn in a session's active thread.
type ChatUseCase struct {
	retriever *Retriever
	assembler *ContextAssembler
	generator *AnswerGenerator
	mode      domain.RetrievalMode
	topK      int
	observer  TurnObserver
}

func NewChatUseCase(
	retriever *Retriever,
	assembler *ContextAssembler,
	generator *AnswerGenerator,
	mode domain.RetrievalMode,
	topK int,
) *ChatUseCase {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if !mode.Valid() {
		mode = domain.ModeDense
	}
	return &ChatUseCase{
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		mode:      mode,
		topK:      topK,
	}
}

func (uc *ChatUseCase) WithObserver(observer TurnObserver) *ChatUseCase {
	uc.observer = observer
	return uc
}

func (uc *ChatUseCase) Mode() domain.RetrievalMode {
	return uc.mode
}

func (uc *ChatUseCase) Ask(ctx context.Context, session ports.ThreadSession, question string) (*domain.Turn, error) {
	return uc.AskWith(ctx, session, question, domain.AskOptions{})
}

// AskWith appends the question to the active thread, answers it from retrieved context and
// appends the displayed answer. Retrieval and generation faults degrade the answer instead of
// failing the turn.
func (uc *ChatUseCase) AskWith(
	ctx context.Context,
	session ports.ThreadSession,
	question string,
	opts domain.AskOptions,
) (*domain.Turn, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	mode := uc.mode
	if opts.Mode != "" {
		mode = opts.Mode
	}
	topK := uc.topK
	if opts.TopK != 0 {
		topK = opts.TopK
	}
	if err := validateSearch(question, mode, topK); err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("session is required"))
	}

	threadID := session.ActiveID()
	if err := session.AppendMessage(threadID, domain.Message{Role: domain.RoleUser, Content: question}); err != nil {
		return nil, err
	}

	hits, err := uc.retriever.Search(ctx, question, mode, topK)
	if err != nil {
		slog.Warn("retrieval_failed",
			"session_id", session.SessionID(),
			"thread_id", threadID,
			"mode", mode,
			"error", err,
		)
		hits = nil
	}
	contexts := uc.assembler.AssemblePassages(hits)
	answer := uc.generator.Generate(ctx, question, PassageTexts(contexts))
	display := answer.Display()

	if err := session.AppendMessage(threadID, domain.Message{Role: domain.RoleAssistant, Content: display}); err != nil {
		return nil, err
	}
	thread, err := session.Thread(threadID)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	if uc.observer != nil {
		uc.observer.ObserveTurn(mode, answer.Outcome, len(hits), duration)
	}
	slog.Info("chat_turn",
		"session_id", session.SessionID(),
		"thread_id", threadID,
		"mode", mode,
		"hits", len(hits),
		"contexts", len(contexts),
		"outcome", answer.Outcome,
		"duration_ms", float64(duration.Microseconds())/1000.0,
	)

	return &domain.Turn{
		ThreadID: threadID,
		Question: question,
		Mode:     mode,
		Answer:   answer,
		Display:  display,
		Hits:     hits,
		Contexts: contexts,
		Thread:   thread,
	}, nil
}

// IsExitCommand reports whether the input asks to clear the current thread.
func IsExitCommand(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), exitCommand)
}
