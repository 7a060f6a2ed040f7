package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
)

// AnswerGenerator turns a question and its retrieved context into a grounded answer.
type AnswerGenerator struct {
	completer     ports.TextCompleter
	assistantName string
}

func NewAnswerGenerator(completer ports.TextCompleter, assistantName string) *AnswerGenerator {
	return &AnswerGenerator{
		completer:     completer,
		assistantName: assistantName,
	}
}

// Generate never returns an empty answer. With no context the collaborator is not called.
func (g *AnswerGenerator) Generate(ctx context.Context, question string, contexts []string) domain.Answer {
	if len(contexts) == 0 {
		return domain.NoInformation()
	}

	prompt := buildGroundedPrompt(g.assistantName, question, contexts)
	raw, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		wrapped := domain.WrapError(domain.ErrGenerationFailure, "complete prompt", err)
		slog.Warn("generation_failed", "error", wrapped, "context_count", len(contexts))
		return domain.GenerationFailed(wrapped.Error())
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		// An empty completion and an explicit refusal both map to the fallback answer.
		slog.Warn("generation_empty", "context_count", len(contexts))
		return domain.NoInformation()
	}
	if text == domain.FallbackAnswer {
		return domain.NoInformation()
	}
	return domain.Answered(text)
}
