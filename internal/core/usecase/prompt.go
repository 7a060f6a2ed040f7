package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

const defaultAssistantName = "VicRoads Chatbot"

func buildGroundedPrompt(assistantName, question string, contexts []string) string {
	if strings.TrimSpace(assistantName) == "" {
		assistantName = defaultAssistantName
	}
	combined := strings.Join(contexts, " ")

	return fmt.Sprintf(`You are interactive %s. Answer the question using ONLY the information below. Provide a concise answer in natural language without prefacing with phrases like 'According to...'. If the answer is not present, reply exactly: '%s'

Question: %s

Context: %s

Answer:`, assistantName, domain.FallbackAnswer, question, combined)
}
