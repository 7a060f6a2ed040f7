package ollama

import (
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/resilience"
)

const serviceName = "ollama"

// HTTPStatusError is returned for non-2xx Ollama responses.
type HTTPStatusError = resilience.HTTPStatusError

func classifyOllamaError(err error) resilience.ErrorClassification {
	return resilience.ClassifyHTTP(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.MarkTemporary(operation, err, classifyOllamaError)
}
