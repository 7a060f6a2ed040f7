package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kirillkom/pulse-assistant/internal/infrastructure/resilience"
)

// Completer sends the grounded prompt as a single user message to an OpenAI-compatible chat endpoint.
type Completer struct {
	client   openai.Client
	model    string
	executor *resilience.Executor
}

type Option func(*Completer)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Completer) {
		c.executor = executor
	}
}

func New(baseURL, apiKey, model string, httpClient *http.Client, opts ...Option) *Completer {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(baseURL) != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(httpClient))
	}
	c := &Completer{
		client: openai.NewClient(clientOpts...),
		model:  model,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := resilience.Do(ctx, c.executor, "openai.chat", func(callCtx context.Context) (string, error) {
		resp, err := c.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(0),
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("openai chat: empty choices")
		}
		return resp.Choices[0].Message.Content, nil
	}, classifyOpenAIError)
	if err != nil {
		return "", resilience.MarkTemporary("openai chat", err, classifyOpenAIError)
	}
	return strings.TrimSpace(text), nil
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if resilience.IsRetryableHTTPStatus(apiErr.StatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ClassifyHTTP(err)
}
