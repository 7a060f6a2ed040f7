package ports

import (
	"context"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/evaluation"
)

// ThreadSession is the session-scoped conversation state a surface owns and passes to the core.
type ThreadSession interface {
	SessionID() string
	ActiveID() string
	AppendMessage(threadID string, msg domain.Message) error
	Thread(threadID string) (domain.Thread, error)
}

// ChatService is the inbound contract for answering one question in the active thread.
type ChatService interface {
	Ask(ctx context.Context, session ThreadSession, question string) (*domain.Turn, error)
	AskWith(ctx context.Context, session ThreadSession, question string, opts domain.AskOptions) (*domain.Turn, error)
}

// RunGenerator is the inbound contract for producing TREC run files.
type RunGenerator interface {
	WriteRun(ctx context.Context, req domain.RunRequest) (string, error)
}

// RunComparator is the inbound contract for offline retrieval evaluation.
type RunComparator interface {
	CompareFiles(ctx context.Context, req evaluation.FileRequest) (*evaluation.Report, error)
}
