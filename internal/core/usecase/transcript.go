package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
)

const defaultTranscriptTimeout = 3 * time.Second

// TranscriptRecorder mirrors registry mutations into a TranscriptStore. Store failures are
// logged and never surface to the conversation.
type TranscriptRecorder struct {
	store   ports.TranscriptStore
	timeout time.Duration
}

func NewTranscriptRecorder(store ports.TranscriptStore, timeout time.Duration) *TranscriptRecorder {
	if timeout <= 0 {
		timeout = defaultTranscriptTimeout
	}
	return &TranscriptRecorder{store: store, timeout: timeout}
}

func (r *TranscriptRecorder) ThreadSaved(sessionID string, thread domain.Thread) {
	r.do("save_thread", sessionID, thread.ID, func(ctx context.Context) error {
		return r.store.SaveThread(ctx, sessionID, thread)
	})
}

func (r *TranscriptRecorder) MessageAppended(sessionID, threadID string, msg domain.Message) {
	r.do("append_message", sessionID, threadID, func(ctx context.Context) error {
		return r.store.AppendMessage(ctx, sessionID, threadID, msg)
	})
}

func (r *TranscriptRecorder) ThreadCleared(sessionID, threadID string) {
	r.do("clear_thread", sessionID, threadID, func(ctx context.Context) error {
		return r.store.ClearThread(ctx, sessionID, threadID)
	})
}

func (r *TranscriptRecorder) ThreadDeleted(sessionID, threadID string) {
	r.do("delete_thread", sessionID, threadID, func(ctx context.Context) error {
		return r.store.DeleteThread(ctx, sessionID, threadID)
	})
}

func (r *TranscriptRecorder) do(operation, sessionID, threadID string, fn func(context.Context) error) {
	if r == nil || r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		slog.Warn("transcript_write_failed",
			"operation", operation,
			"session_id", sessionID,
			"thread_id", threadID,
			"error", err,
		)
	}
}
