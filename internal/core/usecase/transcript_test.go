package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

type transcriptStoreFake struct {
	saved    []string
	appended []string
	cleared  []string
	deleted  []string
	err      error
	deadline bool
}

func (f *transcriptStoreFake) SaveThread(ctx context.Context, _ string, thread domain.Thread) error {
	_, f.deadline = ctx.Deadline()
	f.saved = append(f.saved, thread.Name)
	return f.err
}

func (f *transcriptStoreFake) AppendMessage(_ context.Context, _, _ string, msg domain.Message) error {
	f.appended = append(f.appended, msg.Content)
	return f.err
}

func (f *transcriptStoreFake) ClearThread(_ context.Context, _, threadID string) error {
	f.cleared = append(f.cleared, threadID)
	return f.err
}

func (f *transcriptStoreFake) DeleteThread(_ context.Context, _, threadID string) error {
	f.deleted = append(f.deleted, threadID)
	return f.err
}

func TestTranscriptRecorderMirrorsRegistry(t *testing.T) {
	store := &transcriptStoreFake{}
	r := NewConversationRegistry("s1", WithRegistryObserver(NewTranscriptRecorder(store, time.Second)))
	first := r.ActiveID()

	_ = r.AppendMessage(first, domain.Message{Role: domain.RoleUser, Content: "hi"})
	_ = r.ClearThread(first)
	_ = r.DeleteThread(first)

	if len(store.saved) != 2 || store.saved[0] != "Thread 1" {
		t.Fatalf("expected bootstrap and replacement saves, got %v", store.saved)
	}
	if !store.deadline {
		t.Fatalf("expected bounded context on store calls")
	}
	if len(store.appended) != 1 || store.appended[0] != "hi" {
		t.Fatalf("unexpected appends %v", store.appended)
	}
	if len(store.cleared) != 1 || len(store.deleted) != 1 || store.deleted[0] != first {
		t.Fatalf("unexpected clear/delete calls %v %v", store.cleared, store.deleted)
	}
}

func TestTranscriptRecorderSwallowsStoreErrors(t *testing.T) {
	store := &transcriptStoreFake{err: errors.New("db down")}
	r := NewConversationRegistry("s1", WithRegistryObserver(NewTranscriptRecorder(store, 0)))

	if err := r.AppendMessage(r.ActiveID(), domain.Message{Role: domain.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("expected registry to ignore store errors, got %v", err)
	}
	if len(r.Active().Messages) != 1 {
		t.Fatalf("expected message recorded in memory")
	}
}
