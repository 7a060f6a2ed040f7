package main

import (
	"bytes"
	"testing"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

func TestWriteContextsLabelsEachPassageWithItsOwnID(t *testing.T) {
	var buf bytes.Buffer
	writeContexts(&buf, []domain.Passage{
		{ID: "p1", Text: "one"},
		{ID: "p2", Text: "two"},
	})

	want := "1. [p1] one\n2. [p2] two\n"
	if buf.String() != want {
		t.Fatalf("writeContexts() = %q, want %q", buf.String(), want)
	}
}

func TestWriteTranscriptGroupsMessagesByThread(t *testing.T) {
	var buf bytes.Buffer
	writeTranscript(&buf, []domain.Thread{
		{ID: "a1", Name: "Thread 1", Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "hours?"},
			{Role: domain.RoleAssistant, Content: "9am to 5pm"},
		}},
		{ID: "b2", Name: "Thread 2"},
	})

	want := "== Thread 1 (a1)\nuser: hours?\nassistant: 9am to 5pm\n\n== Thread 2 (b2)\n"
	if buf.String() != want {
		t.Fatalf("writeTranscript() = %q, want %q", buf.String(), want)
	}
}
