package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

func TestClassifyHTTP(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "canceled", err: context.Canceled},
		{name: "unavailable", err: &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}, retryable: true, record: true},
		{name: "too many requests", err: fmt.Errorf("wrapped: %w", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}), retryable: true, record: true},
		{name: "bad request", err: &HTTPStatusError{StatusCode: http.StatusBadRequest}},
		{name: "unknown", err: errors.New("decode failed"), record: true},
	}
	for _, tc := range cases {
		got := ClassifyHTTP(tc.err)
		if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
			t.Fatalf("%s: unexpected classification %+v", tc.name, got)
		}
	}
}

func TestMarkTemporary(t *testing.T) {
	transient := &HTTPStatusError{Service: "qdrant", Operation: "search", StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}
	err := MarkTemporary("qdrant search", transient, ClassifyHTTP)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected status error to stay in chain")
	}

	permanent := &HTTPStatusError{StatusCode: http.StatusNotFound}
	if got := MarkTemporary("qdrant search", permanent, ClassifyHTTP); domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("expected permanent error unchanged, got %v", got)
	}
	if MarkTemporary("op", nil, ClassifyHTTP) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
