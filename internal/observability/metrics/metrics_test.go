package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/healthz":                                  "/healthz",
		"/v1/sessions":                              "/v1/sessions",
		"/v1/sessions/abc/ask":                      "/v1/sessions/{session_id}/ask",
		"/v1/sessions/abc/threads/1234abcd":         "/v1/sessions/{session_id}/threads/{thread_id}",
		"/v1/sessions/abc/threads/1234abcd/activate": "/v1/sessions/{session_id}/threads/{thread_id}/activate",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	m := NewHTTPServerMetrics("pulse-api")
	handler := m.Middleware("pulse-api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil))

	body := scrape(t, m.Handler())
	if !strings.Contains(body, `pulse_http_requests_total{method="GET",path="/v1/sessions/{session_id}",service="pulse-api",status="404"} 1`) {
		t.Fatalf("missing request counter in:\n%s", body)
	}
}

func TestChatMetricsShareRegistry(t *testing.T) {
	m := NewHTTPServerMetrics("pulse-api")
	chat := NewChatMetrics("pulse-api", m.Registerer())

	chat.ObserveTurn(domain.ModeDense, domain.OutcomeNoInformation, 0, 120*time.Millisecond)
	chat.ObserveIndexBuild(domain.ModeLexical, time.Second, errors.New("disk full"))
	chat.ObserveBreakerState("ollama.generate", "closed", "open")

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`pulse_chat_turns_total{mode="dense",outcome="no_information",service="pulse-api"} 1`,
		`pulse_chat_no_context_total{mode="dense",service="pulse-api"} 1`,
		`pulse_retrieval_index_builds_total{mode="lexical",service="pulse-api",status="error"} 1`,
		`pulse_resilience_breaker_transitions_total{operation="ollama.generate",service="pulse-api",to="open"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in:\n%s", want, body)
		}
	}
}

func TestWorkerMetricsTrackRuns(t *testing.T) {
	m := NewWorkerMetrics("pulse-worker")
	m.StartRun()
	m.FinishRun("pulse-worker", "dense", 2*time.Second, nil)

	body := scrape(t, m.Handler())
	if !strings.Contains(body, `pulse_worker_run_jobs_total{mode="dense",service="pulse-worker",status="success"} 1`) {
		t.Fatalf("missing run counter in:\n%s", body)
	}
	if !strings.Contains(body, `pulse_worker_run_jobs_in_flight{service="pulse-worker"} 0`) {
		t.Fatalf("expected in-flight gauge back at zero in:\n%s", body)
	}
}
