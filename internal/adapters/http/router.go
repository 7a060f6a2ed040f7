package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
	"github.com/kirillkom/pulse-assistant/internal/core/usecase"
	"github.com/kirillkom/pulse-assistant/internal/observability/metrics"
)

const maxRequestBodyBytes = 64 << 10

type Options struct {
	Service          string
	Metrics          *metrics.HTTPServerMetrics
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	// Transcripts serves persisted transcripts; the route answers 404 when nil.
	Transcripts ports.TranscriptReader
}

type Router struct {
	chat     ports.ChatService
	sessions *SessionManager
	opts     Options
}

func NewRouter(chat ports.ChatService, sessions *SessionManager, opts Options) *Router {
	if opts.Service == "" {
		opts.Service = "pulse-api"
	}
	return &Router{chat: chat, sessions: sessions, opts: opts}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/sessions", rt.createSession)
	api.HandleFunc("GET /v1/sessions/{id}", rt.getSession)
	api.HandleFunc("POST /v1/sessions/{id}/threads", rt.createThread)
	api.HandleFunc("GET /v1/sessions/{id}/threads/{tid}", rt.getThread)
	api.HandleFunc("POST /v1/sessions/{id}/threads/{tid}/activate", rt.activateThread)
	api.HandleFunc("DELETE /v1/sessions/{id}/threads/{tid}/messages", rt.clearThread)
	api.HandleFunc("DELETE /v1/sessions/{id}/threads/{tid}", rt.deleteThread)
	api.HandleFunc("POST /v1/sessions/{id}/ask", rt.ask)
	api.HandleFunc("GET /v1/sessions/{id}/transcript", rt.transcript)

	var onReject func(string)
	if rt.opts.Metrics != nil {
		onReject = func(reason string) { rt.opts.Metrics.RecordRejected(rt.opts.Service, reason) }
	}
	var limited http.Handler = api
	limited = backpressureMiddleware(limited, rt.opts.MaxInFlight, rt.opts.BackpressureWait, onReject)
	limited = rateLimitMiddleware(limited, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, onReject)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("/v1/", limited)
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": rt.sessions.Len()})
}

type sessionView struct {
	SessionID      string          `json:"session_id"`
	ActiveThreadID string          `json:"active_thread_id"`
	Threads        []domain.Thread `json:"threads"`
}

func viewOf(registry *usecase.ConversationRegistry) sessionView {
	return sessionView{
		SessionID:      registry.SessionID(),
		ActiveThreadID: registry.ActiveID(),
		Threads:        registry.Threads(),
	}
}

func (rt *Router) createSession(w http.ResponseWriter, _ *http.Request) {
	registry := rt.sessions.Create()
	writeJSON(w, http.StatusCreated, viewOf(registry))
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	registry, ok := rt.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(registry))
}

// transcript reads from durable storage, so it works after the in-memory session expired.
func (rt *Router) transcript(w http.ResponseWriter, r *http.Request) {
	if rt.opts.Transcripts == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transcripts are not enabled"})
		return
	}
	sessionID := r.PathValue("id")
	threads, err := rt.opts.Transcripts.ListThreads(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(threads) == 0 {
		writeError(w, r, domain.WrapError(domain.ErrSessionNotFound, "transcript", fmt.Errorf("no transcript for session %s", sessionID)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "threads": threads})
}

func (rt *Router) createThread(w http.ResponseWriter, r *http.Request) {
	registry, ok := rt.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, registry.CreateThread())
}

func (rt *Router) getThread(w http.ResponseWriter, r *http.Request) {
	registry, ok := rt.session(w, r)
	if !ok {
		return
	}
	thread, err := registry.Thread(r.PathValue("tid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (rt *Router) activateThread(w http.ResponseWriter, r *http.Request) {
	registry, ok := rt.session(w, r)
	if !ok {
		return
	}
	if err := registry.SwitchThread(r.PathValue("tid")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(registry))
}

func (rt *Router) clearThread(w http.ResponseWriter, r *http.Request) {
	registry, ok := rt.session(w, r)
	if !ok {
		return
	}
	tid := r.PathValue("tid")
	if err := registry.ClearThread(tid); err != nil {
		writeError(w, r, err)
		return
	}
	thread, err := registry.Thread(tid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (rt *Router) deleteThread(w http.ResponseWriter, r *http.Request) {
	registry, ok := rt.session(w, r)
	if !ok {
		return
	}
	if err := registry.DeleteThread(r.PathValue("tid")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(registry))
}

type askRequest struct {
	Question       string `json:"question"`
	Mode           string `json:"mode"`
	TopK           int    `json:"top_k"`
	IncludeContext bool   `json:"include_context"`
}

type askResponse struct {
	ThreadID string                `json:"thread_id"`
	Question string                `json:"question,omitempty"`
	Mode     domain.RetrievalMode  `json:"mode,omitempty"`
	Answer   string                `json:"answer"`
	Outcome  domain.AnswerOutcome  `json:"outcome,omitempty"`
	Cleared  bool                  `json:"cleared,omitempty"`
	Hits     []domain.RetrievalHit `json:"hits,omitempty"`
	Contexts []domain.Passage      `json:"contexts,omitempty"`
	Thread   domain.Thread         `json:"thread"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	registry, ok := rt.session(w, r)
	if !ok {
		return
	}

	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	if usecase.IsExitCommand(req.Question) {
		threadID := registry.ActiveID()
		if err := registry.ClearThread(threadID); err != nil {
			writeError(w, r, err)
			return
		}
		thread, err := registry.Thread(threadID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, askResponse{ThreadID: threadID, Cleared: true, Thread: thread})
		return
	}

	var opts domain.AskOptions
	if req.Mode != "" {
		mode, err := domain.ParseRetrievalMode(req.Mode)
		if err != nil {
			writeError(w, r, err)
			return
		}
		opts.Mode = mode
	}
	if req.TopK < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top_k must be positive"})
		return
	}
	opts.TopK = req.TopK

	turn, err := rt.chat.AskWith(r.Context(), registry, req.Question, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := askResponse{
		ThreadID: turn.ThreadID,
		Question: turn.Question,
		Mode:     turn.Mode,
		Answer:   turn.Display,
		Outcome:  turn.Answer.Outcome,
		Thread:   turn.Thread,
	}
	if req.IncludeContext {
		resp.Hits = turn.Hits
		resp.Contexts = turn.Contexts
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) session(w http.ResponseWriter, r *http.Request) (*usecase.ConversationRegistry, bool) {
	registry, err := rt.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return registry, true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	body := map[string]string{"error": err.Error()}
	for _, kind := range []error{domain.ErrSessionNotFound, domain.ErrUnknownThread, domain.ErrInvalidInput} {
		if errors.Is(err, kind) {
			body["error"] = kind.Error()
			body["detail"] = err.Error()
			break
		}
	}
	if status >= http.StatusInternalServerError {
		body["error"] = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
