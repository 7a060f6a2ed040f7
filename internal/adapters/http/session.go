package httpadapter

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/usecase"
)

const defaultSessionIdleExpiry = 30 * time.Minute

type sessionEntry struct {
	registry *usecase.ConversationRegistry
	lastSeen time.Time
}

// SessionManager owns the conversation registries of HTTP clients. Each session is an
// independent registry; nothing is shared between sessions.
type SessionManager struct {
	idleExpiry time.Duration
	now        func() time.Time
	newID      func() string
	options    []usecase.RegistryOption

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewSessionManager(idleExpiry time.Duration, options ...usecase.RegistryOption) *SessionManager {
	if idleExpiry <= 0 {
		idleExpiry = defaultSessionIdleExpiry
	}
	return &SessionManager{
		idleExpiry: idleExpiry,
		now:        time.Now,
		newID:      uuid.NewString,
		options:    options,
		sessions:   make(map[string]*sessionEntry),
	}
}

func (m *SessionManager) Create() *usecase.ConversationRegistry {
	id := m.newID()
	registry := usecase.NewConversationRegistry(id, m.options...)

	m.mu.Lock()
	m.sessions[id] = &sessionEntry{registry: registry, lastSeen: m.now()}
	m.mu.Unlock()

	slog.Info("session_created", "session_id", id)
	return registry
}

func (m *SessionManager) Get(id string) (*usecase.ConversationRegistry, error) {
	id = strings.TrimSpace(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok || m.expiredLocked(entry) {
		delete(m.sessions, id)
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("session id %q", id))
	}
	entry.lastSeen = m.now()
	return entry.registry, nil
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than the expiry and returns how many were removed.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.sessions {
		if m.expiredLocked(entry) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("sessions_expired", "removed", removed, "remaining", len(m.sessions))
	}
	return removed
}

// RunSweeper sweeps periodically until stop is closed.
func (m *SessionManager) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *SessionManager) expiredLocked(entry *sessionEntry) bool {
	return m.now().Sub(entry.lastSeen) > m.idleExpiry
}
