package usecase

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

const threadIDLength = 8

// RegistryObserver receives registry mutations after they are applied, one at a time and in
// the order they were applied. Implementations must not call back into the registry.
type RegistryObserver interface {
	ThreadSaved(sessionID string, thread domain.Thread)
	MessageAppended(sessionID, threadID string, msg domain.Message)
	ThreadCleared(sessionID, threadID string)
	ThreadDeleted(sessionID, threadID string)
}

type RegistryOption func(*ConversationRegistry)

func WithRegistryObserver(observer RegistryObserver) RegistryOption {
	return func(r *ConversationRegistry) {
		r.observer = observer
	}
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *ConversationRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

func WithThreadIDs(newID func() string) RegistryOption {
	return func(r *ConversationRegistry) {
		if newID != nil {
			r.newID = newID
		}
	}
}

type threadState struct {
	id       string
	name     string
	messages []domain.Message
}

// ConversationRegistry is the session-scoped set of conversation threads. Exactly one thread
// is active at any time and the registry is never empty.
type ConversationRegistry struct {
	sessionID string
	observer  RegistryObserver
	now       func() time.Time
	newID     func() string

	// notifyMu is acquired before mu is released, so observer calls keep mutation order.
	notifyMu sync.Mutex

	mu       sync.Mutex
	threads  map[string]*threadState
	order    []string
	activeID string
}

func NewConversationRegistry(sessionID string, opts ...RegistryOption) *ConversationRegistry {
	r := &ConversationRegistry{
		sessionID: sessionID,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     newThreadID,
		threads:   make(map[string]*threadState),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.mu.Lock()
	created := r.ensureActiveLocked()
	r.unlockAndNotify(r.savedEvent(created))
	return r
}

func (r *ConversationRegistry) SessionID() string {
	return r.sessionID
}

// CreateThread adds an empty thread, activates it and returns it.
func (r *ConversationRegistry) CreateThread() domain.Thread {
	r.mu.Lock()
	t := r.createLocked()
	snapshot := r.snapshotLocked(t)
	r.unlockAndNotify(r.savedEvent(&snapshot))
	return snapshot
}

func (r *ConversationRegistry) SwitchThread(threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.threads[threadID]; !ok {
		return unknownThread("switch thread", threadID)
	}
	r.activeID = threadID
	return nil
}

// AppendMessage appends to the named thread whether or not it is active.
func (r *ConversationRegistry) AppendMessage(threadID string, msg domain.Message) error {
	r.mu.Lock()
	t, ok := r.threads[threadID]
	if !ok {
		r.mu.Unlock()
		return unknownThread("append message", threadID)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now()
	}
	t.messages = append(t.messages, msg)
	r.unlockAndNotify(func(o RegistryObserver) { o.MessageAppended(r.sessionID, threadID, msg) })
	return nil
}

// ClearThread empties the message log; identity, name and active status are kept.
func (r *ConversationRegistry) ClearThread(threadID string) error {
	r.mu.Lock()
	t, ok := r.threads[threadID]
	if !ok {
		r.mu.Unlock()
		return unknownThread("clear thread", threadID)
	}
	t.messages = nil
	r.unlockAndNotify(func(o RegistryObserver) { o.ThreadCleared(r.sessionID, threadID) })
	return nil
}

// DeleteThread removes a thread. Removing the active thread creates a fresh active thread.
func (r *ConversationRegistry) DeleteThread(threadID string) error {
	r.mu.Lock()
	if _, ok := r.threads[threadID]; !ok {
		r.mu.Unlock()
		return unknownThread("delete thread", threadID)
	}
	delete(r.threads, threadID)
	for i, id := range r.order {
		if id == threadID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	created := r.ensureActiveLocked()
	r.unlockAndNotify(
		func(o RegistryObserver) { o.ThreadDeleted(r.sessionID, threadID) },
		r.savedEvent(created),
	)
	return nil
}

func (r *ConversationRegistry) ActiveID() string {
	r.mu.Lock()
	created := r.ensureActiveLocked()
	id := r.activeID
	r.unlockAndNotify(r.savedEvent(created))
	return id
}

func (r *ConversationRegistry) Active() domain.Thread {
	r.mu.Lock()
	created := r.ensureActiveLocked()
	snapshot := r.snapshotLocked(r.threads[r.activeID])
	r.unlockAndNotify(r.savedEvent(created))
	return snapshot
}

func (r *ConversationRegistry) Thread(threadID string) (domain.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.threads[threadID]
	if !ok {
		return domain.Thread{}, unknownThread("get thread", threadID)
	}
	return r.snapshotLocked(t), nil
}

// Threads returns every thread in creation order.
func (r *ConversationRegistry) Threads() []domain.Thread {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Thread, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.snapshotLocked(r.threads[id]))
	}
	return out
}

// ensureActiveLocked restores the invariant when the registry is empty or the active id is stale.
func (r *ConversationRegistry) ensureActiveLocked() *domain.Thread {
	if _, ok := r.threads[r.activeID]; ok {
		return nil
	}
	t := r.createLocked()
	snapshot := r.snapshotLocked(t)
	return &snapshot
}

func (r *ConversationRegistry) createLocked() *threadState {
	id := r.newID()
	for attempt := 0; r.threads[id] != nil || id == ""; attempt++ {
		if attempt > 16 {
			id = strings.ReplaceAll(uuid.NewString(), "-", "")
			continue
		}
		id = r.newID()
	}

	t := &threadState{
		id:   id,
		name: fmt.Sprintf("Thread %d", len(r.threads)+1),
	}
	r.threads[id] = t
	r.order = append(r.order, id)
	r.activeID = id
	return t
}

func (r *ConversationRegistry) snapshotLocked(t *threadState) domain.Thread {
	messages := make([]domain.Message, len(t.messages))
	copy(messages, t.messages)
	return domain.Thread{
		ID:       t.id,
		Name:     t.name,
		Active:   t.id == r.activeID,
		Messages: messages,
	}
}

// unlockAndNotify releases mu, which the caller holds, and delivers events in order. Nil
// events are skipped.
func (r *ConversationRegistry) unlockAndNotify(events ...func(RegistryObserver)) {
	if r.observer == nil {
		r.mu.Unlock()
		return
	}
	r.notifyMu.Lock()
	r.mu.Unlock()
	defer r.notifyMu.Unlock()

	for _, event := range events {
		if event != nil {
			event(r.observer)
		}
	}
}

func (r *ConversationRegistry) savedEvent(thread *domain.Thread) func(RegistryObserver) {
	if thread == nil {
		return nil
	}
	saved := *thread
	return func(o RegistryObserver) { o.ThreadSaved(r.sessionID, saved) }
}

func unknownThread(operation, threadID string) error {
	return domain.WrapError(domain.ErrUnknownThread, operation, fmt.Errorf("thread id %q", threadID))
}

func newThreadID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:threadIDLength]
}
