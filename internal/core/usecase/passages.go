package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

// PassageStore is the read-only in-memory corpus. It is safe for concurrent reads once built.
type PassageStore struct {
	byID     map[string]domain.Passage
	passages []domain.Passage
}

func NewPassageStore(passages []domain.Passage) (*PassageStore, error) {
	store := &PassageStore{
		byID:     make(map[string]domain.Passage, len(passages)),
		passages: make([]domain.Passage, 0, len(passages)),
	}
	for _, p := range passages {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "load passages", fmt.Errorf("passage with empty id"))
		}
		if _, exists := store.byID[id]; exists {
			return nil, domain.WrapError(domain.ErrInvalidInput, "load passages", fmt.Errorf("duplicate passage id %q", id))
		}
		p.ID = id
		store.byID[id] = p
		store.passages = append(store.passages, p)
	}
	return store, nil
}

func (s *PassageStore) Get(id string) (domain.Passage, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// All returns the corpus in load order.
func (s *PassageStore) All() []domain.Passage {
	out := make([]domain.Passage, len(s.passages))
	copy(out, s.passages)
	return out
}

func (s *PassageStore) Len() int {
	return len(s.passages)
}

// ContextAssembler resolves retrieval hits into passage text.
type ContextAssembler struct {
	store *PassageStore
}

func NewContextAssembler(store *PassageStore) *ContextAssembler {
	return &ContextAssembler{store: store}
}

// AssemblePassages keeps hit order and drops hits whose passage is not in the store.
func (a *ContextAssembler) AssemblePassages(hits []domain.RetrievalHit) []domain.Passage {
	out := make([]domain.Passage, 0, len(hits))
	for _, hit := range hits {
		p, ok := a.store.Get(hit.PassageID)
		if !ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Assemble returns the text of AssemblePassages, the form the generator consumes.
func (a *ContextAssembler) Assemble(hits []domain.RetrievalHit) []string {
	return PassageTexts(a.AssemblePassages(hits))
}

func PassageTexts(passages []domain.Passage) []string {
	out := make([]string, 0, len(passages))
	for _, p := range passages {
		out = append(out, p.Text)
	}
	return out
}
