package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
)

// Strategy is one retrieval variant. Implementations own their index lifecycle.
type Strategy interface {
	Mode() domain.RetrievalMode
	Search(ctx context.Context, query string, topK int) ([]domain.RetrievalHit, error)
}

// IndexBuildObserver is notified after a lazy index build attempt.
type IndexBuildObserver interface {
	ObserveIndexBuild(mode domain.RetrievalMode, duration time.Duration, err error)
}

// LazyStrategy builds its backing index from the corpus the first time it is needed.
type LazyStrategy struct {
	mode     domain.RetrievalMode
	backend  ports.SearchBackend
	store    *PassageStore
	observer IndexBuildObserver

	mu    sync.Mutex
	ready bool
}

func NewLazyStrategy(mode domain.RetrievalMode, backend ports.SearchBackend, store *PassageStore) *LazyStrategy {
	return &LazyStrategy{
		mode:    mode,
		backend: backend,
		store:   store,
	}
}

// WithObserver attaches a build observer and returns the strategy.
func (s *LazyStrategy) WithObserver(observer IndexBuildObserver) *LazyStrategy {
	s.observer = observer
	return s
}

func (s *LazyStrategy) Mode() domain.RetrievalMode {
	return s.mode
}

func (s *LazyStrategy) Search(ctx context.Context, query string, topK int) ([]domain.RetrievalHit, error) {
	if err := s.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	hits, err := s.backend.Search(ctx, query, topK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, fmt.Sprintf("search %s index", s.mode), err)
	}
	return hits, nil
}

// EnsureIndex runs the build-if-absent step at most once per strategy. Concurrent callers
// wait on the same lock, so the check-then-create sequence is never re-entered.
func (s *LazyStrategy) EnsureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	exists, err := s.backend.IndexExists(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrRetrievalUnavailable, fmt.Sprintf("check %s index", s.mode), err)
	}
	if !exists {
		if err := s.build(ctx); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

func (s *LazyStrategy) build(ctx context.Context) error {
	slog.Info("retrieval_index_build", "mode", s.mode, "passages", s.store.Len())
	start := time.Now()
	err := s.backend.BuildIndex(ctx, s.store.All())
	if s.observer != nil {
		s.observer.ObserveIndexBuild(s.mode, time.Since(start), err)
	}
	if err != nil {
		slog.Error("retrieval_index_build_failed", "mode", s.mode, "error", err)
		return domain.WrapError(domain.ErrRetrievalUnavailable, fmt.Sprintf("build %s index", s.mode), err)
	}
	slog.Info("retrieval_index_ready", "mode", s.mode, "duration_ms", float64(time.Since(start).Microseconds())/1000.0)
	return nil
}

// Retriever dispatches a query to the strategy bound to the requested mode.
type Retriever struct {
	strategies map[domain.RetrievalMode]Strategy
}

func NewRetriever(strategies ...Strategy) *Retriever {
	r := &Retriever{strategies: make(map[domain.RetrievalMode]Strategy, len(strategies))}
	for _, s := range strategies {
		if s == nil {
			continue
		}
		r.strategies[s.Mode()] = s
	}
	return r
}

func (r *Retriever) Search(ctx context.Context, query string, mode domain.RetrievalMode, topK int) ([]domain.RetrievalHit, error) {
	if err := validateSearch(query, mode, topK); err != nil {
		return nil, err
	}
	strategy, ok := r.strategies[mode]
	if !ok {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "retriever search", fmt.Errorf("no strategy configured for mode %q", mode))
	}

	hits, err := strategy.Search(ctx, strings.TrimSpace(query), topK)
	if err != nil {
		if domain.IsKind(err, domain.ErrRetrievalUnavailable) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "retriever search", err)
	}
	return normalizeHits(hits, topK), nil
}

// Warm eagerly runs the lazy build for the given modes.
func (r *Retriever) Warm(ctx context.Context, modes ...domain.RetrievalMode) error {
	for _, mode := range modes {
		strategy, ok := r.strategies[mode]
		if !ok {
			return domain.WrapError(domain.ErrInvalidInput, "warm index", fmt.Errorf("no strategy configured for mode %q", mode))
		}
		lazy, ok := strategy.(*LazyStrategy)
		if !ok {
			continue
		}
		if err := lazy.EnsureIndex(ctx); err != nil {
			return err
		}
	}
	return nil
}

func validateSearch(query string, mode domain.RetrievalMode, topK int) error {
	if strings.TrimSpace(query) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "retriever search", fmt.Errorf("query is required"))
	}
	if topK < 1 {
		return domain.WrapError(domain.ErrInvalidInput, "retriever search", fmt.Errorf("top_k must be >= 1, got %d", topK))
	}
	if !mode.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "retriever search", fmt.Errorf("unsupported retrieval mode %q", mode))
	}
	return nil
}

func normalizeHits(hits []domain.RetrievalHit, topK int) []domain.RetrievalHit {
	out := make([]domain.RetrievalHit, 0, len(hits))
	for _, hit := range hits {
		if hit.PassageID == "" {
			continue
		}
		out = append(out, hit)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}
