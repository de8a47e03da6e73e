// Package search dispatches validated queries to the configured backend.
// Search is best-effort: backend failures downgrade to empty results rather
// than surfacing errors, favoring availability over completeness.
package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/grahmos/edge-gateway/internal/domain"
	"github.com/grahmos/edge-gateway/internal/metrics"
)

// DefaultBackendTimeout bounds every backend call; a timeout surfaces as a
// backend-unavailable condition.
const DefaultBackendTimeout = 8 * time.Second

// Service is the backend-agnostic dispatcher. The backend is resolved once
// at startup and injected; no ambient process state is consulted per call.
type Service struct {
	backend     domain.SearchBackend
	timeout     time.Duration
	logger      *zap.Logger
	initialized atomic.Bool
	cleaned     atomic.Bool
}

// New creates a dispatcher around the configured backend.
func New(backend domain.SearchBackend, logger *zap.Logger) *Service {
	return &Service{
		backend: backend,
		timeout: DefaultBackendTimeout,
		logger:  logger,
	}
}

// WithTimeout overrides the backend call timeout.
func (s *Service) WithTimeout(timeout time.Duration) *Service {
	if timeout > 0 {
		s.timeout = timeout
	}
	return s
}

// Initialize readies the backend. Safe to invoke more than once.
func (s *Service) Initialize(ctx context.Context) error {
	if !s.initialized.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.backend.Initialize(ctx); err != nil {
		s.initialized.Store(false)
		return fmt.Errorf("initialize backend: %w", err)
	}
	return nil
}

// Cleanup releases the backend. Safe to invoke more than once.
func (s *Service) Cleanup(ctx context.Context) error {
	if !s.cleaned.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.backend.Cleanup(ctx); err != nil {
		return fmt.Errorf("cleanup backend: %w", err)
	}
	return nil
}

// Search clamps the query and dispatches it. Backend failures return an
// empty result list, never an error.
func (s *Service) Search(ctx context.Context, q domain.SearchQuery) []domain.SearchResult {
	q = q.Clamped()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.backend.Search(ctx, q)
	if err != nil {
		s.logger.Warn("search backend failed, returning empty results",
			zap.String("query", q.Text),
			zap.Error(err),
		)
		metrics.SearchSoftFailTotal.Inc()
		return []domain.SearchResult{}
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	return results
}

// GetDocument fetches a document by id. Returns (nil, nil) when absent;
// backend failures other than not-found propagate.
func (s *Service) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := s.backend.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// Status probes the backend. A failing probe degrades to healthy=false with
// the error message; it never fails the call.
func (s *Service) Status(ctx context.Context) domain.BackendStatus {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status, err := s.backend.Status(ctx)
	if err != nil {
		s.logger.Warn("backend status probe failed", zap.Error(err))
		return domain.BackendStatus{Healthy: false, Error: err.Error()}
	}
	return status
}
