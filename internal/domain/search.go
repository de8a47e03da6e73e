package domain

import (
	"context"
	"time"
)

// Search query bounds enforced at the boundary.
const (
	MaxSearchLimit     = 100
	DefaultSearchLimit = 20
)

// SearchQuery is a validated full-text query. Raw client input is clamped
// through Clamped before it reaches any backend.
type SearchQuery struct {
	Text   string
	Limit  int
	Offset int
}

// Clamped returns a copy with limit forced into [0, MaxSearchLimit] and
// offset forced to be non-negative. A zero limit means DefaultSearchLimit.
func (q SearchQuery) Clamped() SearchQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Limit > MaxSearchLimit {
		q.Limit = MaxSearchLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// SearchResult is a single ranked hit. Score semantics are backend-defined
// but always land in [0, 1].
type SearchResult struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Snippet  string            `json:"snippet"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Document is a full retrievable document.
type Document struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// BackendStatus reports backend health. Probe failures degrade Healthy to
// false with Error set; they never propagate as a call failure.
type BackendStatus struct {
	Healthy     bool      `json:"healthy"`
	Version     string    `json:"version,omitempty"`
	IndexSize   int       `json:"indexSize,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitzero"`
	Error       string    `json:"error,omitempty"`
}

// SearchBackend is the capability contract every search backend satisfies.
// GetDocument returns (nil, nil) when the document does not exist.
// Initialize and Cleanup are invoked once at process start and shutdown and
// must tolerate repeated invocation.
type SearchBackend interface {
	Initialize(ctx context.Context) error
	Search(ctx context.Context, q SearchQuery) ([]SearchResult, error)
	GetDocument(ctx context.Context, id string) (*Document, error)
	Status(ctx context.Context) (BackendStatus, error)
	Cleanup(ctx context.Context) error
}
