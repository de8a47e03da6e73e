// Package remote implements the search backend contract by delegating to a
// JSON-over-HTTP search service.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/grahmos/edge-gateway/internal/domain"
)

// DefaultTimeout bounds every call to the remote service.
const DefaultTimeout = 8 * time.Second

const snippetLength = 200

// Score heuristic constants. The remote service exposes no native relevance
// score, so one is estimated from match counts.
const (
	scoreBase       = 0.5
	scorePerMatch   = 0.1
	scoreMatchCeil  = 0.4
	scoreTitleBonus = 0.3
)

// Backend delegates search operations to a remote service.
type Backend struct {
	baseURL string
	httpc   *http.Client
}

// Compile-time check: Backend implements the backend contract.
var _ domain.SearchBackend = (*Backend)(nil)

// New creates a remote backend for the given base URL.
func New(baseURL string) *Backend {
	return &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: DefaultTimeout},
	}
}

// WithTimeout overrides the HTTP client timeout.
func (b *Backend) WithTimeout(timeout time.Duration) *Backend {
	if timeout > 0 {
		b.httpc.Timeout = timeout
	}
	return b
}

// remoteHit is the remote service's result shape.
type remoteHit struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Highlight string            `json:"highlight"`
	Metadata  map[string]string `json:"metadata"`
}

type searchResponse struct {
	Results []remoteHit `json:"results"`
	Total   int         `json:"total"`
}

// Initialize probes the remote service once so a misconfigured URL fails at
// startup rather than on the first query.
func (b *Backend) Initialize(ctx context.Context) error {
	_, err := b.Status(ctx)
	if err != nil {
		return fmt.Errorf("remote backend unreachable: %w", err)
	}
	return nil
}

// Cleanup releases pooled connections. Idempotent.
func (b *Backend) Cleanup(_ context.Context) error {
	b.httpc.CloseIdleConnections()
	return nil
}

// Search queries the remote service and estimates a relevance score per hit.
func (b *Backend) Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))

	var resp searchResponse
	if err := b.getJSON(ctx, "/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	terms := queryTerms(q.Text)
	results := make([]domain.SearchResult, 0, len(resp.Results))
	for _, hit := range resp.Results {
		results = append(results, domain.SearchResult{
			ID:       hit.ID,
			Title:    hit.Title,
			Snippet:  snippetOf(hit),
			Score:    estimateScore(hit, terms),
			Metadata: hit.Metadata,
		})
	}
	return results, nil
}

// GetDocument fetches one document. The remote 404 maps to (nil, nil).
func (b *Backend) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		b.baseURL+"/documents/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}

	var doc domain.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

// Status probes the remote service's own status endpoint.
func (b *Backend) Status(ctx context.Context) (domain.BackendStatus, error) {
	var remote struct {
		Version   string `json:"version"`
		IndexSize int    `json:"indexSize"`
	}
	if err := b.getJSON(ctx, "/status", &remote); err != nil {
		return domain.BackendStatus{}, err
	}
	return domain.BackendStatus{
		Healthy:   true,
		Version:   remote.Version,
		IndexSize: remote.IndexSize,
	}, nil
}

func (b *Backend) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := b.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// snippetOf prefers the service's highlighted fragment, falls back to a
// truncation of the raw content, then to the title.
func snippetOf(hit remoteHit) string {
	if hit.Highlight != "" {
		return hit.Highlight
	}
	if hit.Content != "" {
		if len(hit.Content) <= snippetLength {
			return hit.Content
		}
		return hit.Content[:snippetLength] + "…"
	}
	return hit.Title
}

// estimateScore substitutes for a native relevance score:
// base 0.5 + 0.1 per matched term (capped at 0.4) + 0.3 for a title match,
// capped at 1.0.
func estimateScore(hit remoteHit, terms []string) float64 {
	content := strings.ToLower(hit.Content)
	title := strings.ToLower(hit.Title)

	matches := 0
	titleHit := false
	for _, t := range terms {
		if strings.Contains(content, t) {
			matches++
		}
		if strings.Contains(title, t) {
			titleHit = true
		}
	}

	score := scoreBase + min(float64(matches)*scorePerMatch, scoreMatchCeil)
	if titleHit {
		score += scoreTitleBonus
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func queryTerms(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
