// Package local implements the search backend contract over an in-process
// inverted index. Suited to edge nodes that must answer queries with no
// upstream connectivity.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/grahmos/edge-gateway/internal/domain"
)

// Version reported by the status probe.
const Version = "local/1.0"

// DefaultMinScore excludes results with negligible relevance.
const DefaultMinScore = 0.1

const snippetLength = 160

// Relevance boosts. Priority comes from the document itself, the title
// boost from query terms appearing in the title.
const (
	boostNone   = 1.0
	boostMedium = 1.2
	boostHigh   = 1.5
	boostTitle  = 1.3
)

// SeedDocument is the on-disk document shape loaded at initialization.
type SeedDocument struct {
	ID       string            `yaml:"id" json:"id"`
	Title    string            `yaml:"title" json:"title"`
	Content  string            `yaml:"content" json:"content"`
	Priority string            `yaml:"priority" json:"priority"`
	Metadata map[string]string `yaml:"metadata" json:"metadata"`
}

type indexedDoc struct {
	doc        SeedDocument
	boost      float64
	titleTerms map[string]struct{}
	terms      map[string]struct{}
}

// Index is an inverted index over tokenized title and content fields.
type Index struct {
	mu          sync.RWMutex
	docs        []indexedDoc
	byID        map[string]int
	minScore    float64
	seedPath    string
	lastUpdated time.Time
}

// Compile-time check: Index implements the backend contract.
var _ domain.SearchBackend = (*Index)(nil)

// New creates an empty index. seedPath, when non-empty, names a YAML file of
// SeedDocuments loaded by Initialize.
func New(seedPath string) *Index {
	return &Index{
		byID:     make(map[string]int),
		minScore: DefaultMinScore,
		seedPath: seedPath,
	}
}

// WithMinScore overrides the relevance cutoff.
func (i *Index) WithMinScore(minScore float64) *Index {
	if minScore >= 0 {
		i.minScore = minScore
	}
	return i
}

// Initialize loads the seed corpus. Reloading an already-loaded corpus is a
// no-op for documents whose id is already indexed.
func (i *Index) Initialize(_ context.Context) error {
	if i.seedPath == "" {
		return nil
	}

	data, err := os.ReadFile(filepath.Clean(i.seedPath))
	if err != nil {
		return fmt.Errorf("read seed corpus: %w", err)
	}

	var seeds []SeedDocument
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("parse seed corpus: %w", err)
	}

	for _, d := range seeds {
		i.Add(d)
	}
	return nil
}

// Cleanup drops the index. Idempotent.
func (i *Index) Cleanup(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.docs = nil
	i.byID = make(map[string]int)
	return nil
}

// Add indexes a document. A document with an already-indexed id is ignored,
// preserving insertion order for tie-breaking.
func (i *Index) Add(d SeedDocument) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, exists := i.byID[d.ID]; exists || d.ID == "" {
		return
	}

	i.byID[d.ID] = len(i.docs)
	i.docs = append(i.docs, indexedDoc{
		doc:        d,
		boost:      priorityBoost(d.Priority),
		titleTerms: termSet(d.Title),
		terms:      termSet(d.Title + " " + d.Content),
	})
	i.lastUpdated = time.Now()
}

// Search ranks documents by term overlap with the query, boosted by document
// priority and title matches. Results sort descending by score; ties keep
// insertion order.
func (i *Index) Search(_ context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	queryTerms := tokenize(q.Text)
	if len(queryTerms) == 0 {
		return []domain.SearchResult{}, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	var results []domain.SearchResult
	for _, d := range i.docs {
		matched := 0
		titleHit := false
		for _, term := range queryTerms {
			if _, ok := d.terms[term]; ok {
				matched++
			}
			if _, ok := d.titleTerms[term]; ok {
				titleHit = true
			}
		}
		if matched == 0 {
			continue
		}

		score := float64(matched) / float64(len(queryTerms)) * d.boost
		if titleHit {
			score *= boostTitle
		}
		if score > 1.0 {
			score = 1.0
		}
		if score < i.minScore {
			continue
		}

		results = append(results, domain.SearchResult{
			ID:       d.doc.ID,
			Title:    d.doc.Title,
			Snippet:  snippet(d.doc.Content),
			Score:    score,
			Metadata: d.doc.Metadata,
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	return paginate(results, q.Offset, q.Limit), nil
}

// GetDocument returns the indexed document or (nil, nil) when absent.
func (i *Index) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	pos, ok := i.byID[id]
	if !ok {
		return nil, nil
	}
	d := i.docs[pos].doc
	return &domain.Document{
		ID:       d.ID,
		Title:    d.Title,
		Content:  d.Content,
		Metadata: d.Metadata,
	}, nil
}

// Status reports index health.
func (i *Index) Status(_ context.Context) (domain.BackendStatus, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return domain.BackendStatus{
		Healthy:     true,
		Version:     Version,
		IndexSize:   len(i.docs),
		LastUpdated: i.lastUpdated,
	}, nil
}

func priorityBoost(priority string) float64 {
	switch strings.ToLower(priority) {
	case "high":
		return boostHigh
	case "medium":
		return boostMedium
	default:
		return boostNone
	}
}

func snippet(content string) string {
	if len(content) <= snippetLength {
		return content
	}
	return content[:snippetLength] + "…"
}

func paginate(results []domain.SearchResult, offset, limit int) []domain.SearchResult {
	if offset >= len(results) {
		return []domain.SearchResult{}
	}
	results = results[offset:]
	if limit < len(results) {
		results = results[:limit]
	}
	return results
}
