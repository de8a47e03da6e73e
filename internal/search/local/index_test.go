package local

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/grahmos/edge-gateway/internal/domain"
)

func seedIndex(t *testing.T) *Index {
	t.Helper()
	idx := New("")
	idx.Add(SeedDocument{
		ID:       "water-1",
		Title:    "Water purification basics",
		Content:  "Boil water for one minute to make it safe to drink.",
		Priority: "high",
		Metadata: map[string]string{"category": "survival"},
	})
	idx.Add(SeedDocument{
		ID:      "shelter-1",
		Title:   "Building emergency shelter",
		Content: "A lean-to shelter blocks wind and keeps rain off.",
	})
	idx.Add(SeedDocument{
		ID:       "radio-1",
		Title:    "Mesh radio setup",
		Content:  "Configure the mesh radio before the network degrades. Water resistance matters.",
		Priority: "medium",
	})
	return idx
}

func TestSearch_Ranking(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Search(context.Background(),
		domain.SearchQuery{Text: "water purification", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	// water-1 matches both terms in the title; radio-1 matches one in content.
	if results[0].ID != "water-1" || results[1].ID != "radio-1" {
		t.Fatalf("order = [%s %s], want [water-1 radio-1]", results[0].ID, results[1].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %f <= %f", results[0].Score, results[1].Score)
	}
}

func TestSearch_ScoreCappedAtOne(t *testing.T) {
	idx := seedIndex(t)

	// Full term match, high priority, title hit: raw boost product exceeds 1.
	results, err := idx.Search(context.Background(),
		domain.SearchQuery{Text: "water purification", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected a match")
	}
	if results[0].Score > 1.0 {
		t.Errorf("score = %f, must not exceed 1.0", results[0].Score)
	}
}

func TestSearch_PartialMatchScore(t *testing.T) {
	idx := New("")
	idx.Add(SeedDocument{
		ID:      "doc-1",
		Title:   "Unrelated",
		Content: "alpha beta",
	})

	// One of two query terms matches, no boosts.
	results, err := idx.Search(context.Background(),
		domain.SearchQuery{Text: "alpha gamma", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if math.Abs(results[0].Score-0.5) > 1e-9 {
		t.Errorf("score = %f, want 0.5", results[0].Score)
	}
}

func TestSearch_MinScoreCutoff(t *testing.T) {
	idx := New("").WithMinScore(0.6)
	idx.Add(SeedDocument{ID: "doc-1", Title: "x", Content: "alpha"})

	// 1 of 3 terms matched scores ~0.33, below the cutoff.
	results, err := idx.Search(context.Background(),
		domain.SearchQuery{Text: "alpha beta gamma", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %d, want 0 below cutoff", len(results))
	}
}

func TestSearch_TieKeepsInsertionOrder(t *testing.T) {
	idx := New("")
	idx.Add(SeedDocument{ID: "first", Title: "alpha", Content: ""})
	idx.Add(SeedDocument{ID: "second", Title: "alpha", Content: ""})

	results, err := idx.Search(context.Background(), domain.SearchQuery{Text: "alpha", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].ID != "first" || results[1].ID != "second" {
		t.Fatalf("order = %v, want insertion order on ties", results)
	}
}

func TestSearch_Pagination(t *testing.T) {
	idx := New("")
	for _, id := range []string{"a", "b", "c", "d"} {
		idx.Add(SeedDocument{ID: id, Title: "alpha", Content: ""})
	}

	page, err := idx.Search(context.Background(),
		domain.SearchQuery{Text: "alpha", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page) != 2 || page[0].ID != "b" || page[1].ID != "c" {
		t.Fatalf("page = %v, want [b c]", page)
	}

	past, err := idx.Search(context.Background(),
		domain.SearchQuery{Text: "alpha", Limit: 2, Offset: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(past) != 0 {
		t.Fatalf("offset past end = %d results, want 0", len(past))
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Search(context.Background(), domain.SearchQuery{Text: "   ", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %d, want 0 for an empty query", len(results))
	}
}

func TestSearch_CaseInsensitive(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Search(context.Background(), domain.SearchQuery{Text: "WATER", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected case-insensitive match")
	}
}

func TestGetDocument(t *testing.T) {
	idx := seedIndex(t)

	doc, err := idx.GetDocument(context.Background(), "water-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc == nil || doc.Title != "Water purification basics" {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.Metadata["category"] != "survival" {
		t.Errorf("metadata = %v", doc.Metadata)
	}

	missing, err := idx.GetDocument(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for an unknown id")
	}
}

func TestAdd_DuplicateIgnored(t *testing.T) {
	idx := New("")
	idx.Add(SeedDocument{ID: "doc-1", Title: "original", Content: ""})
	idx.Add(SeedDocument{ID: "doc-1", Title: "replacement", Content: ""})

	doc, err := idx.GetDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Title != "original" {
		t.Errorf("title = %q, duplicate add must be ignored", doc.Title)
	}
}

func TestInitialize_SeedFile(t *testing.T) {
	seed := `
- id: doc-1
  title: Water purification
  content: Boil it.
  priority: high
- id: doc-2
  title: First aid
  content: Pressure stops bleeding.
`
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	idx := New(path)
	if err := idx.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	status, err := idx.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.IndexSize != 2 {
		t.Errorf("indexSize = %d, want 2", status.IndexSize)
	}
	if !status.Healthy || status.Version != Version {
		t.Errorf("status = %+v", status)
	}
}

func TestInitialize_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		idx := New(filepath.Join(t.TempDir(), "absent.yaml"))
		if err := idx.Initialize(context.Background()); err == nil {
			t.Fatal("expected error for a missing seed file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.yaml")
		if err := os.WriteFile(path, []byte("{not yaml"), 0o600); err != nil {
			t.Fatalf("write seed: %v", err)
		}
		idx := New(path)
		if err := idx.Initialize(context.Background()); err == nil {
			t.Fatal("expected error for malformed yaml")
		}
	})
}

func TestCleanup(t *testing.T) {
	idx := seedIndex(t)

	if err := idx.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	status, err := idx.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.IndexSize != 0 {
		t.Errorf("indexSize = %d after cleanup, want 0", status.IndexSize)
	}
}
