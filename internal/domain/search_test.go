package domain

import "testing"

func TestSearchQuery_Clamped(t *testing.T) {
	tests := []struct {
		name       string
		in         SearchQuery
		wantLimit  int
		wantOffset int
	}{
		{"limit over max", SearchQuery{Limit: 500}, 100, 0},
		{"limit at max", SearchQuery{Limit: 100}, 100, 0},
		{"zero limit defaults", SearchQuery{}, DefaultSearchLimit, 0},
		{"negative limit defaults", SearchQuery{Limit: -1}, DefaultSearchLimit, 0},
		{"negative offset", SearchQuery{Limit: 10, Offset: -5}, 10, 0},
		{"valid untouched", SearchQuery{Limit: 50, Offset: 20}, 50, 20},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Clamped()
			if got.Limit != tc.wantLimit {
				t.Errorf("limit: got %d, want %d", got.Limit, tc.wantLimit)
			}
			if got.Offset != tc.wantOffset {
				t.Errorf("offset: got %d, want %d", got.Offset, tc.wantOffset)
			}
		})
	}
}
