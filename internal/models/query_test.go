package models

import (
	"errors"
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *SearchQuery
		wantErr bool
	}{
		{"empty query", &SearchQuery{Query: ""}, true},
		{"blank query", &SearchQuery{Query: "   "}, true},
		{"valid query", &SearchQuery{Query: "transformer"}, false},
		{"categories only", &SearchQuery{Categories: []string{"cs.CL"}}, false},
		{"sets default limit", &SearchQuery{Query: "x", MaxResults: 0}, false},
		{"caps limit at 100", &SearchQuery{Query: "x", MaxResults: 200}, false},
		{"negative since days", &SearchQuery{Query: "x", SinceDays: -1}, true},
		{"unknown sort", &SearchQuery{Query: "x", Sort: "relevance"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Validate() error should wrap ErrInvalidInput, got %v", err)
			}
			if !tt.wantErr {
				if tt.query.MaxResults == 0 {
					t.Error("expected default limit to be set")
				}
				if tt.query.MaxResults > MaxSearchResults {
					t.Errorf("expected limit capped at %d, got %d", MaxSearchResults, tt.query.MaxResults)
				}
				if tt.query.Sort != SortDateDesc {
					t.Errorf("expected default sort date-desc, got %q", tt.query.Sort)
				}
			}
		})
	}
}

func TestParseSortKey(t *testing.T) {
	tests := []struct {
		in      string
		want    SortKey
		wantErr bool
	}{
		{"", SortDateDesc, false},
		{"date-desc", SortDateDesc, false},
		{"DATE-ASC", SortDateAsc, false},
		{" title-asc ", SortTitleAsc, false},
		{"title-desc", SortTitleDesc, false},
		{"score", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSortKey(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSortKey(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSortKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
