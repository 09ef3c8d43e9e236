package models

import (
	"fmt"
	"strings"
)

// SortKey selects the ordering applied to flat paper lists.
type SortKey string

const (
	SortDateDesc  SortKey = "date-desc"
	SortDateAsc   SortKey = "date-asc"
	SortTitleAsc  SortKey = "title-asc"
	SortTitleDesc SortKey = "title-desc"
)

// ParseSortKey parses s; an empty string selects SortDateDesc.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortDateDesc, nil
	case SortDateDesc, SortDateAsc, SortTitleAsc, SortTitleDesc:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown sort key %q", ErrInvalidInput, s)
	}
}

const (
	DefaultSearchResults = 5
	MaxSearchResults     = 100
)

// SearchQuery is a plain (non-watch) paper search.
type SearchQuery struct {
	Query      string   `json:"query"`
	Categories []string `json:"categories,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
	// SinceDays limits results to papers published in the last N days (0 = no limit).
	SinceDays          int     `json:"since_days,omitempty"`
	Sort               SortKey `json:"sort,omitempty"`
	UseJapaneseSummary bool    `json:"use_japanese_summary,omitempty"`
}

// Validate ensures the query has a search term or a category and normalizes limits and sort key.
func (q *SearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	q.Categories = NormalizeCategories(q.Categories)
	if q.Query == "" && len(q.Categories) == 0 {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidInput)
	}
	if q.MaxResults <= 0 {
		q.MaxResults = DefaultSearchResults
	}
	if q.MaxResults > MaxSearchResults {
		q.MaxResults = MaxSearchResults
	}
	if q.SinceDays < 0 {
		return fmt.Errorf("%w: since_days must not be negative", ErrInvalidInput)
	}
	key, err := ParseSortKey(string(q.Sort))
	if err != nil {
		return err
	}
	q.Sort = key
	return nil
}
