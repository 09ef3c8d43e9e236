// Package models defines core data structures for papers, watched keywords, and match results.
package models

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// DayLayout is the date key format used for grouping papers by publication day.
const DayLayout = "2006-01-02"

// Paper is a normalized arXiv paper record.
type Paper struct {
	// ID is the arXiv identifier without version suffix (e.g. "2401.01234").
	ID string
	// EntryID is the provider's entry URL (e.g. "http://arxiv.org/abs/2401.01234v1").
	EntryID         string
	Title           string
	Authors         []string
	PrimaryCategory string
	// Categories always contains PrimaryCategory when it is set.
	Categories []string
	// Published is in UTC. The zero value means the date is unknown.
	Published time.Time
	// Summary is the English abstract.
	Summary   string
	TitleJA   string
	SummaryJA string
	PDFURL    string
	URL       string
}

type paperJSON struct {
	ID              string   `json:"id"`
	EntryID         string   `json:"entry_id,omitempty"`
	Title           string   `json:"title"`
	Authors         []string `json:"authors"`
	PrimaryCategory string   `json:"primary_category"`
	Categories      []string `json:"categories,omitempty"`
	Published       string   `json:"published,omitempty"`
	Summary         string   `json:"summary"`
	TitleJA         string   `json:"title_ja,omitempty"`
	SummaryJA       string   `json:"summary_ja,omitempty"`
	PDFURL          string   `json:"pdf_url"`
	URL             string   `json:"url"`
}

// MarshalJSON encodes Published as RFC3339 and omits it when unknown.
func (p Paper) MarshalJSON() ([]byte, error) {
	out := paperJSON{
		ID:              p.ID,
		EntryID:         p.EntryID,
		Title:           p.Title,
		Authors:         p.Authors,
		PrimaryCategory: p.PrimaryCategory,
		Categories:      p.Categories,
		Summary:         p.Summary,
		TitleJA:         p.TitleJA,
		SummaryJA:       p.SummaryJA,
		PDFURL:          p.PDFURL,
		URL:             p.URL,
	}
	if out.Authors == nil {
		out.Authors = []string{}
	}
	if !p.Published.IsZero() {
		out.Published = p.Published.UTC().Format(time.RFC3339)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts RFC3339 timestamps or plain YYYY-MM-DD dates for published.
// An unparseable published value leaves the date unknown rather than failing.
func (p *Paper) UnmarshalJSON(data []byte) error {
	var in paperJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = Paper{
		ID:              in.ID,
		EntryID:         in.EntryID,
		Title:           in.Title,
		Authors:         in.Authors,
		PrimaryCategory: in.PrimaryCategory,
		Categories:      in.Categories,
		Summary:         in.Summary,
		TitleJA:         in.TitleJA,
		SummaryJA:       in.SummaryJA,
		PDFURL:          in.PDFURL,
		URL:             in.URL,
	}
	p.Published = ParsePublished(in.Published)
	return nil
}

// ParsePublished parses an RFC3339 timestamp or a YYYY-MM-DD date into UTC.
// Returns the zero time when s is empty or cannot be parsed.
func ParsePublished(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// PublishedDay returns the UTC day key for the paper and whether the date is known.
func (p *Paper) PublishedDay() (string, bool) {
	if p.Published.IsZero() {
		return "", false
	}
	return p.Published.UTC().Format(DayLayout), true
}

// DedupKey returns the identity used to de-duplicate papers: the arXiv ID,
// or the abstract URL / title when the ID is missing.
func (p *Paper) DedupKey() string {
	switch {
	case p.ID != "":
		return p.ID
	case p.URL != "":
		return "url:" + p.URL
	default:
		return "title:" + p.Title + "@" + p.Published.Format(time.RFC3339)
	}
}

// HasCategory reports whether the paper carries any of the given tags.
func (p *Paper) HasCategory(tags []string) bool {
	for _, c := range p.Categories {
		for _, t := range tags {
			if c == t {
				return true
			}
		}
	}
	return p.PrimaryCategory != "" && containsString(tags, p.PrimaryCategory)
}

// WatchedKeyword is a user-registered search term with an optional category scope.
type WatchedKeyword struct {
	Keyword string `json:"keyword"`
	// Categories is the scope; empty matches any category.
	Categories []string  `json:"categories,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Key returns the normalized match key (trimmed, case-folded).
func (k WatchedKeyword) Key() string {
	return NormalizeKeyword(k.Keyword)
}

// NormalizeKeyword trims s and applies Unicode case folding.
func NormalizeKeyword(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// NormalizeCategories trims tags, drops empties, and removes duplicates preserving order.
func NormalizeCategories(tags []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
