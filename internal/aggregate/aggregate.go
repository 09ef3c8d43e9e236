// Package aggregate groups match results for presentation and orders flat paper lists.
package aggregate

import (
	"sort"

	"github.com/hyperjump/ronbun/internal/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Aggregator groups and orders papers. Title sorting uses the collation rules of Locale.
type Aggregator struct {
	locale language.Tag
}

// New returns an aggregator that collates titles for the given BCP 47 locale.
// An empty or unparseable locale falls back to English.
func New(locale string) *Aggregator {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = language.English
	}
	return &Aggregator{locale: tag}
}

// GroupByDateAndKeyword buckets every matched paper by its UTC publication day and then by
// the keyword it matched. Dates are ordered newest first with the unknown bucket last; keyword
// groups inside a date follow the order of m. Keywords without papers produce no group.
func (a *Aggregator) GroupByDateAndKeyword(m models.MatchSet) models.GroupedResult {
	index := make(map[string]int)
	var dates []models.DateGroup
	for _, km := range m {
		for _, p := range km.Papers {
			day, ok := p.PublishedDay()
			if !ok {
				day = models.UnknownDate
			}
			di, exists := index[day]
			if !exists {
				di = len(dates)
				index[day] = di
				dates = append(dates, models.DateGroup{Date: day})
			}
			dg := &dates[di]
			last := len(dg.Keywords) - 1
			if last < 0 || dg.Keywords[last].Keyword != km.Keyword.Keyword {
				dg.Keywords = append(dg.Keywords, models.KeywordGroup{Keyword: km.Keyword.Keyword})
				last++
			}
			dg.Keywords[last].Papers = append(dg.Keywords[last].Papers, p)
		}
	}
	sort.SliceStable(dates, func(i, j int) bool {
		di, dj := dates[i].Date, dates[j].Date
		if di == models.UnknownDate {
			return false
		}
		if dj == models.UnknownDate {
			return true
		}
		return di > dj
	})
	return models.GroupedResult{Dates: dates}
}

// Flatten returns the distinct papers of m in first-seen order.
func (a *Aggregator) Flatten(m models.MatchSet) []models.Paper {
	out := []models.Paper{}
	seen := make(map[string]struct{})
	for _, km := range m {
		for _, p := range km.Papers {
			key := p.DedupKey()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// FlattenAndSort returns a sorted copy of papers. The sort is stable, so ties keep input order.
// Unknown dates sort last for date-desc and first for date-asc.
func (a *Aggregator) FlattenAndSort(papers []models.Paper, key models.SortKey) []models.Paper {
	out := make([]models.Paper, len(papers))
	copy(out, papers)

	var less func(x, y *models.Paper) bool
	switch key {
	case models.SortDateAsc:
		less = func(x, y *models.Paper) bool {
			if x.Published.IsZero() || y.Published.IsZero() {
				return x.Published.IsZero() && !y.Published.IsZero()
			}
			return x.Published.Before(y.Published)
		}
	case models.SortTitleAsc, models.SortTitleDesc:
		// collators are not safe for concurrent use
		col := collate.New(a.locale, collate.IgnoreCase)
		desc := key == models.SortTitleDesc
		less = func(x, y *models.Paper) bool {
			c := col.CompareString(x.Title, y.Title)
			if desc {
				return c > 0
			}
			return c < 0
		}
	default:
		less = func(x, y *models.Paper) bool {
			if x.Published.IsZero() || y.Published.IsZero() {
				return !x.Published.IsZero() && y.Published.IsZero()
			}
			return x.Published.After(y.Published)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}
