// Package match decides which watched keywords match which papers.
package match

import (
	"strings"

	"github.com/hyperjump/ronbun/internal/models"
	"golang.org/x/text/cases"
)

// Engine evaluates watched keywords against paper batches. The zero value is ready to use.
// Matching is a pure function of its inputs.
type Engine struct{}

// NewEngine returns a match engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Matches reports whether paper matches keyword: the folded keyword text must be a
// substring of the folded title or abstract, and when the keyword has a category scope
// the paper's categories must intersect it.
func (e *Engine) Matches(keyword models.WatchedKeyword, paper *models.Paper) bool {
	key := keyword.Key()
	if key == "" {
		return false
	}
	return matchFolded(key, keyword.Categories, paper, cases.Fold())
}

// Match returns one entry per keyword, in keyword order. Each entry holds the papers it
// matched in provider order, with no paper repeated under the same keyword. An empty paper
// list yields an empty (non-nil) slice for every keyword.
func (e *Engine) Match(keywords []models.WatchedKeyword, papers []models.Paper) models.MatchSet {
	out := make(models.MatchSet, 0, len(keywords))
	folder := cases.Fold()
	folded := make([]foldedText, len(papers))
	for i := range papers {
		folded[i] = foldedText{
			title:    folder.String(papers[i].Title),
			abstract: folder.String(papers[i].Summary),
		}
	}
	for _, kw := range keywords {
		km := models.KeywordMatch{Keyword: kw, Papers: []models.Paper{}}
		key := kw.Key()
		if key != "" {
			seen := make(map[string]struct{})
			for i := range papers {
				if !folded[i].contains(key) || !inScope(kw.Categories, &papers[i]) {
					continue
				}
				dk := papers[i].DedupKey()
				if _, dup := seen[dk]; dup {
					continue
				}
				seen[dk] = struct{}{}
				km.Papers = append(km.Papers, papers[i])
			}
		}
		out = append(out, km)
	}
	return out
}

type foldedText struct {
	title    string
	abstract string
}

func (f foldedText) contains(key string) bool {
	return strings.Contains(f.title, key) || strings.Contains(f.abstract, key)
}

func matchFolded(key string, scope []string, paper *models.Paper, folder cases.Caser) bool {
	text := foldedText{title: folder.String(paper.Title), abstract: folder.String(paper.Summary)}
	return text.contains(key) && inScope(scope, paper)
}

func inScope(scope []string, paper *models.Paper) bool {
	if len(scope) == 0 {
		return true
	}
	return paper.HasCategory(scope)
}
