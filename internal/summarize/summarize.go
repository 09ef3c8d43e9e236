// Package summarize produces Japanese titles and summaries for papers.
package summarize

import (
	"context"
	"errors"
	"strings"

	"github.com/hyperjump/ronbun/internal/models"
	"go.uber.org/zap"
)

const (
	// ExtractionFailedSummary is used when a response carries no summary line.
	ExtractionFailedSummary = "要約の抽出に失敗しました。"
	// GenerationFailedSummary is used when the summarizer could not be reached.
	GenerationFailedSummary = "要約の生成に失敗しました。"
)

// Summarizer turns a paper's title and abstract into a Japanese title and summary.
type Summarizer interface {
	Summarize(ctx context.Context, paper *models.Paper) (models.Summary, error)
}

// Cache stores summaries by paper ID. Get returns models.ErrNotFound on a miss.
type Cache interface {
	GetSummary(ctx context.Context, paperID string) (*models.Summary, error)
	PutSummary(ctx context.Context, s *models.Summary) error
}

// ParseResponse extracts the "タイトル：" and "要約：" lines of a model response.
// Both full-width and ASCII colons are accepted. A missing title falls back to
// fallbackTitle; ok is false when no summary line was found.
func ParseResponse(content, fallbackTitle string) (titleJA, summaryJA string, ok bool) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if v, found := cutLabel(line, "タイトル"); found && titleJA == "" {
			titleJA = v
		} else if v, found := cutLabel(line, "要約"); found && summaryJA == "" {
			summaryJA = v
		}
	}
	if titleJA == "" {
		titleJA = fallbackTitle
	}
	if summaryJA == "" {
		return titleJA, ExtractionFailedSummary, false
	}
	return titleJA, summaryJA, true
}

func cutLabel(line, label string) (string, bool) {
	rest, found := strings.CutPrefix(line, label)
	if !found {
		return "", false
	}
	for _, colon := range []string{"：", ":"} {
		if v, ok := strings.CutPrefix(rest, colon); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Cached wraps a Summarizer with a summary cache. Cache errors are logged and never fail a call.
type Cached struct {
	inner  Summarizer
	cache  Cache
	logger *zap.Logger
}

// NewCached returns a caching summarizer.
func NewCached(inner Summarizer, cache Cache, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{inner: inner, cache: cache, logger: logger.Named("summary-cache")}
}

// Summarize returns the cached summary for paper or generates and stores a new one.
// Summaries whose extraction failed are not cached.
func (c *Cached) Summarize(ctx context.Context, paper *models.Paper) (models.Summary, error) {
	if paper.ID != "" {
		cached, err := c.cache.GetSummary(ctx, paper.ID)
		switch {
		case err == nil:
			c.logger.Debug("cache hit", zap.String("paper_id", paper.ID))
			return *cached, nil
		case !errors.Is(err, models.ErrNotFound):
			c.logger.Warn("summary cache lookup failed", zap.String("paper_id", paper.ID), zap.Error(err))
		}
	}

	sum, err := c.inner.Summarize(ctx, paper)
	if err != nil {
		return models.Summary{}, err
	}
	if paper.ID != "" && sum.SummaryJA != ExtractionFailedSummary {
		if err := c.cache.PutSummary(ctx, &sum); err != nil {
			c.logger.Warn("failed to cache summary", zap.String("paper_id", paper.ID), zap.Error(err))
		}
	}
	return sum, nil
}

// Annotate fills TitleJA and SummaryJA of every paper in place. A failure for one
// paper never fails the batch: that paper gets its English title and
// GenerationFailedSummary.
func Annotate(ctx context.Context, s Summarizer, papers []models.Paper, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i := range papers {
		p := &papers[i]
		sum, err := s.Summarize(ctx, p)
		if err != nil {
			logger.Warn("summarization failed", zap.String("paper_id", p.ID), zap.Error(err))
			p.TitleJA = p.Title
			p.SummaryJA = GenerationFailedSummary
			continue
		}
		p.TitleJA = sum.TitleJA
		p.SummaryJA = sum.SummaryJA
	}
}
