// Package service orchestrates searching, new-paper checks and notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/ronbun/internal/aggregate"
	"github.com/hyperjump/ronbun/internal/arxiv"
	"github.com/hyperjump/ronbun/internal/config"
	"github.com/hyperjump/ronbun/internal/match"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/notify"
	"github.com/hyperjump/ronbun/internal/storage"
	"github.com/hyperjump/ronbun/internal/summarize"
	"go.uber.org/zap"
)

// defaultLookback is the check floor used before any check has found papers.
const defaultLookback = 24 * time.Hour

// PaperSource fetches papers from the provider.
type PaperSource interface {
	Search(ctx context.Context, req arxiv.SearchRequest) ([]models.Paper, error)
}

// KeywordSource lists the watched keywords.
type KeywordSource interface {
	List() []models.WatchedKeyword
}

// Options configures a PaperService.
type Options struct {
	MaxResultsPerKeyword int
	MaxSearchResults     int
	TitleLocale          string
	// UseJapaneseSummary is the toggle used by scheduled check-and-notify runs.
	UseJapaneseSummary bool
	Logger             *zap.Logger
	Now                func() time.Time
}

// PaperService runs searches and new-paper checks.
type PaperService struct {
	source     PaperSource
	keywords   KeywordSource
	store      storage.Storage
	summarizer summarize.Summarizer
	notifier   notify.Notifier
	engine     *match.Engine
	agg        *aggregate.Aggregator
	opts       Options
	logger     *zap.Logger
	now        func() time.Time

	paused  atomic.Bool
	useJA   atomic.Bool
	checkMu sync.Mutex
}

// CheckResult is the outcome of one new-paper check.
type CheckResult struct {
	RunID string `json:"run_id"`
	// Matches holds one entry per watched keyword.
	Matches models.MatchSet `json:"-"`
	// Papers are the distinct matched papers in first-seen order.
	Papers    []models.Paper       `json:"papers"`
	Grouped   models.GroupedResult `json:"grouped_papers"`
	Since     time.Time            `json:"since"`
	LastCheck time.Time            `json:"last_check"`
	Skipped   bool                 `json:"skipped,omitempty"`
	Notified  bool                 `json:"notified,omitempty"`
}

// New builds a PaperService. summarizer and notifier may be nil.
func New(source PaperSource, keywords KeywordSource, store storage.Storage, summarizer summarize.Summarizer, notifier notify.Notifier, opts Options) *PaperService {
	if opts.MaxResultsPerKeyword <= 0 {
		opts.MaxResultsPerKeyword = 50
	}
	if opts.MaxSearchResults <= 0 {
		opts.MaxSearchResults = models.MaxSearchResults
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &PaperService{
		source:     source,
		keywords:   keywords,
		store:      store,
		summarizer: summarizer,
		notifier:   notifier,
		engine:     match.NewEngine(),
		agg:        aggregate.New(opts.TitleLocale),
		opts:       opts,
		logger:     opts.Logger.Named("service"),
		now:        opts.Now,
	}
	s.useJA.Store(opts.UseJapaneseSummary)
	return s
}

// SetUseJapaneseSummary changes the summary toggle used by CheckAndNotify.
func (s *PaperService) SetUseJapaneseSummary(v bool) {
	s.useJA.Store(v)
}

// Pause stops scheduled checks and searches until Resume is called.
func (s *PaperService) Pause() {
	s.paused.Store(true)
	s.logger.Info("processing paused")
}

// Resume re-enables processing.
func (s *PaperService) Resume() {
	s.paused.Store(false)
	s.logger.Info("processing resumed")
}

// IsProcessing reports whether processing is enabled.
func (s *PaperService) IsProcessing() bool {
	return !s.paused.Load()
}

// Search runs q against the provider. A paused service returns no papers.
func (s *PaperService) Search(ctx context.Context, q models.SearchQuery) ([]models.Paper, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if !s.IsProcessing() {
		s.logger.Info("search skipped while paused", zap.String("query", q.Query))
		return []models.Paper{}, nil
	}
	limit := q.MaxResults
	if limit > s.opts.MaxSearchResults {
		limit = s.opts.MaxSearchResults
	}
	req := arxiv.SearchRequest{Query: q.Query, Categories: q.Categories, MaxResults: limit}
	if q.SinceDays > 0 {
		req.Since = s.now().UTC().AddDate(0, 0, -q.SinceDays)
	}
	papers, err := s.source.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	papers = s.agg.FlattenAndSort(papers, q.Sort)
	if q.UseJapaneseSummary {
		s.annotate(ctx, papers)
	}
	return papers, nil
}

// CheckNewPapers fetches the newest papers of every watched keyword, keeps those
// published after the last check, and groups the matches. The last check time is
// advanced only when something matched. Concurrent calls run one at a time.
func (s *PaperService) CheckNewPapers(ctx context.Context, useJapaneseSummary bool) (*CheckResult, error) {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))
	started := s.now().UTC()

	last, err := s.store.GetLastCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read last check: %w", err)
	}
	since := last
	if since.IsZero() {
		since = started.Add(-defaultLookback)
	}
	res := &CheckResult{
		RunID:     runID,
		Matches:   models.MatchSet{},
		Papers:    []models.Paper{},
		Since:     since,
		LastCheck: last,
	}

	keywords := s.keywords.List()
	if len(keywords) == 0 {
		logger.Info("no watched keywords")
		return res, nil
	}

	papers, err := s.fetchSince(ctx, logger, keywords, since)
	if err != nil {
		return nil, err
	}

	matches := s.engine.Match(keywords, papers)
	flat := s.agg.Flatten(matches)
	if useJapaneseSummary && len(flat) > 0 {
		s.annotate(ctx, flat)
		matches = withAnnotations(matches, flat)
	}
	res.Matches = matches
	res.Papers = flat
	res.Grouped = s.agg.GroupByDateAndKeyword(matches)

	if len(flat) > 0 {
		if err := s.store.SetLastCheck(ctx, started); err != nil {
			return nil, fmt.Errorf("failed to update last check: %w", err)
		}
		res.LastCheck = started
		logger.Info("new papers found", zap.Int("papers", len(flat)), zap.Int("keywords", len(keywords)))
	} else {
		logger.Info("no new papers found", zap.Time("since", since))
	}
	return res, nil
}

// fetchSince queries every keyword and returns the distinct papers published after
// since, in fetch order. Papers without a date are dropped. A keyword whose query
// fails is skipped; the check fails only when every query failed.
func (s *PaperService) fetchSince(ctx context.Context, logger *zap.Logger, keywords []models.WatchedKeyword, since time.Time) ([]models.Paper, error) {
	var out []models.Paper
	seen := make(map[string]struct{})
	var lastErr error
	failures := 0
	for _, kw := range keywords {
		fetched, err := s.source.Search(ctx, arxiv.KeywordRequest(kw, s.opts.MaxResultsPerKeyword))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			lastErr = err
			logger.Warn("keyword search failed", zap.String("keyword", kw.Keyword), zap.Error(err))
			continue
		}
		for _, p := range fetched {
			if p.Published.IsZero() || !p.Published.After(since) {
				continue
			}
			key := p.DedupKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	if failures == len(keywords) {
		return nil, fmt.Errorf("all keyword searches failed: %w", lastErr)
	}
	return out, nil
}

// CheckAndNotify runs a check with the configured summary toggle and mails the
// grouped result. A paused service skips the run. Delivery failures are logged
// and not retried; a missing email config skips delivery.
func (s *PaperService) CheckAndNotify(ctx context.Context) (*CheckResult, error) {
	if !s.IsProcessing() {
		s.logger.Info("scheduled check skipped while paused")
		return &CheckResult{Skipped: true, Papers: []models.Paper{}, Matches: models.MatchSet{}}, nil
	}
	useJA := s.useJA.Load()
	res, err := s.CheckNewPapers(ctx, useJA)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("run_id", res.RunID))

	msg, ok, err := notify.Compose(res.Grouped, notify.ComposeOptions{UseJapaneseSummary: useJA})
	if err != nil {
		logger.Error("failed to compose notification", zap.Error(err))
		return res, nil
	}
	if !ok {
		return res, nil
	}
	if s.notifier == nil {
		logger.Debug("no notifier configured")
		return res, nil
	}
	cfg, err := s.store.GetEmailConfig(ctx)
	if errors.Is(err, models.ErrNotFound) {
		logger.Info("email is not configured, skipping notification")
		return res, nil
	}
	if err != nil {
		logger.Error("failed to load email config", zap.Error(err))
		return res, nil
	}
	if err := s.notifier.Send(ctx, cfg, msg); err != nil {
		logger.Error("failed to send notification", zap.Error(err))
		return res, nil
	}
	res.Notified = true
	return res, nil
}

// SaveEmailConfig validates and stores cfg.
func (s *PaperService) SaveEmailConfig(ctx context.Context, cfg *models.EmailConfig) error {
	if err := config.ValidateStruct(cfg); err != nil {
		return err
	}
	if err := s.store.SaveEmailConfig(ctx, cfg); err != nil {
		return fmt.Errorf("failed to save email config: %w", err)
	}
	return nil
}

// EmailConfig returns the stored email settings with the password redacted.
func (s *PaperService) EmailConfig(ctx context.Context) (*models.EmailConfig, error) {
	cfg, err := s.store.GetEmailConfig(ctx)
	if err != nil {
		return nil, err
	}
	redacted := cfg.Redacted()
	return &redacted, nil
}

func (s *PaperService) annotate(ctx context.Context, papers []models.Paper) {
	if s.summarizer == nil {
		return
	}
	summarize.Annotate(ctx, s.summarizer, papers, s.logger)
}

// withAnnotations copies the Japanese fields of annotated onto every paper of m.
func withAnnotations(m models.MatchSet, annotated []models.Paper) models.MatchSet {
	byKey := make(map[string]*models.Paper, len(annotated))
	for i := range annotated {
		byKey[annotated[i].DedupKey()] = &annotated[i]
	}
	out := make(models.MatchSet, len(m))
	for i, km := range m {
		papers := make([]models.Paper, len(km.Papers))
		for j, p := range km.Papers {
			if a, ok := byKey[p.DedupKey()]; ok {
				p.TitleJA = a.TitleJA
				p.SummaryJA = a.SummaryJA
			}
			papers[j] = p
		}
		out[i] = models.KeywordMatch{Keyword: km.Keyword, Papers: papers}
	}
	return out
}
