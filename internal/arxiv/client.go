// Package arxiv queries the arXiv API and normalizes its Atom entries into papers.
package arxiv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"resty.dev/v3"
)

// DefaultBaseURL is the public arXiv query endpoint.
const DefaultBaseURL = "http://export.arxiv.org/api/query"

const (
	defaultUserAgent  = "ronbun/1.0 (+https://github.com/hyperjump/ronbun)"
	defaultTimeout    = 30 * time.Second
	defaultMaxResults = 10
	maxResultsCap     = 100
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	RetryAttempts uint
	// RetryDelay is the base delay of the exponential backoff between attempts.
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Client fetches papers from the arXiv API.
type Client struct {
	httpClient    *resty.Client
	baseURL       string
	retryAttempts uint
	retryDelay    time.Duration
	logger        *zap.Logger
}

// SearchRequest describes one provider query.
type SearchRequest struct {
	// Query is arXiv search syntax; it is combined with Categories when both are set.
	Query      string
	Categories []string
	// Since drops papers published before it. The zero value disables the floor.
	Since      time.Time
	MaxResults int
}

// NewClient builds an arXiv client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	httpClient := resty.New()
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetHeader("User-Agent", opts.UserAgent)
	httpClient.SetHeader("Accept", "application/atom+xml")

	return &Client{
		httpClient:    httpClient,
		baseURL:       opts.BaseURL,
		retryAttempts: opts.RetryAttempts,
		retryDelay:    opts.RetryDelay,
		logger:        opts.Logger.Named("arxiv"),
	}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.httpClient.Close()
}

// Search runs req against the provider and returns the normalized papers, newest
// submission first. Transport failures, non-2xx responses and unparseable feeds are
// reported as models.ErrUpstreamUnavailable.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]models.Paper, error) {
	query := BuildQuery(req.Query, req.Categories)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", models.ErrInvalidInput)
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}
	if limit > maxResultsCap {
		limit = maxResultsCap
	}

	var feed *gofeed.Feed
	err := retry.Do(
		func() error {
			f, err := c.fetch(ctx, query, limit)
			if err != nil {
				if !isRetryable(err) {
					return retry.Unrecoverable(err)
				}
				c.logger.Warn("arXiv request failed, retrying", zap.String("query", query), zap.Error(err))
				return err
			}
			feed = f
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts+1),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return retry.BackOffDelay(n, err, config)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: arxiv search %q: %v", models.ErrUpstreamUnavailable, query, err)
	}

	papers := NormalizeFeed(feed)
	if !req.Since.IsZero() {
		kept := papers[:0]
		for _, p := range papers {
			if !p.Published.IsZero() && p.Published.Before(req.Since) {
				continue
			}
			kept = append(kept, p)
		}
		papers = kept
	}
	c.logger.Debug("arXiv search finished",
		zap.String("query", query),
		zap.Int("results", len(papers)),
	)
	return papers, nil
}

// KeywordRequest builds the provider query for one watched keyword.
func KeywordRequest(kw models.WatchedKeyword, maxResults int) SearchRequest {
	return SearchRequest{
		Query:      KeywordQuery(kw.Keyword),
		Categories: kw.Categories,
		MaxResults: maxResults,
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("response error %d: %s", e.code, e.body)
}

func (c *Client) fetch(ctx context.Context, query string, limit int) (*gofeed.Feed, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"search_query": query,
			"start":        "0",
			"max_results":  strconv.Itoa(limit),
			"sortBy":       "submittedDate",
			"sortOrder":    "descending",
		}).
		Get(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("httpClient.Get > %w", err)
	}
	if resp.IsError() {
		return nil, &statusError{code: resp.StatusCode(), body: truncate(resp.String(), 200)}
	}
	feed, err := ParseFeed(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == 429
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused") || strings.Contains(err.Error(), "EOF")
}

// BuildQuery combines free-text query syntax with an OR-ed category filter.
func BuildQuery(query string, categories []string) string {
	query = strings.TrimSpace(query)
	cats := models.NormalizeCategories(categories)
	if len(cats) == 0 {
		return query
	}
	terms := make([]string, len(cats))
	for i, c := range cats {
		terms[i] = "cat:" + c
	}
	filter := strings.Join(terms, " OR ")
	if query == "" {
		return filter
	}
	return "(" + query + ") AND (" + filter + ")"
}

// KeywordQuery renders a watched keyword as search syntax; keywords containing
// spaces are quoted so the provider runs a phrase search.
func KeywordQuery(keyword string) string {
	keyword = strings.TrimSpace(keyword)
	if strings.Contains(keyword, " ") {
		return `"` + strings.ReplaceAll(keyword, `"`, "") + `"`
	}
	return keyword
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
