// Package watchlist keeps the set of watched keywords and persists it through a port.
package watchlist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/ronbun/internal/models"
	"go.uber.org/zap"
)

// Port persists the whole keyword list. SaveKeywords replaces the stored list atomically.
type Port interface {
	LoadKeywords(ctx context.Context) ([]models.WatchedKeyword, error)
	SaveKeywords(ctx context.Context, keywords []models.WatchedKeyword) error
}

// Store is the in-memory keyword set backed by a Port.
// It holds no lock; callers that share a Store across goroutines must serialize access.
type Store struct {
	port     Port
	keywords []models.WatchedKeyword
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore loads the persisted keywords through port. Entries with blank or
// duplicate keywords are dropped on load.
func NewStore(ctx context.Context, port Port, opts ...Option) (*Store, error) {
	s := &Store{port: port, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("watchlist")

	loaded, err := port.LoadKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load watched keywords: %w", err)
	}
	seen := make(map[string]struct{}, len(loaded))
	for _, kw := range loaded {
		kw.Keyword = strings.TrimSpace(kw.Keyword)
		key := kw.Key()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			s.logger.Warn("dropping duplicate persisted keyword", zap.String("keyword", kw.Keyword))
			continue
		}
		seen[key] = struct{}{}
		kw.Categories = models.NormalizeCategories(kw.Categories)
		s.keywords = append(s.keywords, kw)
	}
	return s, nil
}

// Add registers keyword with an optional category scope and persists the new list.
// On persistence failure the insert is rolled back.
func (s *Store) Add(ctx context.Context, keyword string, categories []string) (models.WatchedKeyword, error) {
	text := strings.TrimSpace(keyword)
	if text == "" {
		return models.WatchedKeyword{}, fmt.Errorf("%w: keyword is empty", models.ErrInvalidInput)
	}
	if s.index(text) >= 0 {
		return models.WatchedKeyword{}, fmt.Errorf("%w: %s", models.ErrDuplicateKeyword, text)
	}

	kw := models.WatchedKeyword{
		Keyword:    text,
		Categories: models.NormalizeCategories(categories),
		CreatedAt:  s.now().UTC(),
	}
	prev := s.keywords
	next := make([]models.WatchedKeyword, len(prev), len(prev)+1)
	copy(next, prev)
	next = append(next, kw)

	if err := s.port.SaveKeywords(ctx, next); err != nil {
		s.logger.Error("failed to persist keyword add", zap.String("keyword", text), zap.Error(err))
		return models.WatchedKeyword{}, fmt.Errorf("failed to save watched keywords: %w", err)
	}
	s.keywords = next
	return kw, nil
}

// Remove deletes keyword (compared by normalized text) and persists the new list.
func (s *Store) Remove(ctx context.Context, keyword string) error {
	text := strings.TrimSpace(keyword)
	if text == "" {
		return fmt.Errorf("%w: keyword is empty", models.ErrInvalidInput)
	}
	i := s.index(text)
	if i < 0 {
		return fmt.Errorf("%w: keyword %s", models.ErrNotFound, text)
	}

	next := make([]models.WatchedKeyword, 0, len(s.keywords)-1)
	next = append(next, s.keywords[:i]...)
	next = append(next, s.keywords[i+1:]...)

	if err := s.port.SaveKeywords(ctx, next); err != nil {
		s.logger.Error("failed to persist keyword removal", zap.String("keyword", text), zap.Error(err))
		return fmt.Errorf("failed to save watched keywords: %w", err)
	}
	s.keywords = next
	return nil
}

// List returns a copy of the watched keywords in insertion order.
func (s *Store) List() []models.WatchedKeyword {
	out := make([]models.WatchedKeyword, len(s.keywords))
	for i, kw := range s.keywords {
		kw.Categories = append([]string(nil), kw.Categories...)
		if len(kw.Categories) == 0 {
			kw.Categories = nil
		}
		out[i] = kw
	}
	return out
}

// Len returns the number of watched keywords.
func (s *Store) Len() int {
	return len(s.keywords)
}

func (s *Store) index(text string) int {
	key := models.NormalizeKeyword(text)
	for i, kw := range s.keywords {
		if kw.Key() == key {
			return i
		}
	}
	return -1
}
