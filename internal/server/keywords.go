package server

import (
	"context"
	"sync"

	"github.com/hyperjump/ronbun/internal/models"
)

// KeywordStore is the watched keyword set served by the API.
type KeywordStore interface {
	Add(ctx context.Context, keyword string, categories []string) (models.WatchedKeyword, error)
	Remove(ctx context.Context, keyword string) error
	List() []models.WatchedKeyword
}

// LockedKeywords serializes access to a KeywordStore shared by request
// handlers and scheduled checks.
type LockedKeywords struct {
	mu    sync.Mutex
	store KeywordStore
}

// NewLockedKeywords wraps store.
func NewLockedKeywords(store KeywordStore) *LockedKeywords {
	return &LockedKeywords{store: store}
}

// Add registers keyword.
func (l *LockedKeywords) Add(ctx context.Context, keyword string, categories []string) (models.WatchedKeyword, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Add(ctx, keyword, categories)
}

// Remove deletes keyword.
func (l *LockedKeywords) Remove(ctx context.Context, keyword string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Remove(ctx, keyword)
}

// List returns a snapshot of the watched keywords.
func (l *LockedKeywords) List() []models.WatchedKeyword {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.List()
}
