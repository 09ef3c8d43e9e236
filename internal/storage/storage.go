// Package storage persists watched keywords, email settings, check state and cached summaries.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/ronbun/internal/models"
)

// Storage defines the persistence operations of the service.
type Storage interface {
	// Watched keywords, in insertion order
	LoadKeywords(ctx context.Context) ([]models.WatchedKeyword, error)
	SaveKeywords(ctx context.Context, keywords []models.WatchedKeyword) error

	// Email settings; GetEmailConfig returns models.ErrNotFound when none is stored
	GetEmailConfig(ctx context.Context) (*models.EmailConfig, error)
	SaveEmailConfig(ctx context.Context, cfg *models.EmailConfig) error

	// Check state; the zero time means no check has found papers yet
	GetLastCheck(ctx context.Context) (time.Time, error)
	SetLastCheck(ctx context.Context, t time.Time) error

	// Summary cache keyed by paper ID
	GetSummary(ctx context.Context, paperID string) (*models.Summary, error)
	PutSummary(ctx context.Context, s *models.Summary) error

	// Stats
	CountKeywords(ctx context.Context) (int64, error)
	CountSummaries(ctx context.Context) (int64, error)

	Close() error
}
