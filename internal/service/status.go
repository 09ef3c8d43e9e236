package service

import (
	"context"
	"time"

	"github.com/hyperjump/ronbun/internal/storage"
)

// Status is a snapshot of the service state.
type Status struct {
	Keywords      int       `json:"keywords"`
	Summaries     int64     `json:"summaries"`
	LastCheck     time.Time `json:"last_check"`
	IsProcessing  bool      `json:"is_processing"`
	DatabasePath  string    `json:"database_path"`
	DatabaseBytes int64     `json:"database_bytes"`
}

// Status reports keyword and summary counts, the last check time and the
// database size at dbPath.
func (s *PaperService) Status(ctx context.Context, dbPath string) (*Status, error) {
	summaries, err := s.store.CountSummaries(ctx)
	if err != nil {
		return nil, err
	}
	last, err := s.store.GetLastCheck(ctx)
	if err != nil {
		return nil, err
	}
	size, err := storage.DatabaseSizeBytes(dbPath)
	if err != nil {
		return nil, err
	}
	return &Status{
		Keywords:      len(s.keywords.List()),
		Summaries:     summaries,
		LastCheck:     last,
		IsProcessing:  s.IsProcessing(),
		DatabasePath:  dbPath,
		DatabaseBytes: size,
	}, nil
}
