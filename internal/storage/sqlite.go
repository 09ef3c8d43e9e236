package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ronbun/internal/models"
)

const lastCheckKey = "last_check"

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS watched_keywords (
		keyword TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		categories TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_watched_keywords_position ON watched_keywords(position);

	CREATE TABLE IF NOT EXISTS email_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		config TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sync_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS summaries (
		paper_id TEXT PRIMARY KEY,
		title_ja TEXT NOT NULL,
		summary_ja TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// LoadKeywords returns the stored keywords ordered by insertion position.
func (s *SQLiteStorage) LoadKeywords(ctx context.Context) ([]models.WatchedKeyword, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT keyword, categories, created_at FROM watched_keywords ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WatchedKeyword
	for rows.Next() {
		var kw models.WatchedKeyword
		var categoriesJSON string
		if err := rows.Scan(&kw.Keyword, &categoriesJSON, &kw.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(categoriesJSON), &kw.Categories); err != nil {
			return nil, fmt.Errorf("failed to unmarshal categories of %q: %w", kw.Keyword, err)
		}
		if len(kw.Categories) == 0 {
			kw.Categories = nil
		}
		out = append(out, kw)
	}
	return out, rows.Err()
}

// SaveKeywords replaces the stored keyword list in a single transaction.
func (s *SQLiteStorage) SaveKeywords(ctx context.Context, keywords []models.WatchedKeyword) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM watched_keywords`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO watched_keywords (keyword, position, categories, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, kw := range keywords {
		cats := kw.Categories
		if cats == nil {
			cats = []string{}
		}
		categoriesJSON, err := json.Marshal(cats)
		if err != nil {
			return fmt.Errorf("failed to marshal categories: %w", err)
		}
		created := kw.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, kw.Keyword, i, string(categoriesJSON), created); err != nil {
			return fmt.Errorf("failed to insert keyword %q: %w", kw.Keyword, err)
		}
	}
	return tx.Commit()
}

// GetEmailConfig returns the stored email settings.
func (s *SQLiteStorage) GetEmailConfig(ctx context.Context) (*models.EmailConfig, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT config FROM email_config WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("email config: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var cfg models.EmailConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal email config: %w", err)
	}
	return &cfg, nil
}

// SaveEmailConfig stores cfg, replacing any previous settings.
func (s *SQLiteStorage) SaveEmailConfig(ctx context.Context, cfg *models.EmailConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal email config: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO email_config (id, config, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		string(raw), time.Now().UTC(),
	)
	return err
}

// GetLastCheck returns the persisted last check time, or the zero time when unset.
func (s *SQLiteStorage) GetLastCheck(ctx context.Context) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, lastCheckKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last check %q: %w", raw, err)
	}
	return t.UTC(), nil
}

// SetLastCheck persists t as the last check time.
func (s *SQLiteStorage) SetLastCheck(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		lastCheckKey, t.UTC().Format(time.RFC3339Nano), time.Now().UTC(),
	)
	return err
}

// GetSummary returns the cached summary of paperID, or models.ErrNotFound.
func (s *SQLiteStorage) GetSummary(ctx context.Context, paperID string) (*models.Summary, error) {
	var sum models.Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT paper_id, title_ja, summary_ja, created_at FROM summaries WHERE paper_id = ?`, paperID,
	).Scan(&sum.PaperID, &sum.TitleJA, &sum.SummaryJA, &sum.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("summary %s: %w", paperID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// PutSummary inserts or replaces a cached summary.
func (s *SQLiteStorage) PutSummary(ctx context.Context, sum *models.Summary) error {
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO summaries (paper_id, title_ja, summary_ja, created_at) VALUES (?, ?, ?, ?)`,
		sum.PaperID, sum.TitleJA, sum.SummaryJA, sum.CreatedAt,
	)
	return err
}

// CountKeywords returns the number of watched keywords.
func (s *SQLiteStorage) CountKeywords(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM watched_keywords`).Scan(&n)
	return n, err
}

// CountSummaries returns the number of cached summaries.
func (s *SQLiteStorage) CountSummaries(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
