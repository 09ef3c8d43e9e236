package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/hyperjump/ronbun/internal/models"
)

func openTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_Keywords(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	got, err := store.LoadKeywords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no keywords, got %v", got)
	}

	created := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	want := []models.WatchedKeyword{
		{Keyword: "zeta", Categories: []string{"cs.LG", "cs.AI"}, CreatedAt: created},
		{Keyword: "alpha", CreatedAt: created},
	}
	if err := store.SaveKeywords(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err = store.LoadKeywords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Keyword != "zeta" || got[1].Keyword != "alpha" {
		t.Fatalf("keywords must keep insertion order, got %+v", got)
	}
	if !reflect.DeepEqual(got[0].Categories, []string{"cs.LG", "cs.AI"}) || got[1].Categories != nil {
		t.Errorf("categories = %v / %v", got[0].Categories, got[1].Categories)
	}
	if !got[0].CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v", got[0].CreatedAt)
	}

	if err := store.SaveKeywords(ctx, want[1:]); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountKeywords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 keyword after replace, got %d", n)
	}

	// duplicate primary key rolls back the whole save
	dup := []models.WatchedKeyword{{Keyword: "x"}, {Keyword: "x"}}
	if err := store.SaveKeywords(ctx, dup); err == nil {
		t.Fatal("expected error for duplicate keywords")
	}
	got, _ = store.LoadKeywords(ctx)
	if len(got) != 1 || got[0].Keyword != "alpha" {
		t.Errorf("failed save must leave previous list, got %+v", got)
	}
}

func TestSQLiteStorage_EmailConfig(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	if _, err := store.GetEmailConfig(ctx); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	cfg := &models.EmailConfig{
		SMTPServer: "smtp.example.com",
		SMTPPort:   465,
		Username:   "user",
		Password:   "secret",
		FromEmail:  "from@example.com",
		ToEmails:   []string{"a@example.com", "b@example.com"},
	}
	if err := store.SaveEmailConfig(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	cfg.SMTPPort = 587
	if err := store.SaveEmailConfig(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetEmailConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.SMTPPort != 587 || got.Password != "secret" || len(got.ToEmails) != 2 {
		t.Errorf("got %+v", got)
	}
}

func TestSQLiteStorage_LastCheck(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	got, err := store.GetLastCheck(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
	at := time.Date(2024, 1, 6, 1, 0, 0, 123, time.FixedZone("JST", 9*3600))
	if err := store.SetLastCheck(ctx, at); err != nil {
		t.Fatal(err)
	}
	got, err = store.GetLastCheck(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(at) || got.Location() != time.UTC {
		t.Errorf("got %v, want %v in UTC", got, at)
	}
}

func TestSQLiteStorage_Summaries(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	if _, err := store.GetSummary(ctx, "2401.01234"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	sum := &models.Summary{PaperID: "2401.01234", TitleJA: "変換器", SummaryJA: "要約"}
	if err := store.PutSummary(ctx, sum); err != nil {
		t.Fatal(err)
	}
	if sum.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	sum.SummaryJA = "新しい要約"
	if err := store.PutSummary(ctx, sum); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetSummary(ctx, "2401.01234")
	if err != nil {
		t.Fatal(err)
	}
	if got.TitleJA != "変換器" || got.SummaryJA != "新しい要約" {
		t.Errorf("got %+v", got)
	}
	n, err := store.CountSummaries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 summary, got %d", n)
	}
}

func TestSQLiteStorage_ImplementsStorage(t *testing.T) {
	var _ Storage = openTestStorage(t)
}
