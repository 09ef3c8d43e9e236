package summarize

import (
	"context"
	"time"

	"github.com/hyperjump/ronbun/internal/models"
)

// Stub returns canned summaries without calling any external service.
type Stub struct{}

// Summarize implements Summarizer.
func (Stub) Summarize(_ context.Context, paper *models.Paper) (models.Summary, error) {
	return models.Summary{
		PaperID:   paper.ID,
		TitleJA:   "[テスト] " + paper.Title,
		SummaryJA: "[テストモード] この要約はテストモードで生成されました。",
		CreatedAt: time.Now().UTC(),
	}, nil
}
