package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/service"
)

var published = time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func samplePapers() []models.Paper {
	return []models.Paper{
		{
			ID:              "2401.00001",
			Title:           "Attention Is Still All You Need",
			Authors:         []string{"A. Author", "B. Author"},
			PrimaryCategory: "cs.CL",
			Published:       published,
			Summary:         "We revisit attention.",
			TitleJA:         "注意機構の再考",
			SummaryJA:       "注意機構を再検討する。",
			URL:             "https://arxiv.org/abs/2401.00001",
		},
		{ID: "2401.00002", Title: "Undated work"},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in   string
		want OutputFormat
	}{
		{"", OutputText},
		{"text", OutputText},
		{"Compact", OutputCompact},
		{" json ", OutputJSON},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseOutputFormat("yaml"); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("ParseOutputFormat(yaml) error = %v, want ErrInvalidInput", err)
	}
}

func TestWritePapers_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePapers(&buf, samplePapers(), OutputJSON); err != nil {
		t.Fatalf("WritePapers(json): %v", err)
	}
	var decoded []models.Paper
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded) != 2 || decoded[0].ID != "2401.00001" || !decoded[0].Published.Equal(published) {
		t.Errorf("decoded papers: got %+v", decoded)
	}
}

func TestWritePapers_JSON_empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePapers(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty list: got %q, want []", got)
	}
}

func TestWritePapers_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePapers(&buf, samplePapers(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Found 2 papers",
		"Attention Is Still All You Need",
		"注意機構の再考",
		"ID: 2401.00001 | 2024-01-05 | cs.CL",
		"注意機構を再検討する。",
		"ID: 2401.00002 | unknown",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWritePapers_compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePapers(&buf, samplePapers(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one line per paper, got %q", lines)
	}
	if lines[0] != "2401.00001\t2024-01-05\tAttention Is Still All You Need" {
		t.Errorf("compact line: got %q", lines[0])
	}
}

func TestWriteGrouped(t *testing.T) {
	papers := samplePapers()
	grouped := models.GroupedResult{Dates: []models.DateGroup{
		{Date: "2024-01-05", Keywords: []models.KeywordGroup{{Keyword: "attention", Papers: papers[:1]}}},
		{Date: models.UnknownDate, Keywords: []models.KeywordGroup{{Keyword: "work", Papers: papers[1:]}}},
	}}

	var text bytes.Buffer
	if err := WriteGrouped(&text, grouped, OutputText); err != nil {
		t.Fatal(err)
	}
	out := text.String()
	if i, j := strings.Index(out, "=== 2024-01-05 ==="), strings.Index(out, "=== unknown ==="); i < 0 || j < i {
		t.Errorf("date sections out of order:\n%s", out)
	}
	if !strings.Contains(out, "--- attention (1) ---") {
		t.Errorf("missing keyword heading:\n%s", out)
	}

	var compact bytes.Buffer
	if err := WriteGrouped(&compact, grouped, OutputCompact); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(compact.String(), "2024-01-05\tattention\t2401.00001\t") {
		t.Errorf("compact grouped: got %q", compact.String())
	}

	var js bytes.Buffer
	if err := WriteGrouped(&js, grouped, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.GroupedResult
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Dates) != 2 || decoded.Dates[1].Date != models.UnknownDate {
		t.Errorf("decoded grouped: got %+v", decoded)
	}
}

func TestWriteGrouped_empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGrouped(&buf, models.GroupedResult{}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No new papers.") {
		t.Errorf("got %q", buf.String())
	}
	buf.Reset()
	if err := WriteGrouped(&buf, models.GroupedResult{}, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "{}" {
		t.Errorf("empty grouped JSON: got %q", got)
	}
}

func TestWriteKeywords(t *testing.T) {
	kws := []models.WatchedKeyword{
		{Keyword: "transformer"},
		{Keyword: "robot learning", Categories: []string{"cs.RO", "cs.LG"}},
	}
	var buf bytes.Buffer
	if err := WriteKeywords(&buf, kws, OutputText); err != nil {
		t.Fatal(err)
	}
	if want := "transformer\nrobot learning [cs.RO, cs.LG]\n"; buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
	buf.Reset()
	_ = WriteKeywords(&buf, nil, OutputText)
	if !strings.Contains(buf.String(), "No watched keywords.") {
		t.Errorf("empty list: got %q", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	st := &service.Status{Keywords: 2, Summaries: 7, IsProcessing: true, DatabasePath: "/tmp/r.db", DatabaseBytes: 2048}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Watched keywords: 2", "Cached summaries: 7", "never", "running", "/tmp/r.db (2.0 KiB)"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:               "0 B",
		1023:            "1023 B",
		1024:            "1.0 KiB",
		1536:            "1.5 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"empty", "", 5, ""},
		{"short", "hi", 5, "hi"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"multibyte", "新着論文のお知らせ", 4, "新着論文..."},
		{"maxLen zero", "ab", 0, "ab"},
		{"maxLen negative", "ab", -1, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.s, tt.maxLen)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
		{"single long", "word", 1, "word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.s, tt.maxWords)
			if got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
