// Package cli provides output helpers for the ronbun command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/service"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one line per paper.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat parses s; an empty string selects OutputText.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q (use text, compact or json)", models.ErrInvalidInput, s)
	}
}

var (
	headingStyle = color.New(color.FgCyan, color.Bold)
	keywordStyle = color.New(color.FgYellow)
	titleStyle   = color.New(color.Bold)
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WritePapers writes a flat paper list to w in the given format.
func WritePapers(w io.Writer, papers []models.Paper, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if papers == nil {
			papers = []models.Paper{}
		}
		return writeJSON(w, papers)
	case OutputCompact:
		for i := range papers {
			writeCompactPaper(w, &papers[i])
		}
		return nil
	default:
		fmt.Fprintf(w, "\nFound %d papers\n\n", len(papers))
		for i := range papers {
			writePaperText(w, &papers[i])
		}
		return nil
	}
}

// WriteGrouped writes a date -> keyword -> papers result to w in the given format.
func WriteGrouped(w io.Writer, grouped models.GroupedResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, grouped)
	case OutputCompact:
		for _, d := range grouped.Dates {
			for _, k := range d.Keywords {
				for i := range k.Papers {
					fmt.Fprintf(w, "%s\t%s\t", d.Date, k.Keyword)
					writeCompactPaper(w, &k.Papers[i])
				}
			}
		}
		return nil
	default:
		if grouped.Empty() {
			fmt.Fprintln(w, "No new papers.")
			return nil
		}
		fmt.Fprintf(w, "\nFound %d new papers\n", grouped.UniquePapers())
		for _, d := range grouped.Dates {
			headingStyle.Fprintf(w, "\n=== %s ===\n", d.Date)
			for _, k := range d.Keywords {
				keywordStyle.Fprintf(w, "\n--- %s (%d) ---\n", k.Keyword, len(k.Papers))
				for i := range k.Papers {
					writePaperText(w, &k.Papers[i])
				}
			}
		}
		return nil
	}
}

// WriteKeywords writes the watched keywords to w in the given format.
func WriteKeywords(w io.Writer, keywords []models.WatchedKeyword, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if keywords == nil {
			keywords = []models.WatchedKeyword{}
		}
		return writeJSON(w, keywords)
	default:
		if len(keywords) == 0 {
			fmt.Fprintln(w, "No watched keywords.")
			return nil
		}
		for _, kw := range keywords {
			if len(kw.Categories) == 0 {
				fmt.Fprintln(w, kw.Keyword)
				continue
			}
			fmt.Fprintf(w, "%s [%s]\n", kw.Keyword, strings.Join(kw.Categories, ", "))
		}
		return nil
	}
}

// WriteStatus writes a service status snapshot to w in the given format.
func WriteStatus(w io.Writer, st *service.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	last := "never"
	if !st.LastCheck.IsZero() {
		last = st.LastCheck.Local().Format("2006-01-02 15:04:05")
	}
	processing := "paused"
	if st.IsProcessing {
		processing = "running"
	}
	fmt.Fprintf(w, "Watched keywords: %d\n", st.Keywords)
	fmt.Fprintf(w, "Cached summaries: %d\n", st.Summaries)
	fmt.Fprintf(w, "Last check:       %s\n", last)
	fmt.Fprintf(w, "Processing:       %s\n", processing)
	fmt.Fprintf(w, "Database:         %s (%s)\n", st.DatabasePath, FormatBytes(st.DatabaseBytes))
	return nil
}

func writePaperText(w io.Writer, p *models.Paper) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	titleStyle.Fprintf(w, "%s\n", p.Title)
	if p.TitleJA != "" && p.TitleJA != p.Title {
		fmt.Fprintf(w, "%s\n", p.TitleJA)
	}
	date := models.UnknownDate
	if day, ok := p.PublishedDay(); ok {
		date = day
	}
	fmt.Fprintf(w, "ID: %s | %s | %s\n", p.ID, date, p.PrimaryCategory)
	if len(p.Authors) > 0 {
		fmt.Fprintf(w, "Authors: %s\n", TruncateWords(strings.Join(p.Authors, ", "), 12))
	}
	if p.URL != "" {
		fmt.Fprintf(w, "URL: %s\n", p.URL)
	}
	abstract := p.Summary
	if p.SummaryJA != "" {
		abstract = p.SummaryJA
	}
	if abstract != "" {
		fmt.Fprintf(w, "\n%s\n", Truncate(abstract, 300))
	}
	fmt.Fprintln(w)
}

func writeCompactPaper(w io.Writer, p *models.Paper) {
	date := models.UnknownDate
	if day, ok := p.PublishedDay(); ok {
		date = day
	}
	fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, date, Truncate(p.Title, 100))
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
