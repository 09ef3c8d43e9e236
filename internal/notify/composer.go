// Package notify renders grouped new-paper results into notification mail and delivers it.
package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"

	"github.com/hyperjump/ronbun/internal/models"
)

//go:embed templates/message.txt.tmpl
var textTemplateSource string

//go:embed templates/message.html.tmpl
var htmlTemplateSource string

var textTemplate = template.Must(template.New("message.txt").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(textTemplateSource))

var htmlTemplate = htmltemplate.Must(htmltemplate.New("message.html").
	Funcs(htmltemplate.FuncMap{"join": strings.Join}).
	Parse(htmlTemplateSource))

const (
	dateHeadingLayout  = "2006年01月02日"
	unknownDateHeading = "日付不明"
	noSummary          = "要約なし"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// ComposeOptions controls rendering.
type ComposeOptions struct {
	// UseJapaneseSummary shows SummaryJA instead of the abstract when it is present.
	UseJapaneseSummary bool
}

type messageView struct {
	Total int
	Dates []dateView
}

type dateView struct {
	Heading  string
	Keywords []keywordView
}

type keywordView struct {
	Keyword string
	Papers  []paperView
}

type paperView struct {
	Title    string
	TitleJA  string
	Authors  []string
	Category string
	Summary  string
	PDFURL   string
}

// Subject returns the mail subject for n new papers.
func Subject(n int) string {
	return fmt.Sprintf("新着論文のお知らせ (%d件)", n)
}

// Compose renders grouped into a notification. ok is false when grouped holds no
// papers, in which case nothing should be sent.
func Compose(grouped models.GroupedResult, opts ComposeOptions) (Message, bool, error) {
	if grouped.Empty() {
		return Message{}, false, nil
	}
	view := messageView{Total: grouped.UniquePapers()}
	for _, d := range grouped.Dates {
		dv := dateView{Heading: dateHeading(d.Date)}
		for _, k := range d.Keywords {
			if len(k.Papers) == 0 {
				continue
			}
			kv := keywordView{Keyword: k.Keyword}
			for i := range k.Papers {
				kv.Papers = append(kv.Papers, newPaperView(&k.Papers[i], opts))
			}
			dv.Keywords = append(dv.Keywords, kv)
		}
		if len(dv.Keywords) > 0 {
			view.Dates = append(view.Dates, dv)
		}
	}

	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, view); err != nil {
		return Message{}, false, fmt.Errorf("render text body: %w", err)
	}
	if err := htmlTemplate.Execute(&html, view); err != nil {
		return Message{}, false, fmt.Errorf("render html body: %w", err)
	}
	return Message{
		Subject: Subject(view.Total),
		Text:    text.String(),
		HTML:    html.String(),
	}, true, nil
}

func newPaperView(p *models.Paper, opts ComposeOptions) paperView {
	v := paperView{
		Title:    p.Title,
		Authors:  p.Authors,
		Category: p.PrimaryCategory,
		Summary:  p.Summary,
		PDFURL:   p.PDFURL,
	}
	if p.TitleJA != "" && p.TitleJA != p.Title {
		v.TitleJA = p.TitleJA
	}
	if opts.UseJapaneseSummary && p.SummaryJA != "" {
		v.Summary = p.SummaryJA
	}
	if v.Summary == "" {
		v.Summary = noSummary
	}
	return v
}

func dateHeading(key string) string {
	t, err := time.Parse(models.DayLayout, key)
	if err != nil {
		return unknownDateHeading
	}
	return t.Format(dateHeadingLayout)
}
