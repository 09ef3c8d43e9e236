package arxiv

import (
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/ronbun/internal/models"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
)

const (
	absURLPrefix = "https://arxiv.org/abs/"
	pdfURLPrefix = "https://arxiv.org/pdf/"

	// customPDFURL is the Item.Custom key holding the entry's PDF link.
	customPDFURL = "pdf_url"
)

// ParseFeed decodes an arXiv Atom response. The translated items drop links with
// rel="related", so each entry's PDF link is kept in Item.Custom.
func ParseFeed(r io.Reader) (*gofeed.Feed, error) {
	parser := &atom.Parser{}
	raw, err := parser.Parse(r)
	if err != nil {
		return nil, err
	}
	translator := &gofeed.DefaultAtomTranslator{}
	feed, err := translator.Translate(raw)
	if err != nil {
		return nil, err
	}
	if len(feed.Items) != len(raw.Entries) {
		return nil, fmt.Errorf("translate feed: %d entries, %d items", len(raw.Entries), len(feed.Items))
	}
	for i, entry := range raw.Entries {
		href := entryPDFLink(entry)
		if href == "" || feed.Items[i] == nil {
			continue
		}
		if feed.Items[i].Custom == nil {
			feed.Items[i].Custom = make(map[string]string)
		}
		feed.Items[i].Custom[customPDFURL] = href
	}
	return feed, nil
}

func entryPDFLink(entry *atom.Entry) string {
	if entry == nil {
		return ""
	}
	for _, l := range entry.Links {
		if l == nil || l.Href == "" {
			continue
		}
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return strings.TrimSpace(l.Href)
		}
	}
	return ""
}

// NormalizeItem converts one Atom entry of the arXiv API into a Paper.
// Whitespace in the title and abstract is collapsed, the primary category is always
// part of Categories, and a missing or unparseable date leaves Published unknown.
func NormalizeItem(item *gofeed.Item) models.Paper {
	p := models.Paper{
		EntryID: strings.TrimSpace(item.GUID),
		Title:   collapseSpace(item.Title),
		Summary: collapseSpace(item.Description),
	}
	if p.EntryID == "" {
		p.EntryID = strings.TrimSpace(item.Link)
	}
	p.ID = ParseID(p.EntryID)

	for _, a := range item.Authors {
		if a == nil {
			continue
		}
		if name := strings.TrimSpace(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	p.PrimaryCategory = primaryCategory(item)
	cats := item.Categories
	if p.PrimaryCategory != "" {
		cats = append([]string{p.PrimaryCategory}, cats...)
	}
	p.Categories = models.NormalizeCategories(cats)
	if p.PrimaryCategory == "" && len(p.Categories) > 0 {
		p.PrimaryCategory = p.Categories[0]
	}

	if item.PublishedParsed != nil {
		p.Published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		p.Published = item.UpdatedParsed.UTC()
	}

	if p.ID != "" {
		p.URL = absURLPrefix + p.ID
	} else {
		p.URL = strings.TrimSpace(item.Link)
	}
	p.PDFURL = pdfLink(item, p.ID)
	return p
}

// NormalizeFeed converts every entry of feed, preserving provider order.
func NormalizeFeed(feed *gofeed.Feed) []models.Paper {
	if feed == nil {
		return []models.Paper{}
	}
	papers := make([]models.Paper, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		papers = append(papers, NormalizeItem(item))
	}
	return papers
}

// ParseID extracts the version-less arXiv identifier from an abs or pdf URL or a bare ID.
// "http://arxiv.org/abs/2401.01234v2" -> "2401.01234", "hep-th/9901001v1" -> "hep-th/9901001".
func ParseID(s string) string {
	s = strings.TrimSpace(s)
	for _, marker := range []string{"/abs/", "/pdf/"} {
		if i := strings.Index(s, marker); i >= 0 {
			s = s[i+len(marker):]
			break
		}
	}
	s = strings.TrimSuffix(s, ".pdf")
	if i := strings.LastIndex(s, "v"); i > 0 && i < len(s)-1 && isDigits(s[i+1:]) {
		s = s[:i]
	}
	return s
}

func primaryCategory(item *gofeed.Item) string {
	exts, ok := item.Extensions["arxiv"]
	if !ok {
		return ""
	}
	for _, e := range exts["primary_category"] {
		if term := strings.TrimSpace(e.Attrs["term"]); term != "" {
			return term
		}
	}
	return ""
}

func pdfLink(item *gofeed.Item, id string) string {
	if href := item.Custom[customPDFURL]; href != "" {
		return href
	}
	for _, l := range item.Links {
		if strings.Contains(l, "/pdf/") {
			return l
		}
	}
	if id == "" {
		return ""
	}
	return pdfURLPrefix + id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
