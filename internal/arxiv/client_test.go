package arxiv

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/ronbun/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/query</id>
  <updated>2024-01-06T00:00:00-05:00</updated>
  <entry>
    <id>http://arxiv.org/abs/2401.01234v2</id>
    <updated>2024-01-05T18:00:00Z</updated>
    <published>2024-01-05T18:00:00Z</published>
    <title>A Transformer
      Model</title>
    <summary>  We propose a
      transformer.  </summary>
    <author><name>Alice Smith</name></author>
    <author><name>Bob Jones</name></author>
    <link href="http://arxiv.org/abs/2401.01234v2" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2401.01234v2" rel="related" type="application/pdf"/>
    <arxiv:primary_category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.AI" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2312.09999v1</id>
    <updated>2023-12-20T10:00:00Z</updated>
    <published>2023-12-20T10:00:00Z</published>
    <title>Old Graph Paper</title>
    <summary>Graphs.</summary>
    <author><name>Carol</name></author>
    <link href="http://arxiv.org/abs/2312.09999v1" rel="alternate" type="text/html"/>
    <category term="math.CO" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
</feed>`

func newTestClient(url string, attempts uint) *Client {
	return NewClient(Options{BaseURL: url, RetryAttempts: attempts, RetryDelay: time.Millisecond, Timeout: 5 * time.Second})
}

func TestClient_Search(t *testing.T) {
	tests := []struct {
		name      string
		request   SearchRequest
		wantQuery string
		wantMax   string
		wantIDs   []string
	}{
		{
			name:      "keyword with categories",
			request:   SearchRequest{Query: "transformer", Categories: []string{"cs.LG", "cs.AI"}, MaxResults: 50},
			wantQuery: "(transformer) AND (cat:cs.LG OR cat:cs.AI)",
			wantMax:   "50",
			wantIDs:   []string{"2401.01234", "2312.09999"},
		},
		{
			name:      "date floor drops older papers",
			request:   SearchRequest{Query: "graph", Since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			wantQuery: "graph",
			wantMax:   "10",
			wantIDs:   []string{"2401.01234"},
		},
		{
			name:      "max results capped",
			request:   SearchRequest{Categories: []string{"cs.CV"}, MaxResults: 500},
			wantQuery: "cat:cs.CV",
			wantMax:   "100",
			wantIDs:   []string{"2401.01234", "2312.09999"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, tt.wantQuery, q.Get("search_query"))
				assert.Equal(t, tt.wantMax, q.Get("max_results"))
				assert.Equal(t, "submittedDate", q.Get("sortBy"))
				assert.Equal(t, "descending", q.Get("sortOrder"))
				w.Header().Set("Content-Type", "application/atom+xml")
				_, _ = w.Write([]byte(sampleFeed))
			}))
			defer server.Close()

			client := newTestClient(server.URL, 0)
			defer client.Close()

			papers, err := client.Search(context.Background(), tt.request)
			require.NoError(t, err)
			ids := make([]string, 0, len(papers))
			for _, p := range papers {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestClient_SearchNormalizesEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	papers, err := newTestClient(server.URL, 0).Search(context.Background(), SearchRequest{Query: "x"})
	require.NoError(t, err)
	require.Len(t, papers, 2)

	p := papers[0]
	assert.Equal(t, "2401.01234", p.ID)
	assert.Equal(t, "http://arxiv.org/abs/2401.01234v2", p.EntryID)
	assert.Equal(t, "A Transformer Model", p.Title)
	assert.Equal(t, "We propose a transformer.", p.Summary)
	assert.Equal(t, []string{"Alice Smith", "Bob Jones"}, p.Authors)
	assert.Equal(t, "cs.LG", p.PrimaryCategory)
	assert.Equal(t, []string{"cs.LG", "cs.AI"}, p.Categories)
	assert.Equal(t, "http://arxiv.org/pdf/2401.01234v2", p.PDFURL)
	assert.Equal(t, "https://arxiv.org/abs/2401.01234", p.URL)
	day, ok := p.PublishedDay()
	assert.True(t, ok)
	assert.Equal(t, "2024-01-05", day)

	old := papers[1]
	assert.Equal(t, "math.CO", old.PrimaryCategory, "primary falls back to the first category")
	assert.Equal(t, "https://arxiv.org/pdf/2312.09999", old.PDFURL)
}

func TestClient_SearchRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	papers, err := newTestClient(server.URL, 3).Search(context.Background(), SearchRequest{Query: "x"})
	require.NoError(t, err)
	assert.Len(t, papers, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_SearchUpstreamFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad query"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Search(context.Background(), SearchRequest{Query: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx responses are not retried")
}

func TestClient_SearchEmptyQuery(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:0", 0).Search(context.Background(), SearchRequest{Query: "  "})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, "llm", BuildQuery(" llm ", nil))
	assert.Equal(t, "cat:cs.CL OR cat:stat.ML", BuildQuery("", []string{"cs.CL", " ", "stat.ML", "cs.CL"}))
	assert.Equal(t, `("large language") AND (cat:cs.CL)`, BuildQuery(KeywordQuery("large language"), []string{"cs.CL"}))
}

func TestKeywordQuery(t *testing.T) {
	assert.Equal(t, "diffusion", KeywordQuery("diffusion"))
	assert.Equal(t, `"vision transformer"`, KeywordQuery("  vision transformer "))
}

func TestParseID(t *testing.T) {
	tests := map[string]string{
		"http://arxiv.org/abs/2401.01234v2":     "2401.01234",
		"https://arxiv.org/pdf/2401.01234v1":    "2401.01234",
		"https://arxiv.org/pdf/2401.01234.pdf":  "2401.01234",
		"2401.01234":                            "2401.01234",
		"http://arxiv.org/abs/hep-th/9901001v3": "hep-th/9901001",
		"solv-int/9901001":                      "solv-int/9901001",
		"":                                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseID(in), in)
	}
}

func TestCategories(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 2)
	assert.Equal(t, "cs", cats[0].ID)
	assert.True(t, KnownCategory("stat.ML"))
	assert.False(t, KnownCategory("q-bio.NC"))

	cats[0].Subcategories[0].Tag = "mutated"
	assert.True(t, KnownCategory("cs.AI"), "Categories must return a copy")
}

func TestParseFeed_PDFLinks(t *testing.T) {
	feed, err := ParseFeed(strings.NewReader(sampleFeed))
	require.NoError(t, err)
	require.Len(t, feed.Items, 2)

	first := NormalizeItem(feed.Items[0])
	assert.Equal(t, "http://arxiv.org/pdf/2401.01234v2", first.PDFURL)
	assert.Equal(t, "cs.LG", first.PrimaryCategory)

	second := NormalizeItem(feed.Items[1])
	assert.Equal(t, "https://arxiv.org/pdf/2312.09999", second.PDFURL, "entries without a pdf link get a rebuilt one")
}

func TestParseFeed_Invalid(t *testing.T) {
	_, err := ParseFeed(strings.NewReader("not xml"))
	assert.Error(t, err)
}

func TestKeywordRequest(t *testing.T) {
	req := KeywordRequest(models.WatchedKeyword{Keyword: "graph neural", Categories: []string{"cs.LG"}}, 25)
	assert.Equal(t, `"graph neural"`, req.Query)
	assert.Equal(t, []string{"cs.LG"}, req.Categories)
	assert.Equal(t, 25, req.MaxResults)
	assert.True(t, req.Since.IsZero())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "論文の...", truncate("論文の要約", 3))
	assert.True(t, utf8.ValidString(truncate(strings.Repeat("é", 300), 200)))
}
