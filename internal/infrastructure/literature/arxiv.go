package literature

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"scholar-ai-api/internal/application/literature"
	"scholar-ai-api/internal/config"
)

// Arxiv arXiv Atom 查询接口客户端
type Arxiv struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewArxiv 创建客户端
func NewArxiv(cfg config.LiteratureSourceConfig) *Arxiv {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "http://export.arxiv.org"
	}
	return &Arxiv{
		baseURL: base,
		client:  newHTTPClient(cfg.Timeout),
		limiter: newLimiter(cfg.RequestsPerSecond),
	}
}

func (a *Arxiv) Name() string {
	return "arxiv"
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	DOI       string       `xml:"http://arxiv.org/schemas/atom doi"`
	Journal   string       `xml:"http://arxiv.org/schemas/atom journal_ref"`
	Authors   []atomAuthor `xml:"author"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

func (a *Arxiv) Search(ctx context.Context, q literature.Query) ([]literature.Paper, error) {
	params := url.Values{}
	params.Set("search_query", "all:"+q.Topic)
	params.Set("start", "0")
	if q.Limit > 0 {
		params.Set("max_results", strconv.Itoa(q.Limit))
	}

	req, err := http.NewRequest(http.MethodGet, a.baseURL+"/api/query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build arxiv request: %w", err)
	}

	body, err := do(ctx, a.client, a.limiter, a.Name(), req)
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}

	papers := make([]literature.Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		p := literature.Paper{
			ID:       arxivID(e.ID),
			Title:    collapse(e.Title),
			Abstract: collapse(e.Summary),
			Venue:    collapse(e.Journal),
			URL:      strings.TrimSpace(e.ID),
			DOI:      strings.TrimSpace(e.DOI),
			Source:   a.Name(),
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
			p.Year = t.Year()
		}
		for _, au := range e.Authors {
			p.Authors = append(p.Authors, strings.TrimSpace(au.Name))
		}
		papers = append(papers, p)
	}
	return papers, nil
}

func arxivID(id string) string {
	id = strings.TrimSpace(id)
	if i := strings.LastIndex(id, "/abs/"); i >= 0 {
		return id[i+len("/abs/"):]
	}
	return id
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
