package literature

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"scholar-ai-api/internal/application/literature"
	"scholar-ai-api/internal/config"
)

const semanticScholarFields = "title,abstract,authors,year,venue,url,externalIds,citationCount"

// SemanticScholar Semantic Scholar Graph API 客户端
type SemanticScholar struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewSemanticScholar 创建客户端
func NewSemanticScholar(cfg config.LiteratureSourceConfig) *SemanticScholar {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.semanticscholar.org"
	}
	return &SemanticScholar{
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(cfg.Timeout),
		limiter: newLimiter(cfg.RequestsPerSecond),
	}
}

func (s *SemanticScholar) Name() string {
	return "semantic_scholar"
}

type s2SearchResponse struct {
	Total int       `json:"total"`
	Data  []s2Paper `json:"data"`
}

type s2Paper struct {
	PaperID       string         `json:"paperId"`
	Title         string         `json:"title"`
	Abstract      string         `json:"abstract"`
	Year          int            `json:"year"`
	Venue         string         `json:"venue"`
	URL           string         `json:"url"`
	CitationCount int            `json:"citationCount"`
	ExternalIDs   map[string]any `json:"externalIds"`
	Authors       []s2Author     `json:"authors"`
}

type s2Author struct {
	Name string `json:"name"`
}

func (s *SemanticScholar) Search(ctx context.Context, q literature.Query) ([]literature.Paper, error) {
	params := url.Values{}
	params.Set("query", q.Topic)
	params.Set("fields", semanticScholarFields)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	req, err := http.NewRequest(http.MethodGet, s.baseURL+"/graph/v1/paper/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build semantic scholar request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	body, err := do(ctx, s.client, s.limiter, s.Name(), req)
	if err != nil {
		return nil, err
	}

	var parsed s2SearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode semantic scholar response: %w", err)
	}

	papers := make([]literature.Paper, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		p := literature.Paper{
			ID:        d.PaperID,
			Title:     strings.TrimSpace(d.Title),
			Abstract:  d.Abstract,
			Year:      d.Year,
			Venue:     d.Venue,
			URL:       d.URL,
			Citations: d.CitationCount,
			Source:    s.Name(),
		}
		if doi, ok := d.ExternalIDs["DOI"].(string); ok {
			p.DOI = doi
		}
		for _, a := range d.Authors {
			p.Authors = append(p.Authors, a.Name)
		}
		papers = append(papers, p)
	}
	return papers, nil
}
