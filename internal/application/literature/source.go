// Package literature 并发检索多个学术文献源并合并结果
package literature

import (
	"context"
	"strings"
)

// Paper 归一化的文献记录
type Paper struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Abstract  string   `json:"abstract,omitempty"`
	Authors   []string `json:"authors,omitempty"`
	Year      int      `json:"year,omitempty"`
	Venue     string   `json:"venue,omitempty"`
	URL       string   `json:"url,omitempty"`
	DOI       string   `json:"doi,omitempty"`
	Citations int      `json:"citations,omitempty"`
	Source    string   `json:"source"`
}

// dedupKey 优先按 DOI 去重，其次按规范化标题
func (p Paper) dedupKey() string {
	if p.DOI != "" {
		return "doi:" + strings.ToLower(p.DOI)
	}
	return "title:" + strings.Join(strings.Fields(strings.ToLower(p.Title)), " ")
}

// Query 检索条件
type Query struct {
	Topic string `json:"topic"`
	Limit int    `json:"limit"`
}

// Source 单个文献源
type Source interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Paper, error)
}
