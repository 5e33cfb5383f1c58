package literature

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scholar-ai-api/internal/config"
)

// Searcher 面向 agent 的文献检索入口
type Searcher struct {
	sources        []Source
	perSourceLimit int
	maxParallel    int
}

// NewSearcher 创建检索器
func NewSearcher(cfg *config.LiteratureConfig, sources ...Source) *Searcher {
	s := &Searcher{sources: sources, perSourceLimit: 10}
	if cfg != nil {
		if cfg.PerSourceLimit > 0 {
			s.perSourceLimit = cfg.PerSourceLimit
		}
		s.maxParallel = cfg.MaxParallel
	}
	return s
}

// Sources 已配置的源名称
func (s *Searcher) Sources() []string {
	names := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		names = append(names, src.Name())
	}
	return names
}

// Search 检索主题；部分源失败时返回成功子集，全部失败时返回 ErrAllSourcesFailed
func (s *Searcher) Search(ctx context.Context, topic string, limit int) (*FanOutResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("literature search requires a topic")
	}
	if len(s.sources) == 0 {
		return &FanOutResult{Papers: []Paper{}}, nil
	}
	if limit <= 0 {
		limit = s.perSourceLimit
	}

	res := FanOut(ctx, s.sources, Query{Topic: topic, Limit: limit}, s.maxParallel)
	if len(res.Errors) == len(s.sources) {
		return res, fmt.Errorf("%w: %v", ErrAllSourcesFailed, res.Errors)
	}
	return res, nil
}
