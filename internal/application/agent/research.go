package agent

import (
	"context"
	"strconv"
	"strings"

	"scholar-ai-api/internal/application/literature"
	"scholar-ai-api/pkg/logger"
)

// TaskSearchLiterature research agent 的数据检索任务，不调用 LLM
const TaskSearchLiterature = "search_literature"

// LiteratureSearcher 文献检索依赖
type LiteratureSearcher interface {
	Search(ctx context.Context, topic string, limit int) (*literature.FanOutResult, error)
}

// ResearchAgent 在通用 agent 之上增加文献检索任务
type ResearchAgent struct {
	*BaseAgent
	searcher LiteratureSearcher
}

// NewResearchAgent searcher 为 nil 时 search_literature 返回空结果
func NewResearchAgent(completer Completer, prompts Renderer, searcher LiteratureSearcher) *ResearchAgent {
	return &ResearchAgent{
		BaseAgent: NewBaseAgent(IDResearch, completer, prompts),
		searcher:  searcher,
	}
}

func (a *ResearchAgent) Execute(ctx context.Context, task string, input map[string]any) (map[string]any, error) {
	if strings.TrimSpace(task) != TaskSearchLiterature {
		return a.BaseAgent.Execute(ctx, task, input)
	}

	topic, _ := input["topic"].(string)
	if topic == "" {
		topic, _ = input["query"].(string)
	}
	limit := intParam(input["limit"])

	if a.searcher == nil {
		logger.Warn(ctx, "literature searcher not configured", "topic", topic)
		return map[string]any{"topic": topic, "papers": []literature.Paper{}, "sources": []string{}}, nil
	}

	res, err := a.searcher.Search(ctx, topic, limit)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"topic":   topic,
		"papers":  res.Papers,
		"sources": res.Succeeded(),
	}
	if len(res.Errors) > 0 {
		out["source_errors"] = res.Errors
	}
	return out, nil
}

func intParam(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	}
	return 0
}
