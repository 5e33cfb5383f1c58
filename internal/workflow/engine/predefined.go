package engine

import (
	"sort"

	"scholar-ai-api/internal/application/agent"
	"scholar-ai-api/internal/workflow/model"
)

// 预定义工作流名称
const (
	WorkflowPaperWriting      = "paper_writing"
	WorkflowLiteratureReview  = "literature_review"
	WorkflowOutlineGeneration = "outline_generation"
	WorkflowPaperReview       = "paper_review"
)

type templateFunc func(params map[string]any) []model.Step

// 模板中的 $var 指向尚未执行步骤的输出，运行时按顺序解析
var predefinedWorkflows = map[string]templateFunc{
	WorkflowPaperWriting: func(p map[string]any) []model.Step {
		return []model.Step{
			{AgentID: agent.IDResearch, Task: agent.TaskSearchLiterature, Params: pick(p, "topic", "limit")},
			{AgentID: agent.IDResearch, Task: "summarize_literature", Params: map[string]any{"papers": "$papers"}},
			{AgentID: agent.IDOutline, Task: "outline", Params: withDefaults(pick(p, "topic", "sections"), map[string]any{"literature": "$summarize_literature_result"})},
			{AgentID: agent.IDPaper, Task: "draft_paper", Params: map[string]any{"outline": "$outline_result", "literature": "$summarize_literature_result"}},
			{AgentID: agent.IDEditing, Task: "edit", Params: map[string]any{"text": "$draft_paper_result"}},
		}
	},
	WorkflowLiteratureReview: func(p map[string]any) []model.Step {
		return []model.Step{
			{AgentID: agent.IDResearch, Task: agent.TaskSearchLiterature, Params: pick(p, "topic", "limit")},
			{AgentID: agent.IDResearch, Task: "summarize_literature", Params: map[string]any{"papers": "$papers"}},
			{AgentID: agent.IDWriting, Task: "literature_review", Params: withDefaults(pick(p, "topic", "style"), map[string]any{"summary": "$summarize_literature_result"})},
			{AgentID: agent.IDEditing, Task: "edit", Params: map[string]any{"text": "$literature_review_result"}},
		}
	},
	WorkflowOutlineGeneration: func(p map[string]any) []model.Step {
		return []model.Step{
			{AgentID: agent.IDResearch, Task: "background", Params: pick(p, "topic")},
			{AgentID: agent.IDOutline, Task: "outline", Params: withDefaults(pick(p, "topic", "sections"), map[string]any{"background": "$background_result"})},
		}
	},
	WorkflowPaperReview: func(p map[string]any) []model.Step {
		return []model.Step{
			{AgentID: agent.IDReview, Task: "review", Params: pick(p, "paper", "title", "criteria")},
			{AgentID: agent.IDEditing, Task: "suggest_revisions", Params: map[string]any{"review": "$review_result", "paper": "$paper"}},
		}
	},
}

// PredefinedWorkflows 已知的预定义工作流名称
func PredefinedWorkflows() []string {
	names := make([]string, 0, len(predefinedWorkflows))
	for name := range predefinedWorkflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PredefinedSteps 展开预定义工作流
func PredefinedSteps(name string, params map[string]any) ([]model.Step, bool) {
	tpl, ok := predefinedWorkflows[name]
	if !ok {
		return nil, false
	}
	return tpl(params), true
}

func pick(p map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := p[k]; ok {
			out[k] = v
		}
	}
	return out
}

func withDefaults(dst, extra map[string]any) map[string]any {
	for k, v := range extra {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}
