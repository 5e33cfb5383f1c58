package engine

import (
	"encoding/json"
	"strings"

	"scholar-ai-api/internal/application/agent"
	"scholar-ai-api/internal/workflow/model"
	"scholar-ai-api/internal/workflow/node"
)

// TaskPlan 规划器任务名
const TaskPlan = "plan"

// DefaultPlan 规划不可用时的兜底：research -> writing -> editing，任务均为原始目标
func DefaultPlan(goal string) []model.Step {
	return []model.Step{
		{AgentID: agent.IDResearch, Task: goal},
		{AgentID: agent.IDWriting, Task: goal},
		{AgentID: agent.IDEditing, Task: goal},
	}
}

// parsePlan 从规划器输出中提取步骤；任何一步缺少 agent 或 task 时整体视为不可用
func parsePlan(out map[string]any) ([]model.Step, bool) {
	var plan model.Plan
	if raw, ok := out["steps"]; ok {
		if !remarshal(raw, &plan.Steps) {
			return nil, false
		}
	} else if content, ok := out[node.ContentKey].(string); ok {
		// 模型直接返回顶层数组
		if !decodeArray(content, &plan.Steps) {
			return nil, false
		}
	} else {
		return nil, false
	}

	if len(plan.Steps) == 0 {
		return nil, false
	}
	steps := make([]model.Step, 0, len(plan.Steps))
	for _, ps := range plan.Steps {
		a, t := strings.TrimSpace(ps.Agent), strings.TrimSpace(ps.Task)
		if a == "" || t == "" {
			return nil, false
		}
		steps = append(steps, model.Step{AgentID: a, Task: t, Params: ps.Params})
	}
	return steps, true
}

func remarshal(v any, dst any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func decodeArray(s string, dst any) bool {
	s = strings.TrimSpace(s)
	start, end := strings.Index(s, "["), strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(s[start:end+1]), dst) == nil
}
