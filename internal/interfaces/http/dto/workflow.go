package dto

import (
	"time"

	"scholar-ai-api/internal/domain/entity"
	"scholar-ai-api/internal/infrastructure/llm"
	"scholar-ai-api/internal/workflow/model"
)

// StepRequest 工作流步骤
type StepRequest struct {
	AgentID string         `json:"agent_id"`
	Task    string         `json:"task"`
	Params  map[string]any `json:"params,omitempty"`
}

// ExecuteWorkflowRequest 执行自定义步骤
type ExecuteWorkflowRequest struct {
	Steps   []StepRequest  `json:"steps" binding:"required,min=1,max=50"`
	Context map[string]any `json:"context,omitempty"`
}

// ToSteps 转换为引擎步骤
func (r *ExecuteWorkflowRequest) ToSteps() []model.Step {
	out := make([]model.Step, 0, len(r.Steps))
	for _, s := range r.Steps {
		out = append(out, model.Step{AgentID: s.AgentID, Task: s.Task, Params: s.Params})
	}
	return out
}

// PlanRequest 规划并执行
type PlanRequest struct {
	Goal    string         `json:"goal" binding:"required,max=2000"`
	Context map[string]any `json:"context,omitempty"`
}

// PredefinedRequest 预定义工作流参数
type PredefinedRequest struct {
	Params map[string]any `json:"params,omitempty"`
}

// AgentTaskRequest 单 agent 任务输入
type AgentTaskRequest struct {
	Input map[string]any `json:"input,omitempty"`
}

// EnqueueWorkflowRequest 异步工作流；kind 为 steps/plan/predefined
type EnqueueWorkflowRequest struct {
	Kind   model.RunKind  `json:"kind" binding:"required,oneof=steps plan predefined"`
	Name   string         `json:"name,omitempty"`
	Goal   string         `json:"goal,omitempty"`
	Steps  []StepRequest  `json:"steps,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// ToSteps 转换为引擎步骤
func (r *EnqueueWorkflowRequest) ToSteps() []model.Step {
	return (&ExecuteWorkflowRequest{Steps: r.Steps}).ToSteps()
}

// EnqueueResponse 入队结果
type EnqueueResponse struct {
	RunID     string `json:"run_id"`
	StreamID  string `json:"stream_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// RecordResponse 步骤执行记录
type RecordResponse struct {
	StepIndex       int            `json:"step_index"`
	AgentID         string         `json:"agent_id"`
	Task            string         `json:"task"`
	Params          map[string]any `json:"params,omitempty"`
	ResultSummary   string         `json:"result_summary,omitempty"`
	Status          string         `json:"status"`
	Error           string         `json:"error,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	TokenUsage      llm.Usage      `json:"token_usage"`
}

// RunResponse 运行结果
type RunResponse struct {
	RunID         string            `json:"run_id"`
	Kind          string            `json:"kind"`
	Name          string            `json:"name,omitempty"`
	Goal          string            `json:"goal,omitempty"`
	Status        string            `json:"status"`
	Error         string            `json:"error,omitempty"`
	Steps         []model.Step      `json:"steps"`
	Results       []map[string]any  `json:"results"`
	Context       map[string]any    `json:"context,omitempty"`
	Records       []*RecordResponse `json:"records"`
	TokenUsage    llm.Usage         `json:"token_usage"`
	EstimatedCost float64           `json:"estimated_cost"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    *time.Time        `json:"finished_at,omitempty"`
	DurationMs    int64             `json:"duration_ms"`
}

// ToRunResponse 转换运行结果
func ToRunResponse(r *model.RunResult, withContext bool) *RunResponse {
	if r == nil {
		return nil
	}
	resp := &RunResponse{
		RunID:         r.RunID,
		Kind:          string(r.Kind),
		Name:          r.Name,
		Goal:          r.Goal,
		Status:        string(r.Status),
		Error:         r.Error,
		Steps:         r.Steps,
		Results:       r.Results,
		Records:       make([]*RecordResponse, 0, len(r.Records)),
		TokenUsage:    r.TokenUsage,
		EstimatedCost: r.EstimatedCost,
		StartedAt:     r.StartedAt,
		DurationMs:    r.Duration.Milliseconds(),
	}
	if withContext {
		resp.Context = r.Context
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		resp.FinishedAt = &finished
	}
	for _, rec := range r.Records {
		resp.Records = append(resp.Records, &RecordResponse{
			StepIndex:       rec.StepIndex,
			AgentID:         rec.AgentID,
			Task:            rec.Task,
			Params:          rec.Params,
			ResultSummary:   rec.ResultSummary,
			Status:          string(rec.Status),
			Error:           rec.Error,
			StartedAt:       rec.StartedAt,
			ExecutionTimeMs: rec.ExecutionTime.Milliseconds(),
			TokenUsage:      rec.TokenUsage,
		})
	}
	return resp
}

// DelegateResponse 单 agent 调用结果
type DelegateResponse struct {
	RunID         string         `json:"run_id"`
	AgentID       string         `json:"agent_id"`
	Task          string         `json:"task"`
	Result        map[string]any `json:"result"`
	TokenUsage    llm.Usage      `json:"token_usage"`
	EstimatedCost float64        `json:"estimated_cost"`
	DurationMs    int64          `json:"duration_ms"`
}

// RunSummaryResponse 运行列表项
type RunSummaryResponse struct {
	RunID       string     `json:"run_id"`
	Kind        string     `json:"kind"`
	Name        string     `json:"name,omitempty"`
	Goal        string     `json:"goal,omitempty"`
	Status      string     `json:"status"`
	Agents      []string   `json:"agents"`
	TotalTokens int        `json:"total_tokens"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	DurationMs  int64      `json:"duration_ms"`
}

// ToRunSummary 持久化快照转换为列表项
func ToRunSummary(e *entity.WorkflowRun) *RunSummaryResponse {
	return &RunSummaryResponse{
		RunID:       e.ID,
		Kind:        string(e.Kind),
		Name:        e.Name,
		Goal:        e.Goal,
		Status:      string(e.Status),
		Agents:      []string(e.Agents),
		TotalTokens: e.TotalTokens,
		StartedAt:   e.StartedAt,
		FinishedAt:  e.FinishedAt,
		DurationMs:  e.DurationMs,
	}
}

// ToRunSummaryFromResult 内存运行结果转换为列表项
func ToRunSummaryFromResult(r *model.RunResult) *RunSummaryResponse {
	resp := &RunSummaryResponse{
		RunID:       r.RunID,
		Kind:        string(r.Kind),
		Name:        r.Name,
		Goal:        r.Goal,
		Status:      string(r.Status),
		Agents:      r.Agents(),
		TotalTokens: r.TokenUsage.TotalTokens,
		StartedAt:   r.StartedAt,
		DurationMs:  r.Duration.Milliseconds(),
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		resp.FinishedAt = &finished
	}
	return resp
}

// AgentListResponse 已注册 agent 与预定义工作流
type AgentListResponse struct {
	Agents    []string `json:"agents"`
	Workflows []string `json:"workflows"`
	Models    []string `json:"models"`
}
