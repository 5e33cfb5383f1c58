// Package model 定义工作流引擎的数据结构
package model

import (
	"strings"
	"time"

	"scholar-ai-api/internal/infrastructure/llm"
)

// RefPrefix 参数值以该前缀开头时表示引用执行上下文中的键
const RefPrefix = "$"

// ResultSuffix 每步结果在上下文中的键后缀：<task>_result
const ResultSuffix = "_result"

// ExecutionContext 单次运行的共享上下文，仅由引擎写入
type ExecutionContext map[string]any

// Step 工作流步骤
type Step struct {
	AgentID string `json:"agent_id"`
	Task    string `json:"task"`
	// Params 字符串值以 $ 开头时在执行前从上下文解析
	Params map[string]any `json:"params,omitempty"`
}

// ResultKey 本步结果写入上下文时使用的键
func (s Step) ResultKey() string {
	return s.Task + ResultSuffix
}

// IsRef 判断参数值是否为上下文引用
func IsRef(v string) bool {
	return strings.HasPrefix(v, RefPrefix) && len(v) > len(RefPrefix)
}

// StepStatus 步骤状态
type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// ExecutionRecord 每个步骤无论成败都有一条记录
type ExecutionRecord struct {
	StepIndex     int            `json:"step_index"`
	AgentID       string         `json:"agent_id"`
	Task          string         `json:"task"`
	Params        map[string]any `json:"params,omitempty"`
	ResultSummary string         `json:"result_summary,omitempty"`
	Status        StepStatus     `json:"status"`
	Error         string         `json:"error,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	ExecutionTime time.Duration  `json:"execution_time_ns"`
	TokenUsage    llm.Usage      `json:"token_usage"`
}

// RunKind 运行类型
type RunKind string

const (
	RunKindSteps      RunKind = "steps"
	RunKindPlan       RunKind = "plan"
	RunKindPredefined RunKind = "predefined"
	RunKindDelegate   RunKind = "delegate"
)

// RunStatus 运行状态：Pending -> Running -> Completed | Failed
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal 运行是否已结束
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// RunResult 一次运行的完整结果
type RunResult struct {
	RunID  string    `json:"run_id"`
	Kind   RunKind   `json:"kind"`
	Name   string    `json:"name,omitempty"`
	Goal   string    `json:"goal,omitempty"`
	UserID string    `json:"user_id,omitempty"`
	Status RunStatus `json:"status"`
	Steps  []Step    `json:"steps"`
	// Results 与 Steps 一一对应；跳过的步骤为 nil，失败步骤为 {"error": msg}
	Results       []map[string]any  `json:"results"`
	Context       ExecutionContext  `json:"context"`
	Records       []ExecutionRecord `json:"records"`
	TokenUsage    llm.Usage         `json:"token_usage"`
	EstimatedCost float64           `json:"estimated_cost"`
	Error         string            `json:"error,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
	Duration      time.Duration     `json:"duration_ns"`
}

// Agents 按步骤顺序返回 agent 标识
func (r *RunResult) Agents() []string {
	out := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		out = append(out, s.AgentID)
	}
	return out
}

// PlannedStep 规划器输出的单个步骤
type PlannedStep struct {
	Agent  string         `json:"agent"`
	Task   string         `json:"task"`
	Params map[string]any `json:"params,omitempty"`
}

// Plan 规划器输出
type Plan struct {
	Steps []PlannedStep `json:"steps"`
}
