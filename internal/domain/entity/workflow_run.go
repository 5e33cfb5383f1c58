package entity

import (
	"time"

	"github.com/lib/pq"
)

// WorkflowRunKind 运行类型
type WorkflowRunKind string

const (
	WorkflowRunKindSteps      WorkflowRunKind = "steps"
	WorkflowRunKindPlan       WorkflowRunKind = "plan"
	WorkflowRunKindPredefined WorkflowRunKind = "predefined"
	WorkflowRunKindDelegate   WorkflowRunKind = "delegate"
)

// WorkflowRunStatus 运行状态
type WorkflowRunStatus string

const (
	WorkflowRunStatusPending   WorkflowRunStatus = "pending"
	WorkflowRunStatusRunning   WorkflowRunStatus = "running"
	WorkflowRunStatusCompleted WorkflowRunStatus = "completed"
	WorkflowRunStatusFailed    WorkflowRunStatus = "failed"
)

// WorkflowRun 一次工作流运行的持久化快照
type WorkflowRun struct {
	ID               string            `json:"id" gorm:"type:varchar(64);primaryKey"`
	UserID           string            `json:"user_id" gorm:"type:varchar(64);index;not null"`
	Kind             WorkflowRunKind   `json:"kind" gorm:"type:varchar(16);not null"`
	Name             string            `json:"name,omitempty" gorm:"type:varchar(64)"`
	Goal             string            `json:"goal,omitempty" gorm:"type:text"`
	Status           WorkflowRunStatus `json:"status" gorm:"type:varchar(16);index;not null"`
	Agents           pq.StringArray    `json:"agents" gorm:"type:text[]"`
	Records          string            `json:"records" gorm:"type:jsonb"`
	Result           string            `json:"result" gorm:"type:jsonb"`
	Error            string            `json:"error,omitempty" gorm:"type:text"`
	PromptTokens     int               `json:"prompt_tokens" gorm:"not null;default:0"`
	CompletionTokens int               `json:"completion_tokens" gorm:"not null;default:0"`
	TotalTokens      int               `json:"total_tokens" gorm:"not null;default:0"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       *time.Time        `json:"finished_at,omitempty"`
	DurationMs       int64             `json:"duration_ms"`
}

func (WorkflowRun) TableName() string {
	return "workflow_runs"
}
