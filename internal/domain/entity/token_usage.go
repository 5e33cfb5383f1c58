// Package entity 定义领域实体
package entity

import "time"

// TokenUsageRecord 单次成功 LLM 调用的用量流水（只追加）
type TokenUsageRecord struct {
	ID               string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID           string    `json:"user_id" gorm:"type:varchar(64);index;not null"`
	RunID            string    `json:"run_id,omitempty" gorm:"type:varchar(64);index"`
	Provider         string    `json:"provider" gorm:"type:varchar(32);not null"`
	Model            string    `json:"model" gorm:"type:varchar(64);index;not null"`
	Service          string    `json:"service" gorm:"type:varchar(64);index"`
	Task             string    `json:"task" gorm:"type:varchar(64)"`
	TaskType         string    `json:"task_type" gorm:"type:varchar(64)"`
	PromptTokens     int       `json:"prompt_tokens" gorm:"not null;default:0"`
	CompletionTokens int       `json:"completion_tokens" gorm:"not null;default:0"`
	TotalTokens      int       `json:"total_tokens" gorm:"not null;default:0"`
	EstimatedCost    float64   `json:"estimated_cost" gorm:"type:numeric(12,6);not null;default:0"`
	Estimated        bool      `json:"estimated" gorm:"not null;default:false"`
	DurationMs       int       `json:"duration_ms" gorm:"not null;default:0"`
	CreatedAt        time.Time `json:"created_at" gorm:"index"`
}

func (TokenUsageRecord) TableName() string {
	return "token_usage_records"
}
