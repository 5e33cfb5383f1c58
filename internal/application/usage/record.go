// Package usage 记录 LLM token 用量并提供聚合统计
package usage

import (
	"strings"
	"time"

	"scholar-ai-api/internal/domain/entity"
	"scholar-ai-api/internal/infrastructure/llm"
)

// Record 单次成功补全的用量流水
type Record struct {
	Timestamp        time.Time `json:"timestamp"`
	Model            string    `json:"model"`
	Provider         string    `json:"provider"`
	Service          string    `json:"service"`
	Task             string    `json:"task"`
	TaskType         string    `json:"task_type"`
	UserID           string    `json:"user_id"`
	RunID            string    `json:"run_id,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	EstimatedCost    float64   `json:"estimated_cost"`
	// Estimated 为 true 表示用量由字符数估算（流式调用）
	Estimated bool          `json:"estimated"`
	Duration  time.Duration `json:"duration"`
}

// Usage 返回归一化的用量
func (r Record) Usage() llm.Usage {
	return llm.NewUsage(r.PromptTokens, r.CompletionTokens)
}

func (r Record) toEntity() *entity.TokenUsageRecord {
	return &entity.TokenUsageRecord{
		UserID:           r.UserID,
		RunID:            r.RunID,
		Provider:         strings.TrimSpace(r.Provider),
		Model:            strings.TrimSpace(r.Model),
		Service:          r.Service,
		Task:             r.Task,
		TaskType:         r.TaskType,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
		TotalTokens:      r.TotalTokens,
		EstimatedCost:    r.EstimatedCost,
		Estimated:        r.Estimated,
		DurationMs:       int(r.Duration.Milliseconds()),
		CreatedAt:        r.Timestamp,
	}
}

// EstimateTokens 按每 4 个字符 1 个 token 估算，非空文本至少为 1
func EstimateTokens(text string) int {
	chars := len([]rune(text))
	tokens := chars / 4
	if chars > 0 && tokens == 0 {
		tokens = 1
	}
	return tokens
}
