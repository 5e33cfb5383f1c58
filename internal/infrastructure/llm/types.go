// Package llm 提供与具体提供商无关的 LLM 适配层
package llm

import (
	"fmt"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 归一化的对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage 构造 system 消息
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage 构造 user 消息
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// CallRequest 单次提供商调用参数
type CallRequest struct {
	// Model 逻辑模型名
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature *float32
}

// Usage token 用量，TotalTokens 恒等于 PromptTokens + CompletionTokens
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewUsage 构造归一化用量，负数按 0 处理
func NewUsage(prompt, completion int) Usage {
	prompt = max(prompt, 0)
	completion = max(completion, 0)
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// Add 累加用量
func (u Usage) Add(o Usage) Usage {
	return NewUsage(u.PromptTokens+o.PromptTokens, u.CompletionTokens+o.CompletionTokens)
}

// Response 归一化的补全结果
type Response struct {
	Content  string `json:"content"`
	Usage    Usage  `json:"usage"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// ProviderCallFailed 提供商调用失败（网络、鉴权、限流、响应异常）
type ProviderCallFailed struct {
	Provider string
	Model    string
	Cause    error
}

func (e *ProviderCallFailed) Error() string {
	return fmt.Sprintf("llm provider %s call failed (model=%s): %v", e.Provider, e.Model, e.Cause)
}

func (e *ProviderCallFailed) Unwrap() error {
	return e.Cause
}
