// Package llmtest 提供测试用的可编排 ChatModel
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"scholar-ai-api/internal/infrastructure/llm"
)

// ErrScripted 默认的模拟失败
var ErrScripted = errors.New("scripted failure")

// Reply 单次调用的预设结果
type Reply struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	Err              error
	// NoUsage 为 true 时响应不携带用量
	NoUsage bool
}

// Call 一次被记录的调用
type Call struct {
	Messages []*schema.Message
	Options  *model.Options
}

// ChatModel 按顺序返回预设结果的 model.BaseChatModel，最后一个结果会被重复使用
type ChatModel struct {
	mu      sync.Mutex
	replies []Reply
	calls   []Call
	// Respond 非空时优先于 replies，可根据输入动态应答
	Respond func(msgs []*schema.Message) Reply
}

// NewChatModel 创建模拟 ChatModel
func NewChatModel(replies ...Reply) *ChatModel {
	return &ChatModel{replies: replies}
}

// Failing 总是失败的 ChatModel
func Failing() *ChatModel {
	return NewChatModel(Reply{Err: ErrScripted})
}

func (m *ChatModel) next(msgs []*schema.Message, opts []model.Option) Reply {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Messages: msgs, Options: model.GetCommonOptions(nil, opts...)})
	if m.Respond != nil {
		return m.Respond(msgs)
	}
	if len(m.replies) == 0 {
		return Reply{Content: "ok"}
	}
	r := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return r
}

func (m *ChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	r := m.next(input, opts)
	if r.Err != nil {
		return nil, r.Err
	}
	return toMessage(r), nil
}

func (m *ChatModel) Stream(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	r := m.next(input, opts)
	if r.Err != nil {
		return nil, r.Err
	}
	var chunks []*schema.Message
	for _, part := range splitRunes(r.Content, 4) {
		chunks = append(chunks, schema.AssistantMessage(part, nil))
	}
	if !r.NoUsage {
		last := schema.AssistantMessage("", nil)
		last.ResponseMeta = usageMeta(r)
		chunks = append(chunks, last)
	}
	return schema.StreamReaderFromArray(chunks), nil
}

// Calls 返回已记录调用的副本
func (m *ChatModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 调用次数
func (m *ChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func toMessage(r Reply) *schema.Message {
	msg := schema.AssistantMessage(r.Content, nil)
	if !r.NoUsage {
		msg.ResponseMeta = usageMeta(r)
	}
	return msg
}

func usageMeta(r Reply) *schema.ResponseMeta {
	return &schema.ResponseMeta{
		FinishReason: "stop",
		Usage: &schema.TokenUsage{
			PromptTokens:     r.PromptTokens,
			CompletionTokens: r.CompletionTokens,
			TotalTokens:      r.PromptTokens + r.CompletionTokens,
		},
	}
}

func splitRunes(s string, size int) []string {
	runes := []rune(s)
	var parts []string
	for len(runes) > 0 {
		n := min(size, len(runes))
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	return parts
}

// Builder 按逻辑模型名返回预设的 ChatModel，未登记的名称构建失败
func Builder(models map[string]*ChatModel) llm.ChatModelBuilder {
	return func(_ context.Context, spec llm.ChatModelSpec) (model.BaseChatModel, error) {
		m, ok := models[spec.Name]
		if !ok {
			return nil, errors.New("no fake chat model for " + spec.Name)
		}
		return m, nil
	}
}
