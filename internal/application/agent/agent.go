// Package agent 实现基于提示词模板与补全服务的任务型 agent
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"scholar-ai-api/internal/application/completion"
	"scholar-ai-api/internal/infrastructure/llm"
	"scholar-ai-api/internal/workflow/node"
	"scholar-ai-api/internal/workflow/prompt"
	"scholar-ai-api/pkg/logger"
)

// 内置 agent 标识
const (
	IDResearch = "research"
	IDWriting  = "writing"
	IDEditing  = "editing"
	IDOutline  = "outline"
	IDPaper    = "paper"
	IDReview   = "review"
	IDPlanner  = "planner"
)

// Agent 接收任务名与输入，返回结构化结果
type Agent interface {
	ID() string
	Execute(ctx context.Context, task string, input map[string]any) (map[string]any, error)
}

// Completer agent 对补全服务的依赖
type Completer interface {
	CompleteWithFallbacks(ctx context.Context, req completion.Request) (*llm.Response, error)
}

// Renderer agent 对提示词注册表的依赖
type Renderer interface {
	Render(ctx context.Context, agentType, task string, input map[string]any) ([]*schema.Message, prompt.PromptID, error)
}

// ErrEmptyTask 任务名为空
var ErrEmptyTask = errors.New("agent task is empty")

type call struct {
	Task     string
	Input    map[string]any
	PromptID prompt.PromptID
	Messages []llm.Message
	Raw      string
	Model    string
}

// BaseAgent 模板渲染 -> 补全 -> 结构化解码
type BaseAgent struct {
	id        string
	completer Completer
	prompts   Renderer

	graphOnce sync.Once
	graph     compose.Runnable[*call, map[string]any]
	graphErr  error
}

// NewBaseAgent 创建通用 agent，id 同时作为模型路由使用的 agent 类型
func NewBaseAgent(id string, completer Completer, prompts Renderer) *BaseAgent {
	return &BaseAgent{id: id, completer: completer, prompts: prompts}
}

func (a *BaseAgent) ID() string {
	return a.id
}

func (a *BaseAgent) Execute(ctx context.Context, task string, input map[string]any) (map[string]any, error) {
	if a == nil || a.completer == nil || a.prompts == nil {
		return nil, fmt.Errorf("agent not configured")
	}
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrEmptyTask
	}
	if input == nil {
		input = map[string]any{}
	}

	graph, err := a.getGraph()
	if err != nil {
		return nil, err
	}
	return graph.Invoke(ctx, &call{Task: task, Input: input})
}

func (a *BaseAgent) getGraph() (compose.Runnable[*call, map[string]any], error) {
	a.graphOnce.Do(func() {
		a.graph, a.graphErr = a.buildGraph(context.Background())
	})
	return a.graph, a.graphErr
}

func (a *BaseAgent) buildGraph(ctx context.Context) (compose.Runnable[*call, map[string]any], error) {
	graph := compose.NewGraph[*call, map[string]any]()

	if err := graph.AddLambdaNode("template", compose.InvokableLambda(func(ctx context.Context, c *call) (*call, error) {
		msgs, id, err := a.prompts.Render(ctx, a.id, c.Task, c.Input)
		if err != nil {
			return nil, err
		}
		c.PromptID = id
		c.Messages = toMessages(msgs)
		return c, nil
	}), compose.WithNodeName(a.id+".template")); err != nil {
		return nil, err
	}

	if err := graph.AddLambdaNode("llm", compose.InvokableLambda(func(ctx context.Context, c *call) (*call, error) {
		resp, err := a.completer.CompleteWithFallbacks(ctx, completion.Request{
			Messages:  c.Messages,
			Service:   "agent",
			Task:      c.Task,
			TaskType:  a.id,
			AgentType: a.id,
		})
		if err != nil {
			return nil, err
		}
		c.Raw = resp.Content
		c.Model = resp.Model
		return c, nil
	}), compose.WithNodeName(a.id+".llm")); err != nil {
		return nil, err
	}

	if err := graph.AddLambdaNode("decode", compose.InvokableLambda(func(ctx context.Context, c *call) (map[string]any, error) {
		out, structured := node.DecodeStructured(c.Raw)
		if !structured {
			logger.Debug(ctx, "agent output is not structured, wrapped as content",
				"agent", a.id,
				"task", c.Task,
				"prompt", string(c.PromptID),
				"model", c.Model,
			)
		}
		return out, nil
	}), compose.WithNodeName(a.id+".decode")); err != nil {
		return nil, err
	}

	if err := graph.AddEdge(compose.START, "template"); err != nil {
		return nil, err
	}
	if err := graph.AddEdge("template", "llm"); err != nil {
		return nil, err
	}
	if err := graph.AddEdge("llm", "decode"); err != nil {
		return nil, err
	}
	if err := graph.AddEdge("decode", compose.END); err != nil {
		return nil, err
	}

	return graph.Compile(ctx, compose.WithGraphName(a.id+"_agent_graph"))
}

func toMessages(msgs []*schema.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}
