package prompt

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 模板标识："<agent>.<task>"、"<agent>" 或 "generic"
type PromptID string

const PromptGeneric PromptID = "generic"

// promptFiles 模板文件对
type promptFiles struct {
	system string
	user   string
}

// staticPrompts (agent, task) 到模板文件的静态映射
var staticPrompts = map[PromptID]promptFiles{
	PromptGeneric:                   {"templates/generic.system.txt", "templates/generic.user.txt"},
	"planner.plan":                  {"templates/planner.system.txt", "templates/planner.plan.user.txt"},
	"research":                      {"templates/research.system.txt", "templates/research.user.txt"},
	"research.summarize_literature": {"templates/research.system.txt", "templates/research.summarize_literature.user.txt"},
	"outline":                       {"templates/outline.system.txt", "templates/outline.user.txt"},
	"writing":                       {"templates/writing.system.txt", "templates/writing.user.txt"},
	"editing":                       {"templates/editing.system.txt", "templates/editing.user.txt"},
	"paper":                         {"templates/paper.system.txt", "templates/paper.user.txt"},
	"review":                        {"templates/review.system.txt", "templates/review.user.txt"},
}

// Resolve 按 agent.task -> agent -> generic 的顺序查找模板
func Resolve(agentType, task string) PromptID {
	if id := PromptID(agentType + "." + task); hasPrompt(id) {
		return id
	}
	if id := PromptID(agentType); hasPrompt(id) {
		return id
	}
	return PromptGeneric
}

func hasPrompt(id PromptID) bool {
	_, ok := staticPrompts[id]
	return ok
}

// Registry 模板注册表，模板解析后缓存
type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	files, ok := staticPrompts[id]
	if !ok {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}
	system, err := readEmbeddedText(files.system)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(files.user)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

// Render 渲染 (agent, task) 对应的消息；模板变量为 agent、task、topic、input
func (r *Registry) Render(ctx context.Context, agentType, task string, input map[string]any) ([]*schema.Message, PromptID, error) {
	id := Resolve(agentType, task)
	tpl, err := r.ChatTemplate(id)
	if err != nil {
		return nil, id, err
	}
	msgs, err := tpl.Format(ctx, Variables(agentType, task, input))
	if err != nil {
		return nil, id, fmt.Errorf("failed to format prompt %s: %w", id, err)
	}
	return msgs, id, nil
}

// Variables 构造模板变量
func Variables(agentType, task string, input map[string]any) map[string]any {
	topic, _ := input["topic"].(string)
	return map[string]any{
		"agent": agentType,
		"task":  task,
		"topic": strings.TrimSpace(topic),
		"input": encodeInput(input),
	}
}

func encodeInput(input map[string]any) string {
	if len(input) == 0 {
		return "{}"
	}
	b, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", input)
	}
	return string(b)
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
