package agent

import (
	"sort"
	"sync"
)

// Registry agent 注册表
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry 创建注册表并注册给定 agent
func NewRegistry(agents ...Agent) *Registry {
	r := &Registry{agents: make(map[string]Agent, len(agents))}
	for _, a := range agents {
		r.Register(a)
	}
	return r
}

// Register 同 ID 后注册者覆盖先注册者
func (r *Registry) Register(a Agent) {
	if a == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID()] = a
}

func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// IDs 已注册 agent 的有序 ID 列表
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultAgents 内置 agent 集合；planner 不在其中，由编排器单独持有
func DefaultAgents(completer Completer, prompts Renderer, searcher LiteratureSearcher) []Agent {
	return []Agent{
		NewResearchAgent(completer, prompts, searcher),
		NewBaseAgent(IDWriting, completer, prompts),
		NewBaseAgent(IDEditing, completer, prompts),
		NewBaseAgent(IDOutline, completer, prompts),
		NewBaseAgent(IDPaper, completer, prompts),
		NewBaseAgent(IDReview, completer, prompts),
	}
}
