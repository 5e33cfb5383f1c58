package engine

import (
	"sync"

	"scholar-ai-api/internal/workflow/model"
)

const defaultHistoryLimit = 200

// History 保留最近 N 次运行结果
type History struct {
	mu    sync.RWMutex
	limit int
	order []string
	runs  map[string]*model.RunResult
}

// NewHistory limit <= 0 时使用默认容量
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &History{limit: limit, runs: make(map[string]*model.RunResult)}
}

func (h *History) Add(run *model.RunResult) {
	if run == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.runs[run.RunID]; !exists {
		h.order = append(h.order, run.RunID)
	}
	h.runs[run.RunID] = run
	for len(h.order) > h.limit {
		delete(h.runs, h.order[0])
		h.order = h.order[1:]
	}
}

func (h *History) Get(runID string) (*model.RunResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.runs[runID]
	return r, ok
}

// Recent 按时间倒序返回最多 n 条
func (h *History) Recent(n int) []*model.RunResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.order) {
		n = len(h.order)
	}
	out := make([]*model.RunResult, 0, n)
	for i := len(h.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.runs[h.order[i]])
	}
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}
