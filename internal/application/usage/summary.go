package usage

import (
	"time"
)

const dayLayout = "2006-01-02"

// Filter 用量查询条件，零值字段不参与过滤
type Filter struct {
	Model    string    `form:"model" json:"model,omitempty"`
	Service  string    `form:"service" json:"service,omitempty"`
	Task     string    `form:"task" json:"task,omitempty"`
	TaskType string    `form:"task_type" json:"task_type,omitempty"`
	UserID   string    `form:"user_id" json:"user_id,omitempty"`
	Since    time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00" json:"since,omitempty"`
	Until    time.Time `form:"until" time_format:"2006-01-02T15:04:05Z07:00" json:"until,omitempty"`
}

// Match 判断记录是否满足条件；时间区间为 [Since, Until)
func (f Filter) Match(r Record) bool {
	switch {
	case f.Model != "" && r.Model != f.Model:
		return false
	case f.Service != "" && r.Service != f.Service:
		return false
	case f.Task != "" && r.Task != f.Task:
		return false
	case f.TaskType != "" && r.TaskType != f.TaskType:
		return false
	case f.UserID != "" && r.UserID != f.UserID:
		return false
	case !f.Since.IsZero() && r.Timestamp.Before(f.Since):
		return false
	case !f.Until.IsZero() && !r.Timestamp.Before(f.Until):
		return false
	}
	return true
}

// Totals 聚合值
type Totals struct {
	Requests         int     `json:"requests"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`
}

func (t *Totals) add(r Record) {
	t.Requests++
	t.PromptTokens += r.PromptTokens
	t.CompletionTokens += r.CompletionTokens
	t.TotalTokens += r.TotalTokens
	t.EstimatedCost += r.EstimatedCost
}

// Averages 平均值，分母为 0 时为 0
type Averages struct {
	TokensPerRequest float64 `json:"tokens_per_request"`
	CostPerRequest   float64 `json:"cost_per_request"`
	TokensPerHour    float64 `json:"tokens_per_hour"`
	RequestsPerHour  float64 `json:"requests_per_hour"`
}

// Summary 用量汇总
type Summary struct {
	Totals     Totals            `json:"totals"`
	ByModel    map[string]Totals `json:"by_model"`
	ByService  map[string]Totals `json:"by_service"`
	ByTask     map[string]Totals `json:"by_task"`
	ByTaskType map[string]Totals `json:"by_task_type"`
	ByDay      map[string]Totals `json:"by_day"`
	Averages   Averages          `json:"averages"`
	// WindowHours 计算每小时均值使用的小时数
	WindowHours float64 `json:"window_hours"`
}

// Summary 按条件汇总；每小时均值以账本启动（或 Since）到当前（或 Until）的时长计算，不足 1 小时按 1 小时
func (l *Ledger) Summary(f Filter) Summary {
	s := Summary{
		ByModel:    make(map[string]Totals),
		ByService:  make(map[string]Totals),
		ByTask:     make(map[string]Totals),
		ByTaskType: make(map[string]Totals),
		ByDay:      make(map[string]Totals),
	}
	for _, r := range l.Records(f) {
		s.Totals.add(r)
		addTo(s.ByModel, r.Model, r)
		addTo(s.ByService, r.Service, r)
		addTo(s.ByTask, r.Task, r)
		addTo(s.ByTaskType, r.TaskType, r)
		addTo(s.ByDay, r.Timestamp.UTC().Format(dayLayout), r)
	}

	start, end := l.startedAt, l.now()
	if !f.Since.IsZero() {
		start = f.Since
	}
	if !f.Until.IsZero() && f.Until.Before(end) {
		end = f.Until
	}
	s.WindowHours = max(end.Sub(start).Hours(), 1)

	if n := s.Totals.Requests; n > 0 {
		s.Averages.TokensPerRequest = float64(s.Totals.TotalTokens) / float64(n)
		s.Averages.CostPerRequest = s.Totals.EstimatedCost / float64(n)
		s.Averages.TokensPerHour = float64(s.Totals.TotalTokens) / s.WindowHours
		s.Averages.RequestsPerHour = float64(n) / s.WindowHours
	}
	return s
}

func addTo(m map[string]Totals, key string, r Record) {
	if key == "" {
		key = "unknown"
	}
	t := m[key]
	t.add(r)
	m[key] = t
}
