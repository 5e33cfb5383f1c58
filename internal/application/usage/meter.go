package usage

import (
	"context"
	"sync"

	"scholar-ai-api/internal/infrastructure/llm"
)

type meterKey struct{}

// Meter 单次运行内的用量计数器，随 context 传递
type Meter struct {
	mu    sync.Mutex
	usage llm.Usage
	calls int
	cost  float64
}

// WithMeter 在 context 中挂载新的 Meter
func WithMeter(ctx context.Context) (context.Context, *Meter) {
	m := &Meter{}
	return context.WithValue(ctx, meterKey{}, m), m
}

// MeterFromContext 读取 context 中的 Meter，不存在时返回 nil
func MeterFromContext(ctx context.Context) *Meter {
	if ctx == nil {
		return nil
	}
	m, _ := ctx.Value(meterKey{}).(*Meter)
	return m
}

// Charge 累加一次调用的用量，nil Meter 忽略
func (m *Meter) Charge(u llm.Usage, cost float64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = m.usage.Add(u)
	m.calls++
	m.cost += cost
}

func (m *Meter) Usage() llm.Usage {
	if m == nil {
		return llm.Usage{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

func (m *Meter) Calls() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Meter) Cost() float64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cost
}
