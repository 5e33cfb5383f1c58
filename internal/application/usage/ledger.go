package usage

import (
	"context"
	"slices"
	"sync"
	"time"

	"scholar-ai-api/internal/domain/repository"
	"scholar-ai-api/pkg/logger"
	"scholar-ai-api/pkg/metrics"
)

// Ledger 进程内只追加的用量账本，可选落库
type Ledger struct {
	mu        sync.Mutex
	records   []Record
	pricing   *Pricing
	sink      repository.TokenUsageRepository
	startedAt time.Time
	now       func() time.Time
}

// LedgerOption Ledger 可选项
type LedgerOption func(*Ledger)

// WithSink 设置持久化出口，写入失败只记录日志
func WithSink(sink repository.TokenUsageRepository) LedgerOption {
	return func(l *Ledger) {
		l.sink = sink
	}
}

// WithClock 替换时钟
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger 创建用量账本
func NewLedger(pricing *Pricing, opts ...LedgerOption) *Ledger {
	l := &Ledger{pricing: pricing, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	l.startedAt = l.now()
	return l
}

// Record 追加一条流水并返回补全后的记录
func (l *Ledger) Record(ctx context.Context, rec Record) Record {
	u := rec.Usage()
	rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens = u.PromptTokens, u.CompletionTokens, u.TotalTokens
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}
	if rec.EstimatedCost == 0 {
		rec.EstimatedCost = l.pricing.Cost(rec.Model, rec.PromptTokens, rec.CompletionTokens)
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()

	metrics.LLMTokensUsed.WithLabelValues(rec.Provider, rec.Model, "prompt").Add(float64(rec.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(rec.Provider, rec.Model, "completion").Add(float64(rec.CompletionTokens))
	metrics.LLMCostUSD.WithLabelValues(rec.Model, rec.Service).Add(rec.EstimatedCost)

	if l.sink != nil {
		if err := l.sink.Create(ctx, rec.toEntity()); err != nil {
			logger.Warn(ctx, "failed to persist token usage record",
				"model", rec.Model,
				"service", rec.Service,
				"error", err.Error(),
			)
		}
	}
	return rec
}

// Records 返回匹配过滤条件的流水副本
func (l *Ledger) Records(f Filter) []Record {
	l.mu.Lock()
	snapshot := slices.Clone(l.records)
	l.mu.Unlock()

	out := snapshot[:0]
	for _, r := range snapshot {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Len 流水条数
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
