package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholar-ai-api/internal/config"
	"scholar-ai-api/internal/domain/entity"
	"scholar-ai-api/internal/infrastructure/llm"
)

type memorySink struct {
	mu      sync.Mutex
	records []*entity.TokenUsageRecord
	err     error
}

func (s *memorySink) Create(_ context.Context, r *entity.TokenUsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

func (s *memorySink) SumTokens(context.Context, string, time.Time, time.Time) (int64, error) {
	return 0, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLedger_RecordNormalizesAndPrices(t *testing.T) {
	sink := &memorySink{}
	pricing := NewPricing(map[string]config.PriceConfig{"custom": {InputPer1K: 1, OutputPer1K: 2}})
	l := NewLedger(pricing, WithSink(sink))

	rec := l.Record(context.Background(), Record{
		Model:            "custom",
		Provider:         "openai",
		Service:          "workflow",
		PromptTokens:     1000,
		CompletionTokens: 500,
		TotalTokens:      42,
	})

	assert.Equal(t, 1500, rec.TotalTokens)
	assert.InDelta(t, 2.0, rec.EstimatedCost, 1e-9)
	assert.False(t, rec.Timestamp.IsZero())
	require.Len(t, sink.records, 1)
	assert.Equal(t, 1500, sink.records[0].TotalTokens)
}

func TestLedger_SinkFailureIsNotFatal(t *testing.T) {
	l := NewLedger(NewPricing(nil), WithSink(&memorySink{err: errors.New("db down")}))

	l.Record(context.Background(), Record{Model: "gpt-4o", PromptTokens: 1, CompletionTokens: 1})
	assert.Equal(t, 1, l.Len())
}

func TestLedger_SummaryTotalsEqualRecordSums(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	now := start
	l := NewLedger(NewPricing(nil), WithClock(func() time.Time { return now }))

	inputs := []Record{
		{Model: "gpt-4o", Service: "workflow", Task: "draft", TaskType: "writing", UserID: "u1", PromptTokens: 100, CompletionTokens: 50},
		{Model: "gpt-4o", Service: "workflow", Task: "edit", TaskType: "editing", UserID: "u1", PromptTokens: 30, CompletionTokens: 20},
		{Model: "deepseek-chat", Service: "agent", Task: "draft", TaskType: "writing", UserID: "u2", PromptTokens: 7, CompletionTokens: 3},
	}
	var wantPrompt, wantCompletion int
	var wantCost float64
	for _, in := range inputs {
		rec := l.Record(context.Background(), in)
		wantPrompt += rec.PromptTokens
		wantCompletion += rec.CompletionTokens
		wantCost += rec.EstimatedCost
	}
	now = start.Add(2 * time.Hour)

	s := l.Summary(Filter{})
	assert.Equal(t, 3, s.Totals.Requests)
	assert.Equal(t, wantPrompt, s.Totals.PromptTokens)
	assert.Equal(t, wantCompletion, s.Totals.CompletionTokens)
	assert.Equal(t, wantPrompt+wantCompletion, s.Totals.TotalTokens)
	assert.InDelta(t, wantCost, s.Totals.EstimatedCost, 1e-12)

	assert.Equal(t, 200, s.ByModel["gpt-4o"].TotalTokens)
	assert.Equal(t, 10, s.ByModel["deepseek-chat"].TotalTokens)
	assert.Equal(t, 2, s.ByTask["draft"].Requests)
	assert.Equal(t, 160, s.ByTaskType["writing"].TotalTokens)
	assert.Equal(t, 3, s.ByDay["2026-03-01"].Requests)

	assert.InDelta(t, 2.0, s.WindowHours, 1e-9)
	assert.InDelta(t, 70.0, s.Averages.TokensPerRequest, 1e-9)
	assert.InDelta(t, 105.0, s.Averages.TokensPerHour, 1e-9)
	assert.InDelta(t, 1.5, s.Averages.RequestsPerHour, 1e-9)
}

func TestLedger_SummaryFilters(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := NewLedger(NewPricing(nil), WithClock(fixedClock(base)))
	ctx := context.Background()

	l.Record(ctx, Record{Timestamp: base, Model: "a", UserID: "u1", PromptTokens: 1})
	l.Record(ctx, Record{Timestamp: base.Add(time.Hour), Model: "b", UserID: "u1", PromptTokens: 2})
	l.Record(ctx, Record{Timestamp: base.Add(2 * time.Hour), Model: "a", UserID: "u2", PromptTokens: 4})

	assert.Equal(t, 5, l.Summary(Filter{Model: "a"}).Totals.TotalTokens)
	assert.Equal(t, 3, l.Summary(Filter{UserID: "u1"}).Totals.TotalTokens)
	assert.Equal(t, 2, l.Summary(Filter{Since: base.Add(time.Hour), Until: base.Add(2 * time.Hour)}).Totals.TotalTokens)
}

func TestLedger_EmptySummary(t *testing.T) {
	s := NewLedger(NewPricing(nil)).Summary(Filter{Model: "nothing"})
	assert.Zero(t, s.Totals.Requests)
	assert.Zero(t, s.Averages.TokensPerRequest)
	assert.Zero(t, s.Averages.TokensPerHour)
}

func TestLedger_ConcurrentRecord(t *testing.T) {
	l := NewLedger(NewPricing(nil))
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(context.Background(), Record{Model: "m", PromptTokens: 2, CompletionTokens: 1})
		}()
	}
	wg.Wait()

	s := l.Summary(Filter{})
	assert.Equal(t, 50, s.Totals.Requests)
	assert.Equal(t, 150, s.Totals.TotalTokens)
}

func TestMeter(t *testing.T) {
	assert.Nil(t, MeterFromContext(context.Background()))

	ctx, m := WithMeter(context.Background())
	assert.Same(t, m, MeterFromContext(ctx))

	m.Charge(llm.NewUsage(3, 2), 0.5)
	m.Charge(llm.NewUsage(1, 1), 0.25)
	assert.Equal(t, 7, m.Usage().TotalTokens)
	assert.Equal(t, 2, m.Calls())
	assert.InDelta(t, 0.75, m.Cost(), 1e-9)

	var nilMeter *Meter
	nilMeter.Charge(llm.NewUsage(1, 1), 1)
	assert.Zero(t, nilMeter.Calls())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("ab"))
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))
	assert.Equal(t, 1, EstimateTokens("学术论文"))
}

func TestPricing_UnknownModelIsFree(t *testing.T) {
	p := NewPricing(nil)
	assert.Zero(t, p.Cost("unknown", 1000, 1000))
	assert.InDelta(t, 0.0025+0.01, p.Cost("gpt-4o", 1000, 1000), 1e-12)
}
