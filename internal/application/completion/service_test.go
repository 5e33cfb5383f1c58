package completion

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholar-ai-api/internal/application/usage"
	"scholar-ai-api/internal/config"
	"scholar-ai-api/internal/domain/service"
	"scholar-ai-api/internal/infrastructure/llm"
	"scholar-ai-api/internal/infrastructure/llm/llmtest"
)

type fixture struct {
	svc    *Service
	ledger *usage.Ledger
	models map[string]*llmtest.ChatModel
	sleeps []time.Duration
}

func float64Ptr(f float64) *float64 { return &f }

func newFixture(t *testing.T, cfg *config.LLMConfig, models map[string]*llmtest.ChatModel) *fixture {
	t.Helper()
	fx := &fixture{models: models}
	factory := llm.NewFactory(cfg, llm.WithChatModelBuilder(llmtest.Builder(models)))
	fx.ledger = usage.NewLedger(usage.NewPricing(nil))
	fx.svc = NewService(cfg, factory, fx.ledger, service.NewContextUserIdentity(),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			fx.sleeps = append(fx.sleeps, d)
			return ctx.Err()
		}),
	)
	return fx
}

func chainConfig() *config.LLMConfig {
	return &config.LLMConfig{
		DefaultModel:  "a",
		FallbackChain: []string{"a", "b", "c"},
		Models: map[string]config.ModelConfig{
			"a":       {Provider: "openai", APIKey: "k"},
			"b":       {Provider: "deepseek", APIKey: "k"},
			"c":       {Provider: "zhipu", APIKey: "k"},
			"nokey":   {Provider: "openai"},
			"writing": {Provider: "openai", APIKey: "k"},
		},
		Agents: map[string]config.AgentModelConfig{
			"writing": {Model: "writing", Temperature: float64Ptr(0.7), MaxTokens: 2048},
			"editing": {Temperature: float64Ptr(0.2)},
		},
	}
}

func userRequest(content string) Request {
	return Request{Messages: []llm.Message{llm.UserMessage(content)}, Service: "test", Task: "t", TaskType: "tt"}
}

func TestCompleteWithFallbacks_AllFailCallCount(t *testing.T) {
	models := map[string]*llmtest.ChatModel{"a": llmtest.Failing(), "b": llmtest.Failing(), "c": llmtest.Failing()}
	fx := newFixture(t, chainConfig(), models)

	_, err := fx.svc.CompleteWithFallbacks(context.Background(), userRequest("hi"))

	var all *AllModelsFailed
	require.ErrorAs(t, err, &all)
	assert.Equal(t, []string{"a", "b", "c"}, all.Models())
	for name, m := range models {
		assert.Equal(t, 3, m.CallCount(), name)
	}
	assert.Len(t, fx.sleeps, 6)
	assert.True(t, errors.Is(err, llmtest.ErrScripted))
	assert.Zero(t, fx.ledger.Len())
}

func TestCompleteWithFallbacks_FirstSuccessWins(t *testing.T) {
	models := map[string]*llmtest.ChatModel{
		"a": llmtest.Failing(),
		"b": llmtest.NewChatModel(llmtest.Reply{Content: "from b", PromptTokens: 10, CompletionTokens: 4}),
		"c": llmtest.NewChatModel(),
	}
	fx := newFixture(t, chainConfig(), models)

	resp, err := fx.svc.CompleteWithFallbacks(context.Background(), userRequest("hi"))
	require.NoError(t, err)

	assert.Equal(t, "from b", resp.Content)
	assert.Equal(t, "b", resp.Model)
	assert.Equal(t, "deepseek", resp.Provider)
	assert.Equal(t, 3, models["a"].CallCount())
	assert.Equal(t, 1, models["b"].CallCount())
	assert.Zero(t, models["c"].CallCount())

	recs := fx.ledger.Records(usage.Filter{})
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].Model)
	assert.Equal(t, 14, recs[0].TotalTokens)
}

func TestComplete_DoesNotFallBack(t *testing.T) {
	models := map[string]*llmtest.ChatModel{"a": llmtest.Failing(), "b": llmtest.NewChatModel()}
	fx := newFixture(t, chainConfig(), models)

	_, err := fx.svc.Complete(context.Background(), userRequest("hi"))

	var all *AllModelsFailed
	require.ErrorAs(t, err, &all)
	assert.Equal(t, []string{"a"}, all.Models())
	assert.Equal(t, 3, models["a"].CallCount())
	assert.Zero(t, models["b"].CallCount())
}

func TestComplete_RetriesThenSucceeds(t *testing.T) {
	models := map[string]*llmtest.ChatModel{"a": llmtest.NewChatModel(
		llmtest.Reply{Err: llmtest.ErrScripted},
		llmtest.Reply{Content: "second", PromptTokens: 1, CompletionTokens: 1},
	)}
	fx := newFixture(t, chainConfig(), models)

	resp, err := fx.svc.Complete(context.Background(), userRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)
	assert.Equal(t, 2, models["a"].CallCount())
	assert.Len(t, fx.sleeps, 1)
	assert.Equal(t, 1, fx.ledger.Len())
}

func TestComplete_AgentRouting(t *testing.T) {
	models := map[string]*llmtest.ChatModel{"a": llmtest.NewChatModel(), "writing": llmtest.NewChatModel()}
	fx := newFixture(t, chainConfig(), models)

	req := userRequest("draft")
	req.AgentType = "writing"
	req.Model = "a"
	_, err := fx.svc.Complete(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, models["writing"].CallCount())
	opts := models["writing"].Calls()[0].Options
	require.NotNil(t, opts.Temperature)
	assert.InDelta(t, 0.7, *opts.Temperature, 1e-6)
	require.NotNil(t, opts.MaxTokens)
	assert.Equal(t, 2048, *opts.MaxTokens)
	assert.Zero(t, models["a"].CallCount())

	// 仅配置温度的 agent 使用默认模型
	req = userRequest("polish")
	req.AgentType = "editing"
	_, err = fx.svc.Complete(context.Background(), req)
	require.NoError(t, err)
	opts = models["a"].Calls()[0].Options
	require.NotNil(t, opts.Temperature)
	assert.InDelta(t, 0.2, *opts.Temperature, 1e-6)
}

func TestComplete_UnavailableModelUsesFirstAvailableFallback(t *testing.T) {
	models := map[string]*llmtest.ChatModel{"a": llmtest.NewChatModel(llmtest.Reply{Content: "fallback"})}
	fx := newFixture(t, chainConfig(), models)

	req := userRequest("hi")
	req.Model = "nokey"
	resp, err := fx.svc.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "a", resp.Model)
}

func TestComplete_NoModelAvailable(t *testing.T) {
	cfg := &config.LLMConfig{
		DefaultModel: "nokey",
		Models:       map[string]config.ModelConfig{"nokey": {Provider: "openai"}},
	}
	fx := newFixture(t, cfg, nil)

	_, err := fx.svc.Complete(context.Background(), userRequest("hi"))
	assert.ErrorIs(t, err, ErrNoModelAvailable)
}

func TestComplete_RecordsUserAndChargesMeter(t *testing.T) {
	models := map[string]*llmtest.ChatModel{"a": llmtest.NewChatModel(llmtest.Reply{Content: "x", PromptTokens: 20, CompletionTokens: 5})}
	fx := newFixture(t, chainConfig(), models)

	ctx := service.WithUserID(context.Background(), "u-7")
	ctx, meter := usage.WithMeter(ctx)
	_, err := fx.svc.Complete(ctx, userRequest("hi"))
	require.NoError(t, err)

	recs := fx.ledger.Records(usage.Filter{UserID: "u-7"})
	require.Len(t, recs, 1)
	assert.Equal(t, "test", recs[0].Service)
	assert.Equal(t, "t", recs[0].Task)
	assert.Equal(t, "tt", recs[0].TaskType)
	assert.Equal(t, 25, meter.Usage().TotalTokens)
	assert.Equal(t, 1, meter.Calls())
}

func TestCompleteWithFallbacks_ContextCancelledAborts(t *testing.T) {
	models := map[string]*llmtest.ChatModel{"a": llmtest.Failing(), "b": llmtest.Failing(), "c": llmtest.Failing()}
	fx := newFixture(t, chainConfig(), models)

	ctx, cancel := context.WithCancel(context.Background())
	fx.svc.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := fx.svc.CompleteWithFallbacks(ctx, userRequest("hi"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, models["a"].CallCount())
	assert.Zero(t, models["b"].CallCount())
}

func TestStream_RecordsEstimatedUsageOnEOF(t *testing.T) {
	models := map[string]*llmtest.ChatModel{"a": llmtest.NewChatModel(llmtest.Reply{Content: "eight ch", NoUsage: true})}
	fx := newFixture(t, chainConfig(), models)

	stream, err := fx.svc.Stream(context.Background(), userRequest("abcdefghijkl"))
	require.NoError(t, err)
	defer stream.Close()

	var got string
	for {
		chunk, err := stream.Recv()
		if err != nil {
			break
		}
		got += chunk
	}
	assert.Equal(t, "eight ch", got)

	recs := fx.ledger.Records(usage.Filter{})
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Estimated)
	assert.Equal(t, 3, recs[0].PromptTokens)
	assert.Equal(t, 2, recs[0].CompletionTokens)
}

func TestStream_CloseBeforeEOFRecordsNothing(t *testing.T) {
	models := map[string]*llmtest.ChatModel{"a": llmtest.NewChatModel(llmtest.Reply{Content: "eight ch", NoUsage: true})}
	fx := newFixture(t, chainConfig(), models)

	stream, err := fx.svc.Stream(context.Background(), userRequest("abcdefghijkl"))
	require.NoError(t, err)
	stream.Close()

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, fx.ledger.Records(usage.Filter{}))
}

func TestStream_FallsBackWhenOpenFails(t *testing.T) {
	models := map[string]*llmtest.ChatModel{
		"a": llmtest.Failing(),
		"b": llmtest.NewChatModel(llmtest.Reply{Content: "ok", PromptTokens: 2, CompletionTokens: 1}),
	}
	fx := newFixture(t, chainConfig(), models)

	stream, err := fx.svc.Stream(context.Background(), userRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "b", stream.Model())
	for {
		if _, err := stream.Recv(); err != nil {
			break
		}
	}
	recs := fx.ledger.Records(usage.Filter{})
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Estimated)
	assert.Equal(t, 3, recs[0].TotalTokens)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := DefaultRetryPolicy()
	for i := 0; i < 50; i++ {
		d1 := p.Backoff(1)
		assert.GreaterOrEqual(t, d1, 1500*time.Millisecond)
		assert.LessOrEqual(t, d1, 2500*time.Millisecond)

		d10 := p.Backoff(10)
		assert.LessOrEqual(t, d10, 30*time.Second)
		assert.GreaterOrEqual(t, d10, 22500*time.Millisecond)
	}
	assert.Zero(t, p.Backoff(0))
}

func TestRetryPolicyFromConfig(t *testing.T) {
	p := RetryPolicyFromConfig(config.RetryConfig{MaxAttempts: 5, Jitter: 0.1})
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.BaseDelay)
	assert.InDelta(t, 0.1, p.Jitter, 1e-9)
}
