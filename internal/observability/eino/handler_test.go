package eino

import (
	"context"
	"errors"
	"testing"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"scholar-ai-api/internal/domain/service"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestChatModelHandler_Span(t *testing.T) {
	rec := withRecorder(t)
	h := newChatModelCallbackHandler()

	ctx := service.WithWorkflow(context.Background(), "plan")
	ctx = service.WithProviderModel(ctx, "deepseek", "deepseek-chat")

	ctx = h.OnStart(ctx, &einocb.RunInfo{Name: "research.llm", Type: "OpenAI"}, &model.CallbackInput{
		Messages: []*schema.Message{schema.UserMessage("hi")},
	})
	h.OnEnd(ctx, nil, &model.CallbackOutput{TokenUsage: &model.TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}})

	spans := rec.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "llm.generate", s.Name())
	a := attrs(s)
	assert.Equal(t, "plan", a["eino.workflow"].AsString())
	assert.Equal(t, "deepseek", a["llm.provider"].AsString())
	assert.Equal(t, "deepseek-chat", a["llm.model"].AsString())
	assert.EqualValues(t, 1, a["llm.messages"].AsInt64())
	assert.EqualValues(t, 7, a["llm.total_tokens"].AsInt64())
}

func TestChatModelHandler_Error(t *testing.T) {
	rec := withRecorder(t)
	h := newChatModelCallbackHandler()

	ctx := h.OnStart(context.Background(), nil, nil)
	h.OnError(ctx, nil, errors.New("rate limited"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "unknown", attrs(spans[0])["llm.model"].AsString())
}

func TestGraphHandler_Span(t *testing.T) {
	rec := withRecorder(t)
	h := newGraphCallbackHandler()

	ctx := h.OnStart(context.Background(), &einocb.RunInfo{Name: "writing_agent_graph"}, nil)
	h.OnEnd(ctx, nil, nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "agent.graph", spans[0].Name())
	assert.Equal(t, "writing_agent_graph", attrs(spans[0])["eino.graph"].AsString())
}
