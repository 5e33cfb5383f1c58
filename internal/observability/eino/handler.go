// Package eino 注册 eino 全局回调，为模型调用与 agent 图执行生成追踪 span
package eino

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"scholar-ai-api/internal/domain/service"
	"scholar-ai-api/pkg/logger"
	"scholar-ai-api/pkg/tracer"
)

const tracerName = "eino"

// newChatModelCallbackHandler 模型调用 span；计数与耗时指标由补全服务上报
func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			attrs := []attribute.KeyValue{
				attribute.String("eino.workflow", service.WorkflowFromContext(ctx)),
				attribute.String("llm.provider", service.ProviderFromContext(ctx)),
				attribute.String("llm.model", modelName(ctx, input)),
			}
			if runID := logger.StringFromContext(ctx, logger.RunIDKey); runID != "" {
				attrs = append(attrs, attribute.String("workflow.run_id", runID))
			}
			if info != nil {
				attrs = append(attrs,
					attribute.String("eino.node_name", info.Name),
					attribute.String("eino.type", info.Type),
				)
			}
			if input != nil {
				attrs = append(attrs, attribute.Int("llm.messages", len(input.Messages)))
			}

			ctx, _ = otel.Tracer(tracerName).Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			span := trace.SpanFromContext(ctx)
			if output != nil && output.TokenUsage != nil {
				span.SetAttributes(
					attribute.Int("llm.prompt_tokens", output.TokenUsage.PromptTokens),
					attribute.Int("llm.completion_tokens", output.TokenUsage.CompletionTokens),
					attribute.Int("llm.total_tokens", output.TokenUsage.TotalTokens),
				)
			}
			span.End()
			return ctx
		},

		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			endWithError(ctx, err)
			return ctx
		},
	}
}

// newGraphCallbackHandler agent 图（模板 -> 补全 -> 解码）的整体 span
func newGraphCallbackHandler() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			name := ""
			if info != nil {
				name = info.Name
			}
			ctx, _ = otel.Tracer(tracerName).Start(ctx, "agent.graph", trace.WithAttributes(
				attribute.String("eino.graph", name),
				attribute.String("eino.workflow", service.WorkflowFromContext(ctx)),
			))
			return ctx
		}).
		OnEndFn(func(ctx context.Context, _ *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			trace.SpanFromContext(ctx).End()
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			endWithError(ctx, err)
			return ctx
		}).
		Build()
}

func endWithError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	tracer.RecordError(span, err)
	span.End()
}

// modelName 优先取调用配置中的模型，其次取 context 中的逻辑模型名
func modelName(ctx context.Context, in *model.CallbackInput) string {
	if in != nil && in.Config != nil && in.Config.Model != "" {
		return in.Config.Model
	}
	return service.ModelFromContext(ctx)
}
