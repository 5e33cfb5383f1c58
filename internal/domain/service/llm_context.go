package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
	llmCtxKeyModel    llmCtxKey = "llm_model"
)

// WithWorkflow 标记当前调用所属的工作流（或服务）名，用于指标与追踪标签
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	if ctx == nil {
		return nil
	}
	w := strings.TrimSpace(workflow)
	if w == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyWorkflow, w)
}

// WithProvider 标记当前调用的提供商
func WithProvider(ctx context.Context, provider string) context.Context {
	return withValue(ctx, llmCtxKeyProvider, provider)
}

// WithModel 标记当前调用的逻辑模型名
func WithModel(ctx context.Context, model string) context.Context {
	return withValue(ctx, llmCtxKeyModel, model)
}

// WithProviderModel 同时标记提供商与模型
func WithProviderModel(ctx context.Context, provider, model string) context.Context {
	return WithModel(WithProvider(ctx, provider), model)
}

func WorkflowFromContext(ctx context.Context) string {
	return valueOrUnknown(ctx, llmCtxKeyWorkflow)
}

func ProviderFromContext(ctx context.Context) string {
	return valueOrUnknown(ctx, llmCtxKeyProvider)
}

func ModelFromContext(ctx context.Context) string {
	return valueOrUnknown(ctx, llmCtxKeyModel)
}

func withValue(ctx context.Context, key llmCtxKey, value string) context.Context {
	if ctx == nil {
		return nil
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueOrUnknown(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return "unknown"
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return strings.TrimSpace(s)
}
