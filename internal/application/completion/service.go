// Package completion 提供带重试、模型回退与用量记账的补全服务
package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scholar-ai-api/internal/application/usage"
	"scholar-ai-api/internal/config"
	"scholar-ai-api/internal/domain/service"
	"scholar-ai-api/internal/infrastructure/llm"
	"scholar-ai-api/pkg/logger"
	"scholar-ai-api/pkg/metrics"
)

const defaultServiceName = "completion"

// Request 补全请求；Model 为空时按 agent 类型路由，否则使用默认模型
type Request struct {
	Model       string
	Messages    []llm.Message
	MaxTokens   int
	Temperature *float32

	Service   string
	Task      string
	TaskType  string
	AgentType string
}

// ModelRegistry 补全服务对模型注册表的依赖
type ModelRegistry interface {
	CreateAdapter(ctx context.Context, name string) (llm.Adapter, error)
	IsAvailable(name string) bool
	DefaultModel() string
	FallbackChain() []string
}

// UsageRecorder 用量账本
type UsageRecorder interface {
	Record(ctx context.Context, rec usage.Record) usage.Record
}

// Option Service 可选项
type Option func(*Service)

// WithRetryPolicy 覆盖重试策略
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithSleep 替换重试等待函数
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// Service 补全服务
type Service struct {
	registry ModelRegistry
	ledger   UsageRecorder
	identity service.UserIdentity
	agents   map[string]config.AgentModelConfig
	policy   RetryPolicy
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// NewService 创建补全服务
func NewService(cfg *config.LLMConfig, registry ModelRegistry, ledger UsageRecorder, identity service.UserIdentity, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		ledger:   ledger,
		identity: identity,
		agents:   cfg.Agents,
		policy:   RetryPolicyFromConfig(cfg.Retry),
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.identity == nil {
		s.identity = service.NewContextUserIdentity()
	}
	return s
}

// resolved 路由后的调用参数
type resolved struct {
	model       string
	temperature *float32
	maxTokens   int
}

// resolve agent 路由 > 请求模型 > 默认模型；不可用时取回退链第一个可用模型
func (s *Service) resolve(ctx context.Context, req Request) (resolved, error) {
	r := resolved{model: req.Model, temperature: req.Temperature, maxTokens: req.MaxTokens}

	if route, ok := s.agents[req.AgentType]; ok && req.AgentType != "" {
		if route.Model != "" {
			r.model = route.Model
		}
		if route.Temperature != nil {
			t := float32(*route.Temperature)
			r.temperature = &t
		}
		if r.maxTokens == 0 && route.MaxTokens > 0 {
			r.maxTokens = route.MaxTokens
		}
	}
	if r.model == "" {
		r.model = s.registry.DefaultModel()
	}
	if s.registry.IsAvailable(r.model) {
		return r, nil
	}

	for _, name := range s.registry.FallbackChain() {
		if s.registry.IsAvailable(name) {
			logger.Warn(ctx, "requested model unavailable, using fallback",
				"requested", r.model,
				"fallback", name,
			)
			metrics.LLMFallbackTotal.WithLabelValues(r.model, name).Inc()
			r.model = name
			return r, nil
		}
	}
	return r, fmt.Errorf("%w: requested %q", ErrNoModelAvailable, r.model)
}

// Complete 仅在路由到的模型上重试，不走回退链
func (s *Service) Complete(ctx context.Context, req Request) (*llm.Response, error) {
	r, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := s.completeWithRetry(ctx, req, r, r.model)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("completion aborted: %w", ctxErr)
		}
		return nil, &AllModelsFailed{Attempts: []ModelAttempt{{Model: r.model, Err: err}}}
	}
	return resp, nil
}

// CompleteWithFallbacks 主模型重试耗尽后按回退链依次尝试，首个成功即返回
func (s *Service) CompleteWithFallbacks(ctx context.Context, req Request) (*llm.Response, error) {
	r, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	var attempts []ModelAttempt
	for _, name := range s.candidates(r.model) {
		if len(attempts) > 0 {
			prev := attempts[len(attempts)-1].Model
			logger.Warn(ctx, "falling back to next model", "from", prev, "to", name)
			metrics.LLMFallbackTotal.WithLabelValues(prev, name).Inc()
		}
		resp, err := s.completeWithRetry(ctx, req, r, name)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("completion aborted: %w", ctxErr)
		}
		attempts = append(attempts, ModelAttempt{Model: name, Err: err})
	}
	return nil, &AllModelsFailed{Attempts: attempts}
}

// candidates 主模型在前，随后为回退链中其余可用模型（去重）
func (s *Service) candidates(primary string) []string {
	out := []string{primary}
	seen := map[string]struct{}{primary: {}}
	for _, name := range s.registry.FallbackChain() {
		if _, dup := seen[name]; dup || !s.registry.IsAvailable(name) {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (s *Service) completeWithRetry(ctx context.Context, req Request, r resolved, model string) (*llm.Response, error) {
	adapter, err := s.registry.CreateAdapter(ctx, model)
	if err != nil {
		return nil, err
	}
	callReq := llm.CallRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	}
	callCtx := service.WithProviderModel(ctx, adapter.Provider(), model)

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.LLMRetryTotal.WithLabelValues(model).Inc()
			if err := s.sleep(ctx, s.policy.Backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		start := s.now()
		resp, err := adapter.Complete(callCtx, callReq)
		elapsed := s.now().Sub(start)
		metrics.LLMCallDuration.WithLabelValues(adapter.Provider(), model).Observe(elapsed.Seconds())
		if err == nil {
			metrics.LLMCallTotal.WithLabelValues(adapter.Provider(), model, "success").Inc()
			s.record(ctx, req, resp.Provider, model, resp.Usage, elapsed, false)
			resp.Model = model
			return resp, nil
		}

		metrics.LLMCallTotal.WithLabelValues(adapter.Provider(), model, "error").Inc()
		lastErr = err
		logger.Warn(ctx, "llm call failed",
			"model", model,
			"attempt", attempt,
			"max_attempts", s.policy.MaxAttempts,
			"error", err.Error(),
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = errors.New("retry policy allows no attempts")
	}
	return nil, lastErr
}

// record 每次成功调用恰好写入一条流水，并计入运行级 Meter
func (s *Service) record(ctx context.Context, req Request, provider, model string, u llm.Usage, elapsed time.Duration, estimated bool) {
	svc := req.Service
	if svc == "" {
		svc = defaultServiceName
	}
	rec := usage.Record{
		Timestamp:        s.now(),
		Model:            model,
		Provider:         provider,
		Service:          svc,
		Task:             req.Task,
		TaskType:         req.TaskType,
		UserID:           s.identity.CurrentUser(ctx),
		RunID:            logger.StringFromContext(ctx, logger.RunIDKey),
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		Estimated:        estimated,
		Duration:         elapsed,
	}
	if s.ledger != nil {
		rec = s.ledger.Record(ctx, rec)
	}
	usage.MeterFromContext(ctx).Charge(u, rec.EstimatedCost)
}
