package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"scholar-ai-api/internal/application/usage"
	"scholar-ai-api/internal/domain/service"
	"scholar-ai-api/internal/infrastructure/llm"
	"scholar-ai-api/pkg/logger"
	"scholar-ai-api/pkg/metrics"
)

// Stream 流式补全；读到 io.EOF 时写入一条用量流水
type Stream struct {
	inner    *llm.ChunkStream
	provider string
	model    string
	onDone   func(completion string, reported llm.Usage, hasReported bool)

	mu       sync.Mutex
	buf      strings.Builder
	recorded bool
	closed   bool
}

// Model 实际使用的逻辑模型名
func (s *Stream) Model() string {
	return s.model
}

// Provider 实际使用的提供商
func (s *Stream) Provider() string {
	return s.provider
}

// Recv 返回下一个分片，结束时返回 io.EOF
func (s *Stream) Recv() (string, error) {
	chunk, err := s.inner.Recv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.buf.WriteString(chunk)
		return chunk, nil
	}
	if errors.Is(err, io.EOF) && !s.recorded && !s.closed {
		s.recorded = true
		u, ok := s.inner.Usage()
		s.onDone(s.buf.String(), u, ok)
	}
	return "", err
}

// Close 提前结束时不记录用量；之后的 Recv 返回 io.EOF
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.inner.Close()
}

// Stream 按与 CompleteWithFallbacks 相同的路由与回退规则建立流。
// 提供商未上报用量时按字符数估算。
func (s *Service) Stream(ctx context.Context, req Request) (*Stream, error) {
	r, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	var attempts []ModelAttempt
	for _, name := range s.candidates(r.model) {
		inner, provider, err := s.openWithRetry(ctx, r, req, name)
		if err == nil {
			return s.wrap(ctx, req, inner, provider, name), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("completion aborted: %w", ctxErr)
		}
		attempts = append(attempts, ModelAttempt{Model: name, Err: err})
	}
	return nil, &AllModelsFailed{Attempts: attempts}
}

func (s *Service) openWithRetry(ctx context.Context, r resolved, req Request, model string) (*llm.ChunkStream, string, error) {
	adapter, err := s.registry.CreateAdapter(ctx, model)
	if err != nil {
		return nil, "", err
	}
	callReq := llm.CallRequest{Model: model, Messages: req.Messages, MaxTokens: r.maxTokens, Temperature: r.temperature}
	callCtx := service.WithProviderModel(ctx, adapter.Provider(), model)

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.LLMRetryTotal.WithLabelValues(model).Inc()
			if err := s.sleep(ctx, s.policy.Backoff(attempt-1)); err != nil {
				return nil, "", err
			}
		}
		inner, err := adapter.Stream(callCtx, callReq)
		if err == nil {
			return inner, adapter.Provider(), nil
		}
		metrics.LLMCallTotal.WithLabelValues(adapter.Provider(), model, "error").Inc()
		lastErr = err
		logger.Warn(ctx, "llm stream open failed", "model", model, "attempt", attempt, "error", err.Error())
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
	}
	return nil, "", lastErr
}

func (s *Service) wrap(ctx context.Context, req Request, inner *llm.ChunkStream, provider, model string) *Stream {
	start := s.now()
	var input strings.Builder
	for _, m := range req.Messages {
		input.WriteString(m.Content)
	}
	prompt := input.String()

	return &Stream{
		inner:    inner,
		provider: provider,
		model:    model,
		onDone: func(completion string, reported llm.Usage, hasReported bool) {
			metrics.LLMCallTotal.WithLabelValues(provider, model, "success").Inc()
			u, estimated := reported, false
			if !hasReported || reported.TotalTokens == 0 {
				u = llm.NewUsage(usage.EstimateTokens(prompt), usage.EstimateTokens(completion))
				estimated = true
			}
			s.record(context.WithoutCancel(ctx), req, provider, model, u, s.now().Sub(start), estimated)
		},
	}
}
