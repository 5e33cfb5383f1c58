package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"scholar-ai-api/internal/config"
)

var (
	// ErrModelNotConfigured 逻辑模型名未在配置中定义
	ErrModelNotConfigured = errors.New("llm model not configured")
	// ErrModelUnavailable 模型缺少凭据或已禁用
	ErrModelUnavailable = errors.New("llm model unavailable")
	// ErrUnknownProvider 未支持的提供商
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// ChatModelSpec 构建 ChatModel 所需的已解析参数
type ChatModelSpec struct {
	Name     string
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// ChatModelBuilder 根据解析后的参数构建 Eino ChatModel
type ChatModelBuilder func(ctx context.Context, spec ChatModelSpec) (model.BaseChatModel, error)

// FactoryOption Factory 可选项
type FactoryOption func(*Factory)

// WithChatModelBuilder 替换默认的 OpenAI 兼容 ChatModel 构建方式
func WithChatModelBuilder(b ChatModelBuilder) FactoryOption {
	return func(f *Factory) {
		if b != nil {
			f.builder = b
		}
	}
}

// Factory 模型注册表：按逻辑模型名惰性创建并缓存适配器
type Factory struct {
	config    *config.LLMConfig
	builder   ChatModelBuilder
	available map[string]struct{}
	adapters  map[string]Adapter
	mu        sync.RWMutex
}

// NewFactory 创建适配器工厂，可用模型集合在此计算一次
func NewFactory(cfg *config.LLMConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		config:    cfg,
		builder:   NewOpenAICompatibleChatModel,
		available: make(map[string]struct{}),
		adapters:  make(map[string]Adapter),
	}
	for _, opt := range opts {
		opt(f)
	}
	for name, mc := range cfg.Models {
		if isUsable(mc) {
			f.available[name] = struct{}{}
		}
	}
	return f
}

func isUsable(mc config.ModelConfig) bool {
	if !mc.IsEnabled() {
		return false
	}
	profile, ok := lookupProfile(mc.Provider)
	if !ok {
		return false
	}
	return !profile.requiresKey || mc.APIKey != ""
}

// CreateAdapter 获取逻辑模型名对应的适配器，同名只构建一次
func (f *Factory) CreateAdapter(ctx context.Context, name string) (Adapter, error) {
	f.mu.RLock()
	a, ok := f.adapters[name]
	f.mu.RUnlock()
	if ok {
		return a, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if a, ok = f.adapters[name]; ok {
		return a, nil
	}

	mc, ok := f.config.Models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotConfigured, name)
	}
	profile, ok := lookupProfile(mc.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s (model %s)", ErrUnknownProvider, mc.Provider, name)
	}
	if _, ok := f.available[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, name)
	}

	spec := ChatModelSpec{
		Name:     name,
		Provider: profile.name,
		APIKey:   mc.APIKey,
		BaseURL:  mc.BaseURL,
		Model:    profile.wireModel(name, mc.Model),
		Timeout:  mc.Timeout,
	}
	if spec.BaseURL == "" {
		spec.BaseURL = profile.defaultBaseURL
	}
	if spec.APIKey == "" && !profile.requiresKey {
		spec.APIKey = profile.name
	}

	chatModel, err := f.builder(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model for %s: %w", name, err)
	}

	a = newEinoAdapter(profile, name, spec.Model, chatModel)
	f.adapters[name] = a
	return a, nil
}

// AvailableModels 返回可用的逻辑模型名（有序）
func (f *Factory) AvailableModels() []string {
	names := make([]string, 0, len(f.available))
	for name := range f.available {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsAvailable 判断模型是否可用
func (f *Factory) IsAvailable(name string) bool {
	_, ok := f.available[name]
	return ok
}

// DefaultModel 进程级默认模型
func (f *Factory) DefaultModel() string {
	return f.config.DefaultModel
}

// FallbackChain 返回回退链副本
func (f *Factory) FallbackChain() []string {
	return slices.Clone(f.config.FallbackChain)
}

// NewOpenAICompatibleChatModel 使用 Eino 的 OpenAI 适配器构建 ChatModel
func NewOpenAICompatibleChatModel(ctx context.Context, spec ChatModelSpec) (model.BaseChatModel, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  spec.APIKey,
		BaseURL: spec.BaseURL,
		Model:   spec.Model,
		Timeout: spec.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return cm, nil
}
