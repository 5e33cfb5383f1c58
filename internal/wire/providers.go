package wire

import (
	"context"

	"scholar-ai-api/internal/application/agent"
	"scholar-ai-api/internal/application/completion"
	"scholar-ai-api/internal/application/literature"
	"scholar-ai-api/internal/application/usage"
	"scholar-ai-api/internal/config"
	"scholar-ai-api/internal/domain/repository"
	"scholar-ai-api/internal/domain/service"
	infraliterature "scholar-ai-api/internal/infrastructure/literature"
	"scholar-ai-api/internal/infrastructure/llm"
	"scholar-ai-api/internal/infrastructure/messaging"
	"scholar-ai-api/internal/infrastructure/persistence/postgres"
	"scholar-ai-api/internal/infrastructure/persistence/redis"
	"scholar-ai-api/internal/interfaces/http/handler"
	"scholar-ai-api/internal/interfaces/http/middleware"
	"scholar-ai-api/internal/workflow/engine"
	"scholar-ai-api/internal/workflow/prompt"
	"scholar-ai-api/pkg/logger"
)

const literatureCachePrefix = "literature"

// ProvidePostgresClient 未启用时返回 nil，用量与运行记录只保留在内存
func ProvidePostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	if !cfg.Database.Postgres.Enabled {
		logger.Info(ctx, "postgres disabled, usage and runs kept in memory")
		return nil, func() {}, nil
	}
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 未启用时返回 nil，文献缓存、任务流与限流随之关闭
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		logger.Info(ctx, "redis disabled, literature cache and job stream unavailable")
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideTokenUsageRepository 用量流水持久化，可为空
func ProvideTokenUsageRepository(pg *postgres.Client) repository.TokenUsageRepository {
	if pg == nil {
		return nil
	}
	return postgres.NewTokenUsageRepository(pg)
}

// ProvideWorkflowRunRepository 运行记录持久化，可为空
func ProvideWorkflowRunRepository(pg *postgres.Client) repository.WorkflowRunRepository {
	if pg == nil {
		return nil
	}
	return postgres.NewWorkflowRunRepository(pg)
}

// ProvideLedger 用量账本
func ProvideLedger(cfg *config.Config, sink repository.TokenUsageRepository) *usage.Ledger {
	var opts []usage.LedgerOption
	if sink != nil {
		opts = append(opts, usage.WithSink(sink))
	}
	return usage.NewLedger(usage.NewPricing(cfg.LLM.Pricing), opts...)
}

// ProvideModelFactory 模型注册表
func ProvideModelFactory(ctx context.Context, cfg *config.Config) *llm.Factory {
	f := llm.NewFactory(&cfg.LLM)
	logger.Info(ctx, "llm models available", "models", f.AvailableModels(), "default", f.DefaultModel())
	return f
}

// ProvideUserIdentity 用户标识来自请求 context
func ProvideUserIdentity() service.UserIdentity {
	return service.NewContextUserIdentity()
}

// ProvideCompletionService 补全服务
func ProvideCompletionService(cfg *config.Config, factory *llm.Factory, ledger *usage.Ledger, identity service.UserIdentity) *completion.Service {
	return completion.NewService(&cfg.LLM, factory, ledger, identity)
}

// ProvideLiteratureSearcher 启用的文献源；配置 Redis 时加缓存
func ProvideLiteratureSearcher(ctx context.Context, cfg *config.Config, rc *redis.Client) *literature.Searcher {
	lc := cfg.Literature
	var sources []literature.Source
	if lc.SemanticScholar.Enabled {
		sources = append(sources, infraliterature.NewSemanticScholar(lc.SemanticScholar))
	}
	if lc.Arxiv.Enabled {
		sources = append(sources, infraliterature.NewArxiv(lc.Arxiv))
	}
	if rc != nil && lc.CacheTTL > 0 {
		cache := redis.NewCache(rc, literatureCachePrefix)
		for i, src := range sources {
			sources[i] = literature.NewCachedSource(src, cache, lc.CacheTTL)
		}
	}
	s := literature.NewSearcher(&lc, sources...)
	logger.Info(ctx, "literature sources configured", "sources", s.Sources())
	return s
}

// ProvideAgentRegistry 内置 agent
func ProvideAgentRegistry(completer *completion.Service, prompts *prompt.Registry, searcher *literature.Searcher) *agent.Registry {
	return agent.NewRegistry(agent.DefaultAgents(completer, prompts, searcher)...)
}

// ProvideCoordinator 工作流编排器
func ProvideCoordinator(
	cfg *config.Config,
	agents *agent.Registry,
	completer *completion.Service,
	prompts *prompt.Registry,
	identity service.UserIdentity,
	runs repository.WorkflowRunRepository,
) *engine.Coordinator {
	planner := agent.NewBaseAgent(agent.IDPlanner, completer, prompts)
	var opts []engine.Option
	if runs != nil {
		opts = append(opts, engine.WithRunRepository(runs))
	}
	return engine.NewCoordinator(&cfg.Workflow, agents, planner, identity, opts...)
}

// ProvideProducer 任务流生产者，可为空
func ProvideProducer(cfg *config.Config, rc *redis.Client) *messaging.Producer {
	if rc == nil {
		return nil
	}
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(rc.Redis(), int64(maxLen))
}

// ProvideJobPublisher 避免 nil 指针装入接口
func ProvideJobPublisher(p *messaging.Producer) handler.JobPublisher {
	if p == nil {
		return nil
	}
	return p
}

// ProvideRateLimiter Redis 滑动窗口限流器，可为空
func ProvideRateLimiter(rc *redis.Client) middleware.RateLimiter {
	if rc == nil {
		return nil
	}
	return middleware.NewRedisRateLimiter(rc.Redis())
}

// ProvideHealthChecks 只检查已启用的依赖
func ProvideHealthChecks(pg *postgres.Client, rc *redis.Client) map[string]handler.HealthChecker {
	checks := make(map[string]handler.HealthChecker, 2)
	if pg != nil {
		checks["postgres"] = pg
	}
	if rc != nil {
		checks["redis"] = rc
	}
	return checks
}

// ProvideHealthHandler 健康检查
func ProvideHealthHandler(cfg *config.Config, checks map[string]handler.HealthChecker) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version, checks)
}

// ProvideWorkflowHandler 工作流接口
func ProvideWorkflowHandler(coord *engine.Coordinator, publisher handler.JobPublisher, runs repository.WorkflowRunRepository) *handler.WorkflowHandler {
	return handler.NewWorkflowHandler(coord, publisher, runs)
}

// ProvideAgentHandler agent 接口
func ProvideAgentHandler(coord *engine.Coordinator, agents *agent.Registry, factory *llm.Factory) *handler.AgentHandler {
	return handler.NewAgentHandler(coord, agents, factory)
}

// ProvideUsageHandler 用量接口
func ProvideUsageHandler(ledger *usage.Ledger, sink repository.TokenUsageRepository) *handler.UsageHandler {
	return handler.NewUsageHandler(ledger, sink)
}
