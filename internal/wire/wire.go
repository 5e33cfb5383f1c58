//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"scholar-ai-api/internal/config"
	"scholar-ai-api/internal/interfaces/http/router"
	"scholar-ai-api/internal/workflow/prompt"
)

// InitializeApp 初始化 API 网关（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		DataSet,
		CoreSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化异步任务 worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		DataSet,
		CoreSet,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// DataSet 存储与缓存
var DataSet = wire.NewSet(
	ProvidePostgresClient,
	ProvideRedisClient,
	ProvideTokenUsageRepository,
	ProvideWorkflowRunRepository,
)

// CoreSet 模型、补全、agent 与编排器
var CoreSet = wire.NewSet(
	ProvideLedger,
	ProvideModelFactory,
	ProvideUserIdentity,
	ProvideCompletionService,
	prompt.NewRegistry,
	ProvideLiteratureSearcher,
	ProvideAgentRegistry,
	ProvideCoordinator,
)

// RouterSet HTTP 处理器与路由
var RouterSet = wire.NewSet(
	ProvideProducer,
	ProvideJobPublisher,
	ProvideRateLimiter,
	ProvideHealthChecks,
	ProvideHealthHandler,
	ProvideWorkflowHandler,
	ProvideAgentHandler,
	ProvideUsageHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
