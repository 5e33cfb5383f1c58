// Package main 异步工作流执行器入口（job-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"scholar-ai-api/internal/application/usage"
	"scholar-ai-api/internal/config"
	"scholar-ai-api/internal/infrastructure/messaging"
	"scholar-ai-api/internal/interfaces/worker"
	einoobs "scholar-ai-api/internal/observability/eino"
	"scholar-ai-api/internal/wire"
	"scholar-ai-api/pkg/logger"
	"scholar-ai-api/pkg/tracer"
)

const (
	dlqCheckInterval = time.Minute
	dlqAlertSize     = 100
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	einoobs.Init()

	w, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	if w.Redis == nil {
		logger.Fatal(ctx, "job-worker requires redis", fmt.Errorf("cache.redis.enabled is false"))
	}

	consumer := messaging.NewConsumer(w.Redis.Redis(),
		messaging.WorkflowConsumerConfig(cfg.Messaging.RedisStream, hostnameConsumerName()))
	consumer.RegisterHandler(messaging.MessageTypeWorkflowJob, worker.WorkflowJobHandler(w.Coordinator))

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go consumer.MonitorDLQ(ctx, dlqCheckInterval, dlqAlertSize)

	log := logger.FromContext(ctx)
	log.Info("job-worker started", "stream", string(messaging.StreamWorkflowJobs))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("job-worker shutting down")
	cancel()
	consumer.Stop()

	totals := w.Ledger.Summary(usage.Filter{}).Totals
	log.Info("job-worker exited",
		"llm_requests", totals.Requests,
		"total_tokens", totals.TotalTokens,
		"estimated_cost", totals.EstimatedCost,
	)
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
