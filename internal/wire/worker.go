package wire

import (
	"scholar-ai-api/internal/application/usage"
	"scholar-ai-api/internal/infrastructure/persistence/redis"
	"scholar-ai-api/internal/workflow/engine"
)

// Worker job-worker 进程的依赖
type Worker struct {
	Coordinator *engine.Coordinator
	Redis       *redis.Client
	Ledger      *usage.Ledger
}
