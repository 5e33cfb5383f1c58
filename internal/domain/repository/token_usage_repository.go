package repository

import (
	"context"
	"time"

	"scholar-ai-api/internal/domain/entity"
)

// TokenUsageRepository 用量流水存储
type TokenUsageRepository interface {
	Create(ctx context.Context, record *entity.TokenUsageRecord) error
	// SumTokens 统计用户在 [start, end) 内的总 token 数
	SumTokens(ctx context.Context, userID string, startInclusive, endExclusive time.Time) (int64, error)
}
