// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"scholar-ai-api/internal/domain/entity"
	"scholar-ai-api/pkg/tracer"
)

// TokenUsageRepository 用量流水仓储
type TokenUsageRepository struct {
	client *Client
}

func NewTokenUsageRepository(client *Client) *TokenUsageRepository {
	return &TokenUsageRepository{client: client}
}

func (r *TokenUsageRepository) Create(ctx context.Context, record *entity.TokenUsageRecord) error {
	ctx, span := dbTracer.Start(ctx, "postgres.TokenUsageRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(record).Error; err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("failed to create token usage record: %w", err)
	}
	return nil
}

func (r *TokenUsageRepository) SumTokens(ctx context.Context, userID string, startInclusive, endExclusive time.Time) (int64, error) {
	ctx, span := dbTracer.Start(ctx, "postgres.TokenUsageRepository.SumTokens")
	defer span.End()

	db := getDB(ctx, r.client.db)

	// 零值时间表示不限
	q := db.Model(&entity.TokenUsageRecord{}).Where("user_id = ?", userID)
	if !startInclusive.IsZero() {
		q = q.Where("created_at >= ?", startInclusive)
	}
	if !endExclusive.IsZero() {
		q = q.Where("created_at < ?", endExclusive)
	}

	var total int64
	if err := q.
		Select("COALESCE(SUM(total_tokens),0)").
		Scan(&total).Error; err != nil {
		tracer.RecordError(span, err)
		return 0, fmt.Errorf("failed to sum token usage: %w", err)
	}
	return total, nil
}
