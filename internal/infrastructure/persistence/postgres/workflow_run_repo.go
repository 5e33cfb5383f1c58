package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scholar-ai-api/internal/domain/entity"
	"scholar-ai-api/internal/domain/repository"
	"scholar-ai-api/pkg/tracer"
)

// WorkflowRunRepository 工作流运行记录仓储
type WorkflowRunRepository struct {
	client *Client
}

func NewWorkflowRunRepository(client *Client) *WorkflowRunRepository {
	return &WorkflowRunRepository{client: client}
}

// Save 按 ID upsert 运行快照
func (r *WorkflowRunRepository) Save(ctx context.Context, run *entity.WorkflowRun) error {
	ctx, span := dbTracer.Start(ctx, "postgres.WorkflowRunRepository.Save")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(run).Error; err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("failed to save workflow run: %w", err)
	}
	return nil
}

// GetByID 不存在时返回 nil, nil
func (r *WorkflowRunRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowRun, error) {
	ctx, span := dbTracer.Start(ctx, "postgres.WorkflowRunRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var run entity.WorkflowRun
	if err := db.First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to get workflow run: %w", err)
	}
	return &run, nil
}

func (r *WorkflowRunRepository) ListByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.WorkflowRun], error) {
	ctx, span := dbTracer.Start(ctx, "postgres.WorkflowRunRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.WorkflowRun{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to count workflow runs: %w", err)
	}

	var runs []*entity.WorkflowRun
	if err := query.Order("started_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&runs).Error; err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to list workflow runs: %w", err)
	}

	return repository.NewPagedResult(runs, total, pagination), nil
}
