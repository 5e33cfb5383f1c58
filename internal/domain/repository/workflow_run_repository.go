package repository

import (
	"context"

	"scholar-ai-api/internal/domain/entity"
)

// WorkflowRunRepository 工作流运行记录存储
type WorkflowRunRepository interface {
	Save(ctx context.Context, run *entity.WorkflowRun) error
	GetByID(ctx context.Context, id string) (*entity.WorkflowRun, error)
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.WorkflowRun], error)
}
