// Package worker 异步任务的消息处理器
package worker

import (
	"context"
	"fmt"

	"scholar-ai-api/internal/domain/service"
	"scholar-ai-api/internal/infrastructure/messaging"
	"scholar-ai-api/internal/workflow/engine"
	"scholar-ai-api/internal/workflow/model"
	"scholar-ai-api/pkg/logger"
)

// Runner 工作流执行入口
type Runner interface {
	ExecuteWorkflow(ctx context.Context, steps []model.Step, initial map[string]any) (*model.RunResult, error)
	PlanAndExecute(ctx context.Context, goal string, initial map[string]any) (*model.RunResult, error)
	ExecutePredefinedWorkflow(ctx context.Context, name string, params map[string]any) (*model.RunResult, error)
}

// WorkflowJobHandler 执行任务流中的工作流任务，运行 ID 沿用入队时分配的 ID。
// 运行失败已记录在运行结果中，消息照常确认；仅在 worker 退出导致中断时返回错误以便重新投递。
func WorkflowJobHandler(runner Runner) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var job messaging.WorkflowJobMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			return fmt.Errorf("decode workflow job: %w", err)
		}

		if job.UserID != "" {
			ctx = service.WithUserID(ctx, job.UserID)
		}
		if job.RunID != "" {
			ctx = engine.WithRunID(ctx, job.RunID)
		}

		var err error
		switch job.Kind {
		case model.RunKindSteps:
			_, err = runner.ExecuteWorkflow(ctx, job.Steps, job.Params)
		case model.RunKindPlan:
			_, err = runner.PlanAndExecute(ctx, job.Goal, job.Params)
		case model.RunKindPredefined:
			_, err = runner.ExecutePredefinedWorkflow(ctx, job.Name, job.Params)
		default:
			logger.Warn(ctx, "dropping workflow job", "run_id", job.RunID, "kind", job.Kind)
			return nil
		}

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("workflow job %s interrupted: %w", job.RunID, err)
		}
		logger.Warn(ctx, "workflow job failed", "run_id", job.RunID, "kind", job.Kind, "error", err.Error())
		return nil
	}
}
