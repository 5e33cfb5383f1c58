// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scholar-ai-api/internal/domain/repository"
	"scholar-ai-api/internal/domain/service"
	"scholar-ai-api/internal/infrastructure/messaging"
	"scholar-ai-api/internal/interfaces/http/dto"
	"scholar-ai-api/internal/interfaces/http/middleware"
	"scholar-ai-api/internal/workflow/engine"
	"scholar-ai-api/internal/workflow/model"
	"scholar-ai-api/pkg/errors"
	"scholar-ai-api/pkg/logger"
)

// RunIDHeader 每次运行在响应头中返回运行 ID
const RunIDHeader = middleware.RunIDHeader

// WorkflowRunner 工作流执行入口
type WorkflowRunner interface {
	ExecuteWorkflow(ctx context.Context, steps []model.Step, initial map[string]any) (*model.RunResult, error)
	PlanAndExecute(ctx context.Context, goal string, initial map[string]any) (*model.RunResult, error)
	ExecutePredefinedWorkflow(ctx context.Context, name string, params map[string]any) (*model.RunResult, error)
	DelegateTask(ctx context.Context, agentID, task string, input map[string]any) (*model.RunResult, error)
	GetRun(ctx context.Context, runID string) (*model.RunResult, error)
	RecordPending(ctx context.Context, runID string, kind model.RunKind, name, goal string) *model.RunResult
	AbortPending(ctx context.Context, res *model.RunResult, cause error)
	History() *engine.History
}

// JobPublisher 异步任务投递
type JobPublisher interface {
	PublishWorkflowJob(ctx context.Context, job *messaging.WorkflowJobMessage) (string, error)
}

// WorkflowHandler 工作流处理器
type WorkflowHandler struct {
	runner    WorkflowRunner
	publisher JobPublisher
	runs      repository.WorkflowRunRepository
}

// NewWorkflowHandler 创建工作流处理器；publisher 与 runs 可为空
func NewWorkflowHandler(runner WorkflowRunner, publisher JobPublisher, runs repository.WorkflowRunRepository) *WorkflowHandler {
	return &WorkflowHandler{
		runner:    runner,
		publisher: publisher,
		runs:      runs,
	}
}

// Execute 同步执行自定义步骤
// @Summary 执行工作流
// @Tags Workflows
// @Accept json
// @Produce json
// @Param body body dto.ExecuteWorkflowRequest true "步骤与初始上下文"
// @Success 200 {object} dto.Response[dto.RunResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/workflows/execute [post]
func (h *WorkflowHandler) Execute(c *gin.Context) {
	var req dto.ExecuteWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.runner.ExecuteWorkflow(c.Request.Context(), req.ToSteps(), req.Context)
	h.respondRun(c, res, err)
}

// Plan 规划并执行
// @Summary 规划并执行
// @Tags Workflows
// @Accept json
// @Produce json
// @Param body body dto.PlanRequest true "目标"
// @Success 200 {object} dto.Response[dto.RunResponse]
// @Router /v1/workflows/plan [post]
func (h *WorkflowHandler) Plan(c *gin.Context) {
	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Goal) == "" {
		dto.BadRequest(c, "goal is required")
		return
	}

	res, err := h.runner.PlanAndExecute(c.Request.Context(), req.Goal, req.Context)
	h.respondRun(c, res, err)
}

// Predefined 执行预定义工作流
// @Summary 执行预定义工作流
// @Tags Workflows
// @Accept json
// @Produce json
// @Param name path string true "工作流名称"
// @Param body body dto.PredefinedRequest false "参数"
// @Success 200 {object} dto.Response[dto.RunResponse]
// @Failure 400 {object} dto.ErrorResponse "未知工作流"
// @Router /v1/workflows/predefined/{name} [post]
func (h *WorkflowHandler) Predefined(c *gin.Context) {
	var req dto.PredefinedRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	res, err := h.runner.ExecutePredefinedWorkflow(c.Request.Context(), dto.BindWorkflowName(c), req.Params)
	h.respondRun(c, res, err)
}

// Enqueue 异步执行：记录 pending 运行并投递到任务流
// @Summary 异步执行工作流
// @Tags Workflows
// @Accept json
// @Produce json
// @Param body body dto.EnqueueWorkflowRequest true "任务"
// @Success 202 {object} dto.Response[dto.EnqueueResponse]
// @Failure 503 {object} dto.ErrorResponse "任务队列不可用"
// @Router /v1/workflows/jobs [post]
func (h *WorkflowHandler) Enqueue(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.EnqueueWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	switch req.Kind {
	case model.RunKindSteps:
		if len(req.Steps) == 0 {
			dto.BadRequest(c, "steps are required")
			return
		}
	case model.RunKindPlan:
		if strings.TrimSpace(req.Goal) == "" {
			dto.BadRequest(c, "goal is required")
			return
		}
	case model.RunKindPredefined:
		if _, ok := engine.PredefinedSteps(req.Name, req.Params); !ok {
			writeError(c, errors.ErrUnknownWorkflow.WithDetail(req.Name))
			return
		}
	}
	if h.publisher == nil {
		writeError(c, errors.ErrServiceUnavailable.WithDetail("job queue not configured"))
		return
	}

	// 先落 pending 再投递，避免 worker 的完成快照被 pending 覆盖
	runID := uuid.NewString()
	pending := h.runner.RecordPending(ctx, runID, req.Kind, req.Name, req.Goal)

	userID, _ := service.UserIDFromContext(ctx)
	streamID, err := h.publisher.PublishWorkflowJob(ctx, &messaging.WorkflowJobMessage{
		RunID:     runID,
		UserID:    userID,
		RequestID: logger.StringFromContext(ctx, logger.RequestIDKey),
		Kind:      req.Kind,
		Name:      req.Name,
		Goal:      req.Goal,
		Steps:     req.ToSteps(),
		Params:    req.Params,
	})
	if err != nil {
		h.runner.AbortPending(ctx, pending, err)
		writeError(c, errors.Wrap(err, errors.CodeServiceUnavailable, "failed to enqueue workflow job"))
		return
	}

	logger.Info(ctx, "workflow job enqueued", "run_id", runID, "kind", req.Kind, "stream_id", streamID)
	c.Header(RunIDHeader, runID)
	dto.Accepted(c, &dto.EnqueueResponse{
		RunID:     runID,
		StreamID:  streamID,
		Status:    string(model.RunStatusPending),
		StatusURL: "/v1/workflows/runs/" + runID,
	})
}

// GetRun 查询运行结果
// @Summary 查询运行
// @Tags Workflows
// @Produce json
// @Param id path string true "运行 ID"
// @Success 200 {object} dto.Response[dto.RunResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/workflows/runs/{id} [get]
func (h *WorkflowHandler) GetRun(c *gin.Context) {
	res, err := h.runner.GetRun(c.Request.Context(), dto.BindRunID(c))
	if err != nil {
		writeError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to load workflow run"))
		return
	}
	if res == nil {
		writeError(c, errors.ErrRunNotFound)
		return
	}
	dto.Success(c, dto.ToRunResponse(res, true))
}

// ListRuns 当前用户的运行列表；未配置持久化时返回内存中的最近运行
// @Summary 运行列表
// @Tags Workflows
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.RunSummaryResponse]
// @Router /v1/workflows/runs [get]
func (h *WorkflowHandler) ListRuns(c *gin.Context) {
	ctx := c.Request.Context()
	page := dto.BindPage(c)
	userID, _ := service.UserIDFromContext(ctx)

	if h.runs != nil {
		result, err := h.runs.ListByUser(ctx, userID, repository.NewPagination(page.Page, page.PageSize))
		if err != nil {
			writeError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to list workflow runs"))
			return
		}
		items := make([]*dto.RunSummaryResponse, 0, len(result.Items))
		for _, e := range result.Items {
			items = append(items, dto.ToRunSummary(e))
		}
		dto.SuccessWithPage(c, items, dto.NewPageMeta(page.Page, page.PageSize, int(result.Total)))
		return
	}

	var mine []*model.RunResult
	for _, r := range h.runner.History().Recent(0) {
		if r.UserID == userID {
			mine = append(mine, r)
		}
	}
	start := min(page.Offset(), len(mine))
	end := min(start+page.Limit(), len(mine))
	items := make([]*dto.RunSummaryResponse, 0, end-start)
	for _, r := range mine[start:end] {
		items = append(items, dto.ToRunSummaryFromResult(r))
	}
	dto.SuccessWithPage(c, items, dto.NewPageMeta(page.Page, page.PageSize, len(mine)))
}

// respondRun 运行失败时返回错误，运行 ID 总是放在响应头
func (h *WorkflowHandler) respondRun(c *gin.Context, res *model.RunResult, err error) {
	if res != nil {
		c.Header(RunIDHeader, res.RunID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, dto.ToRunResponse(res, true))
}
