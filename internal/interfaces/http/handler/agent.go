package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"scholar-ai-api/internal/interfaces/http/dto"
	"scholar-ai-api/internal/workflow/engine"
)

// AgentCatalog 已注册 agent 列表
type AgentCatalog interface {
	IDs() []string
}

// ModelCatalog 可用模型列表
type ModelCatalog interface {
	AvailableModels() []string
}

// AgentHandler 单 agent 调用与目录查询
type AgentHandler struct {
	runner WorkflowRunner
	agents AgentCatalog
	models ModelCatalog
}

// NewAgentHandler 创建 agent 处理器
func NewAgentHandler(runner WorkflowRunner, agents AgentCatalog, models ModelCatalog) *AgentHandler {
	return &AgentHandler{runner: runner, agents: agents, models: models}
}

// Catalog 列出 agent、预定义工作流与可用模型
// @Summary 能力目录
// @Tags Agents
// @Produce json
// @Success 200 {object} dto.Response[dto.AgentListResponse]
// @Router /v1/agents [get]
func (h *AgentHandler) Catalog(c *gin.Context) {
	resp := &dto.AgentListResponse{
		Agents:    h.agents.IDs(),
		Workflows: engine.PredefinedWorkflows(),
		Models:    []string{},
	}
	if h.models != nil {
		resp.Models = h.models.AvailableModels()
	}
	dto.Success(c, resp)
}

// Delegate 直接调用单个 agent 的任务
// @Summary 调用 agent
// @Tags Agents
// @Accept json
// @Produce json
// @Param id path string true "agent ID"
// @Param task path string true "任务名"
// @Param body body dto.AgentTaskRequest false "输入"
// @Success 200 {object} dto.Response[dto.DelegateResponse]
// @Failure 400 {object} dto.ErrorResponse "未知 agent"
// @Failure 502 {object} dto.ErrorResponse "模型全部失败"
// @Router /v1/agents/{id}/tasks/{task} [post]
func (h *AgentHandler) Delegate(c *gin.Context) {
	agentID, task := dto.BindAgentTask(c)
	if strings.TrimSpace(task) == "" {
		dto.BadRequest(c, "task is required")
		return
	}

	var req dto.AgentTaskRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	res, err := h.runner.DelegateTask(c.Request.Context(), agentID, task, req.Input)
	if res != nil {
		c.Header(RunIDHeader, res.RunID)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	var result map[string]any
	if len(res.Results) > 0 {
		result = res.Results[0]
	}
	dto.Success(c, &dto.DelegateResponse{
		RunID:         res.RunID,
		AgentID:       agentID,
		Task:          task,
		Result:        result,
		TokenUsage:    res.TokenUsage,
		EstimatedCost: res.EstimatedCost,
		DurationMs:    res.Duration.Milliseconds(),
	})
}
