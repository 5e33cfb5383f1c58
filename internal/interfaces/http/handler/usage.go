package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"scholar-ai-api/internal/application/usage"
	"scholar-ai-api/internal/domain/service"
	"scholar-ai-api/internal/interfaces/http/dto"
	"scholar-ai-api/pkg/logger"
)

// UsageSummarizer 内存账本汇总
type UsageSummarizer interface {
	Summary(f usage.Filter) usage.Summary
}

// TokenTotals 持久化用量累计
type TokenTotals interface {
	SumTokens(ctx context.Context, userID string, since, until time.Time) (int64, error)
}

// UsageHandler 用量查询
type UsageHandler struct {
	ledger UsageSummarizer
	totals TokenTotals
}

// NewUsageHandler 创建用量处理器；totals 可为空
func NewUsageHandler(ledger UsageSummarizer, totals TokenTotals) *UsageHandler {
	return &UsageHandler{ledger: ledger, totals: totals}
}

// UsageSummaryResponse 用量汇总响应
type UsageSummaryResponse struct {
	usage.Summary
	// PersistedTokens 持久化流水中的累计，仅在配置数据库时返回
	PersistedTokens *int64 `json:"persisted_tokens,omitempty"`
}

// Summary 用量汇总；未指定 user_id 时使用当前用户
// @Summary 用量汇总
// @Tags Usage
// @Produce json
// @Param model query string false "模型"
// @Param service query string false "服务"
// @Param task query string false "任务"
// @Param task_type query string false "任务类型"
// @Param since query string false "起始时间 RFC3339"
// @Param until query string false "结束时间 RFC3339"
// @Success 200 {object} dto.Response[UsageSummaryResponse]
// @Router /v1/usage/summary [get]
func (h *UsageHandler) Summary(c *gin.Context) {
	ctx := c.Request.Context()

	var f usage.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		dto.BadRequest(c, "invalid query: "+err.Error())
		return
	}
	if f.UserID == "" {
		f.UserID, _ = service.UserIDFromContext(ctx)
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && !f.Since.Before(f.Until) {
		dto.BadRequest(c, "since must be before until")
		return
	}

	resp := &UsageSummaryResponse{Summary: h.ledger.Summary(f)}
	if h.totals != nil && f.UserID != "" {
		total, err := h.totals.SumTokens(ctx, f.UserID, f.Since, f.Until)
		if err != nil {
			logger.Warn(ctx, "failed to sum persisted token usage", "error", err.Error())
		} else {
			resp.PersistedTokens = &total
		}
	}
	dto.Success(c, resp)
}
