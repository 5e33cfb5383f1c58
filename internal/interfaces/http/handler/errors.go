package handler

import (
	"context"
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"scholar-ai-api/internal/application/completion"
	"scholar-ai-api/internal/application/literature"
	"scholar-ai-api/internal/interfaces/http/dto"
	"scholar-ai-api/internal/workflow/engine"
	"scholar-ai-api/pkg/errors"
	"scholar-ai-api/pkg/logger"
)

// toAppError 领域错误映射为带 HTTP 状态的 AppError
func toAppError(err error) *errors.AppError {
	var unknownAgent *engine.UnknownAgentError
	var allFailed *completion.AllModelsFailed

	switch {
	case errors.IsAppError(err):
		return errors.AsAppError(err)
	case stderrors.As(err, &unknownAgent):
		return errors.ErrUnknownAgent.WithDetail(unknownAgent.Error()).WithError(err)
	case stderrors.Is(err, engine.ErrUnknownWorkflow):
		return errors.ErrUnknownWorkflow.WithDetail(err.Error()).WithError(err)
	case stderrors.Is(err, completion.ErrNoModelAvailable):
		return errors.ErrNoModelAvailable.WithDetail(err.Error()).WithError(err)
	case stderrors.As(err, &allFailed):
		return errors.ErrAllModelsFailed.WithDetail(err.Error()).WithError(err)
	case stderrors.Is(err, literature.ErrAllSourcesFailed):
		return errors.Wrap(err, errors.CodeLiteratureError, "literature search failed").WithDetail(err.Error())
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.ErrTimeout.WithError(err)
	default:
		return errors.ErrWorkflowFailed.WithDetail(err.Error()).WithError(err)
	}
}

// writeError 输出统一错误响应；5xx 记录错误日志
func writeError(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.HTTPStatus >= 500 {
		logger.Error(c.Request.Context(), "request failed", err, "code", string(appErr.Code))
	}
	dto.Fail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
	})
}
