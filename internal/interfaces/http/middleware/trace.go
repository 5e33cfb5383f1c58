package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"scholar-ai-api/internal/domain/service"
	"scholar-ai-api/pkg/logger"
	"scholar-ai-api/pkg/tracer"
)

// RunIDHeader 工作流接口在响应头中返回的运行 ID
const RunIDHeader = "X-Run-ID"

// Trace OpenTelemetry 追踪中间件，跳过探活与指标接口
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithGinFilter(func(c *gin.Context) bool {
		return !isProbePath(c.FullPath())
	}))
}

// TraceContext 把 trace_id 注入日志 context；请求结束后把用户与运行 ID 补到 span 上
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := tracer.TraceID(c.Request.Context())
		if traceID == "" {
			c.Next()
			return
		}
		span := trace.SpanFromContext(c.Request.Context())

		c.Set("trace_id", traceID)
		ctx := logger.WithContext(c.Request.Context(), logger.TraceIDKey, traceID)
		ctx = logger.WithContext(ctx, logger.SpanIDKey, tracer.SpanID(c.Request.Context()))
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", traceID)

		c.Next()

		if userID, ok := service.UserIDFromContext(c.Request.Context()); ok {
			span.SetAttributes(attribute.String("scholar.user_id", userID))
		}
		if runID := c.Writer.Header().Get(RunIDHeader); runID != "" {
			span.SetAttributes(attribute.String("scholar.run_id", runID))
		}
	}
}

func isProbePath(path string) bool {
	switch path {
	case "/health", "/ready", "/live", "/metrics":
		return true
	}
	return false
}
