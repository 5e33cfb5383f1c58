// Package middleware 提供 HTTP 中间件
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"scholar-ai-api/internal/domain/service"
	"scholar-ai-api/pkg/logger"
)

// UserIDHeader 上游网关注入的用户标识
const UserIDHeader = "X-User-ID"

// Identity 从请求头读取用户标识并注入 context；鉴权由上游完成
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if len(userID) > 64 {
			userID = userID[:64]
		}
		if userID != "" {
			c.Set("user_id", userID)

			ctx := service.WithUserID(c.Request.Context(), userID)
			ctx = logger.WithContext(ctx, logger.UserIDKey, userID)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}
