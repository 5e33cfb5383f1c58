package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"scholar-ai-api/internal/config"
)

// CORS 跨域中间件；暴露请求、追踪与运行 ID 响应头
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowOrigins:  cfg.AllowedOrigins,
		AllowMethods:  cfg.AllowedMethods,
		AllowHeaders:  cfg.AllowedHeaders,
		ExposeHeaders: []string{RequestIDHeader, "X-Trace-ID", RunIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader, UserIDHeader}
	}
	// 通配来源下不允许携带凭据
	c.AllowCredentials = !(len(c.AllowOrigins) == 1 && c.AllowOrigins[0] == "*")
	return cors.New(c)
}
