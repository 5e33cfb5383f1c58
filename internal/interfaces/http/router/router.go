// Package router 提供 HTTP 路由配置
package router

import (
	"scholar-ai-api/internal/config"
	"scholar-ai-api/internal/interfaces/http/handler"
	"scholar-ai-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Health   *handler.HealthHandler
	Workflow *handler.WorkflowHandler
	Agent    *handler.AgentHandler
	Usage    *handler.UsageHandler
}

// Router HTTP 路由器
type Router struct {
	engine  *gin.Engine
	cfg     *config.Config
	h       *Handlers
	limiter middleware.RateLimiter
}

// New 创建路由器；limiter 为空时不限流
func New(cfg *config.Config, h *Handlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:  gin.New(),
		cfg:     cfg,
		h:       h,
		limiter: limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}

	r.engine.Use(middleware.Identity())
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.h.Health.Health)
	r.engine.GET("/ready", r.h.Health.Ready)
	r.engine.GET("/live", r.h.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/v1")
	v1.Use(middleware.RateLimit(r.cfg.Security.RateLimit, r.limiter))

	workflows := v1.Group("/workflows")
	{
		workflows.POST("/execute", r.h.Workflow.Execute)
		workflows.POST("/plan", r.h.Workflow.Plan)
		workflows.POST("/predefined/:name", r.h.Workflow.Predefined)
		workflows.POST("/jobs", r.h.Workflow.Enqueue)
		workflows.GET("/runs", r.h.Workflow.ListRuns)
		workflows.GET("/runs/:id", r.h.Workflow.GetRun)
	}

	agents := v1.Group("/agents")
	{
		agents.GET("", r.h.Agent.Catalog)
		agents.POST("/:id/tasks/:task", r.h.Agent.Delegate)
	}

	v1.GET("/usage/summary", r.h.Usage.Summary)
}
