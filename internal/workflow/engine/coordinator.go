// Package engine 按顺序执行多 agent 工作流
package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"scholar-ai-api/internal/application/agent"
	"scholar-ai-api/internal/application/usage"
	"scholar-ai-api/internal/config"
	"scholar-ai-api/internal/domain/repository"
	"scholar-ai-api/internal/domain/service"
	"scholar-ai-api/internal/infrastructure/llm"
	"scholar-ai-api/internal/workflow/model"
	"scholar-ai-api/internal/workflow/node"
	"scholar-ai-api/pkg/logger"
	"scholar-ai-api/pkg/metrics"
	"scholar-ai-api/pkg/tracer"
)

const defaultSummaryRunes = 500

// AgentLookup 编排器对 agent 注册表的依赖
type AgentLookup interface {
	Get(id string) (agent.Agent, bool)
	IDs() []string
}

// Option 编排器可选项
type Option func(*Coordinator)

// WithRunRepository 运行开始与结束时持久化快照
func WithRunRepository(repo repository.WorkflowRunRepository) Option {
	return func(c *Coordinator) {
		c.runs = repo
	}
}

// WithHistory 替换默认的内存运行历史
func WithHistory(h *History) Option {
	return func(c *Coordinator) {
		if h != nil {
			c.history = h
		}
	}
}

// WithClock 测试用时钟
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator 工作流编排器
type Coordinator struct {
	agents   AgentLookup
	planner  agent.Agent
	identity service.UserIdentity
	runs     repository.WorkflowRunRepository
	history  *History

	runTimeout   time.Duration
	summaryRunes int
	now          func() time.Time
}

// NewCoordinator planner 为 nil 时 PlanAndExecute 总是使用默认计划
func NewCoordinator(cfg *config.WorkflowConfig, agents AgentLookup, planner agent.Agent, identity service.UserIdentity, opts ...Option) *Coordinator {
	c := &Coordinator{
		agents:       agents,
		planner:      planner,
		identity:     identity,
		summaryRunes: defaultSummaryRunes,
		now:          time.Now,
	}
	historyLimit := 0
	if cfg != nil {
		c.runTimeout = cfg.RunTimeout
		if cfg.SummaryRunes > 0 {
			c.summaryRunes = cfg.SummaryRunes
		}
		historyLimit = cfg.HistoryLimit
	}
	c.history = NewHistory(historyLimit)
	if c.identity == nil {
		c.identity = service.NewContextUserIdentity()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type runIDKey struct{}

// WithRunID 指定运行 ID（异步任务入队时预先分配）
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func runIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok && v != "" {
		return v
	}
	return uuid.NewString()
}

type runSpec struct {
	kind     model.RunKind
	name     string
	goal     string
	initial  map[string]any
	failFast bool
	steps    func(ctx context.Context) ([]model.Step, error)
}

// ExecuteWorkflow 顺序执行给定步骤
func (c *Coordinator) ExecuteWorkflow(ctx context.Context, steps []model.Step, initial map[string]any) (*model.RunResult, error) {
	return c.run(ctx, runSpec{
		kind:    model.RunKindSteps,
		initial: initial,
		steps:   func(context.Context) ([]model.Step, error) { return steps, nil },
	})
}

// PlanAndExecute 先由规划器生成步骤再执行；计划不可用时使用 DefaultPlan
func (c *Coordinator) PlanAndExecute(ctx context.Context, goal string, initial map[string]any) (*model.RunResult, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, errors.New("plan goal is empty")
	}
	return c.run(ctx, runSpec{
		kind:    model.RunKindPlan,
		goal:    goal,
		initial: initial,
		steps: func(ctx context.Context) ([]model.Step, error) {
			return c.plan(ctx, goal, initial)
		},
	})
}

// ExecutePredefinedWorkflow 执行预定义模板，params 同时作为初始上下文
func (c *Coordinator) ExecutePredefinedWorkflow(ctx context.Context, name string, params map[string]any) (*model.RunResult, error) {
	steps, ok := PredefinedSteps(name, params)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	return c.run(ctx, runSpec{
		kind:    model.RunKindPredefined,
		name:    name,
		initial: params,
		steps:   func(context.Context) ([]model.Step, error) { return steps, nil },
	})
}

// DelegateTask 单 agent 调用，走与工作流相同的记录与用量路径；步骤失败直接返回错误
func (c *Coordinator) DelegateTask(ctx context.Context, agentID, task string, input map[string]any) (*model.RunResult, error) {
	step := model.Step{AgentID: agentID, Task: task}
	return c.run(ctx, runSpec{
		kind:     model.RunKindDelegate,
		name:     agentID + "." + task,
		initial:  input,
		failFast: true,
		steps:    func(context.Context) ([]model.Step, error) { return []model.Step{step}, nil },
	})
}

// History 内存中的运行历史
func (c *Coordinator) History() *History {
	return c.history
}

// GetRun 内存历史中已结束的运行直接返回；未结束的运行可能在其他进程（job-worker）中执行，
// 以持久化存储为准。不存在时返回 nil, nil
func (c *Coordinator) GetRun(ctx context.Context, runID string) (*model.RunResult, error) {
	local, ok := c.history.Get(runID)
	if ok && (local.Status.Terminal() || c.runs == nil) {
		return local, nil
	}
	if c.runs == nil {
		return nil, nil
	}
	e, err := c.runs.GetByID(ctx, runID)
	if err != nil {
		if ok {
			logger.Warn(ctx, "failed to load workflow run, using local snapshot", "run_id", runID, "error", err.Error())
			return local, nil
		}
		return nil, err
	}
	if e == nil {
		if ok {
			return local, nil
		}
		return nil, nil
	}
	stored := fromEntity(e)
	if stored.Status.Terminal() {
		c.history.Add(stored)
	}
	return stored, nil
}

// RecordPending 记录已入队但尚未执行的运行
func (c *Coordinator) RecordPending(ctx context.Context, runID string, kind model.RunKind, name, goal string) *model.RunResult {
	res := &model.RunResult{
		RunID:     runID,
		Kind:      kind,
		Name:      name,
		Goal:      goal,
		UserID:    c.identity.CurrentUser(ctx),
		Status:    model.RunStatusPending,
		StartedAt: c.now(),
	}
	c.history.Add(res)
	c.persist(ctx, res)
	return res
}

// AbortPending 入队失败时将 pending 运行标记为失败
func (c *Coordinator) AbortPending(ctx context.Context, res *model.RunResult, cause error) {
	if res == nil || res.Status != model.RunStatusPending {
		return
	}
	res.Status = model.RunStatusFailed
	if cause != nil {
		res.Error = cause.Error()
	}
	res.FinishedAt = c.now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)
	c.history.Add(res)
	c.persist(context.WithoutCancel(ctx), res)
}

func (c *Coordinator) run(ctx context.Context, spec runSpec) (*model.RunResult, error) {
	runID := runIDFromContext(ctx)
	ctx = logger.WithContext(ctx, logger.RunIDKey, runID)
	workflow := string(spec.kind)
	if spec.name != "" {
		workflow += ":" + spec.name
	}
	ctx = logger.WithContext(ctx, logger.WorkflowKey, workflow)
	ctx = service.WithWorkflow(ctx, workflow)

	ctx, span := tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("scholar.run_id", runID),
		attribute.String("scholar.workflow", workflow),
	))
	defer span.End()

	ctx, meter := usage.WithMeter(ctx)
	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}

	execCtx := make(model.ExecutionContext, len(spec.initial))
	maps.Copy(execCtx, spec.initial)

	res := &model.RunResult{
		RunID:     runID,
		Kind:      spec.kind,
		Name:      spec.name,
		Goal:      spec.goal,
		UserID:    c.identity.CurrentUser(ctx),
		Status:    model.RunStatusRunning,
		Context:   execCtx,
		StartedAt: c.now(),
	}
	c.persist(ctx, res)

	logger.Info(ctx, "workflow run started", "kind", spec.kind, "name", spec.name)

	steps, err := spec.steps(ctx)
	if err == nil {
		res.Steps = steps
		err = c.execute(ctx, res, spec.failFast)
	}
	c.finish(ctx, res, meter, err)
	span.SetAttributes(attribute.Int("scholar.steps", len(res.Steps)))
	tracer.RecordError(span, err)
	return res, err
}

func (c *Coordinator) execute(ctx context.Context, res *model.RunResult, failFast bool) error {
	meter := usage.MeterFromContext(ctx)

	for i, step := range res.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("workflow run aborted before step %d: %w", i, err)
		}

		rec := model.ExecutionRecord{
			StepIndex: i,
			AgentID:   step.AgentID,
			Task:      step.Task,
			StartedAt: c.now(),
		}

		if strings.TrimSpace(step.AgentID) == "" || strings.TrimSpace(step.Task) == "" {
			logger.Warn(ctx, "workflow step missing agent or task, skipped",
				"step", i,
				"agent", step.AgentID,
				"task", step.Task,
			)
			rec.Status = model.StepStatusSkipped
			res.Records = append(res.Records, rec)
			res.Results = append(res.Results, nil)
			continue
		}

		a, ok := c.agents.Get(step.AgentID)
		if !ok {
			err := &UnknownAgentError{AgentID: step.AgentID, StepIndex: i}
			rec.Status = model.StepStatusFailed
			rec.Error = err.Error()
			res.Records = append(res.Records, rec)
			res.Results = append(res.Results, map[string]any{"error": err.Error()})
			return err
		}

		resolved := resolveParams(ctx, res.Context, step.Params)
		rec.Params = resolved

		before := meter.Usage()
		start := time.Now()
		out, err := a.Execute(ctx, step.Task, agentInput(res.Context, resolved))
		rec.ExecutionTime = time.Since(start)
		rec.TokenUsage = usageDelta(before, meter.Usage())

		if err != nil {
			rec.Status = model.StepStatusFailed
			rec.Error = err.Error()
			res.Records = append(res.Records, rec)
			res.Results = append(res.Results, map[string]any{"error": err.Error()})
			metrics.WorkflowStepDuration.WithLabelValues(step.AgentID, string(rec.Status)).Observe(rec.ExecutionTime.Seconds())

			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("workflow run aborted at step %d: %w", i, ctxErr)
			}
			if failFast {
				return err
			}
			logger.Warn(ctx, "workflow step failed, continuing",
				"step", i,
				"agent", step.AgentID,
				"task", step.Task,
				"error", err.Error(),
			)
			continue
		}

		if out == nil {
			out = map[string]any{}
		}
		merge(res.Context, step, out)

		rec.Status = model.StepStatusCompleted
		rec.ResultSummary = node.Summarize(out, c.summaryRunes)
		res.Records = append(res.Records, rec)
		res.Results = append(res.Results, out)
		metrics.WorkflowStepDuration.WithLabelValues(step.AgentID, string(rec.Status)).Observe(rec.ExecutionTime.Seconds())
	}
	return nil
}

func (c *Coordinator) plan(ctx context.Context, goal string, initial map[string]any) ([]model.Step, error) {
	if c.planner == nil {
		return DefaultPlan(goal), nil
	}

	input := make(map[string]any, len(initial)+3)
	maps.Copy(input, initial)
	input["topic"] = goal
	input["goal"] = goal
	input["agents"] = c.agents.IDs()

	out, err := c.planner.Execute(ctx, TaskPlan, input)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("plan synthesis aborted: %w", ctxErr)
		}
		logger.Warn(ctx, "plan synthesis failed, using default plan", "error", err.Error())
		return DefaultPlan(goal), nil
	}

	steps, ok := parsePlan(out)
	if !ok {
		logger.Warn(ctx, "plan synthesis returned no usable steps, using default plan",
			"output", node.Summarize(out, 200),
		)
		return DefaultPlan(goal), nil
	}
	return steps, nil
}

func (c *Coordinator) finish(ctx context.Context, res *model.RunResult, meter *usage.Meter, err error) {
	res.FinishedAt = c.now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)
	res.TokenUsage = meter.Usage()
	res.EstimatedCost = meter.Cost()
	if err != nil {
		res.Status = model.RunStatusFailed
		res.Error = err.Error()
	} else {
		res.Status = model.RunStatusCompleted
	}

	metrics.WorkflowRunTotal.WithLabelValues(string(res.Kind), string(res.Status)).Inc()
	c.history.Add(res)
	c.persist(context.WithoutCancel(ctx), res)

	if err != nil {
		logger.Error(ctx, "workflow run failed", err,
			"steps", len(res.Steps),
			"total_tokens", res.TokenUsage.TotalTokens,
		)
		return
	}
	logger.Info(ctx, "workflow run completed",
		"steps", len(res.Steps),
		"total_tokens", res.TokenUsage.TotalTokens,
		"estimated_cost", res.EstimatedCost,
		"duration_ms", res.Duration.Milliseconds(),
	)
}

func (c *Coordinator) persist(ctx context.Context, res *model.RunResult) {
	if c.runs == nil {
		return
	}
	e, err := toEntity(res)
	if err == nil {
		err = c.runs.Save(ctx, e)
	}
	if err != nil {
		logger.Warn(ctx, "failed to persist workflow run", "run_id", res.RunID, "error", err.Error())
	}
}

func usageDelta(before, after llm.Usage) llm.Usage {
	return llm.NewUsage(after.PromptTokens-before.PromptTokens, after.CompletionTokens-before.CompletionTokens)
}
