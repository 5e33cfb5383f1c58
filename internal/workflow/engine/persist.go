package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"scholar-ai-api/internal/domain/entity"
	"scholar-ai-api/internal/infrastructure/llm"
	"scholar-ai-api/internal/workflow/model"
)

type storedResult struct {
	Steps         []model.Step           `json:"steps"`
	Results       []map[string]any       `json:"results"`
	Context       model.ExecutionContext `json:"context"`
	EstimatedCost float64                `json:"estimated_cost"`
}

func toEntity(res *model.RunResult) (*entity.WorkflowRun, error) {
	records, err := json.Marshal(nonNil(res.Records))
	if err != nil {
		return nil, fmt.Errorf("encode run records: %w", err)
	}
	result, err := json.Marshal(storedResult{
		Steps:         res.Steps,
		Results:       res.Results,
		Context:       res.Context,
		EstimatedCost: res.EstimatedCost,
	})
	if err != nil {
		return nil, fmt.Errorf("encode run result: %w", err)
	}

	e := &entity.WorkflowRun{
		ID:               res.RunID,
		UserID:           res.UserID,
		Kind:             entity.WorkflowRunKind(res.Kind),
		Name:             res.Name,
		Goal:             res.Goal,
		Status:           entity.WorkflowRunStatus(res.Status),
		Agents:           pq.StringArray(res.Agents()),
		Records:          string(records),
		Result:           string(result),
		Error:            res.Error,
		PromptTokens:     res.TokenUsage.PromptTokens,
		CompletionTokens: res.TokenUsage.CompletionTokens,
		TotalTokens:      res.TokenUsage.TotalTokens,
		StartedAt:        res.StartedAt,
		DurationMs:       res.Duration.Milliseconds(),
	}
	if !res.FinishedAt.IsZero() {
		finished := res.FinishedAt
		e.FinishedAt = &finished
	}
	return e, nil
}

func fromEntity(e *entity.WorkflowRun) *model.RunResult {
	res := &model.RunResult{
		RunID:      e.ID,
		Kind:       model.RunKind(e.Kind),
		Name:       e.Name,
		Goal:       e.Goal,
		UserID:     e.UserID,
		Status:     model.RunStatus(e.Status),
		Error:      e.Error,
		TokenUsage: llm.NewUsage(e.PromptTokens, e.CompletionTokens),
		StartedAt:  e.StartedAt,
		Duration:   time.Duration(e.DurationMs) * time.Millisecond,
	}
	if e.FinishedAt != nil {
		res.FinishedAt = *e.FinishedAt
	}
	if e.Records != "" {
		_ = json.Unmarshal([]byte(e.Records), &res.Records)
	}
	if e.Result != "" {
		var stored storedResult
		if json.Unmarshal([]byte(e.Result), &stored) == nil {
			res.Steps = stored.Steps
			res.Results = stored.Results
			res.Context = stored.Context
			res.EstimatedCost = stored.EstimatedCost
		}
	}
	return res
}

func nonNil(records []model.ExecutionRecord) []model.ExecutionRecord {
	if records == nil {
		return []model.ExecutionRecord{}
	}
	return records
}
