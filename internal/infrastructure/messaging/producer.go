package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"scholar-ai-api/internal/workflow/model"
	"scholar-ai-api/pkg/tracer"
)

var streamTracer = otel.Tracer("messaging")

// MessageTypeWorkflowJob 工作流任务消息类型
const MessageTypeWorkflowJob = "workflow_job"

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := streamTracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishWorkflowJob 发布异步工作流任务
func (p *Producer) PublishWorkflowJob(ctx context.Context, job *WorkflowJobMessage) (string, error) {
	msg, err := NewMessage(job.RunID, MessageTypeWorkflowJob, job.UserID, job)
	if err != nil {
		return "", err
	}

	msg.SetMetadata("kind", string(job.Kind))
	if job.RequestID != "" {
		msg.SetMetadata("request_id", job.RequestID)
	}
	return p.Publish(ctx, StreamWorkflowJobs, msg)
}

// WorkflowJobMessage 异步工作流任务；Kind 决定使用哪些字段
type WorkflowJobMessage struct {
	RunID     string         `json:"run_id"`
	UserID    string         `json:"user_id,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Kind      model.RunKind  `json:"kind"`
	Name      string         `json:"name,omitempty"`
	Goal      string         `json:"goal,omitempty"`
	Steps     []model.Step   `json:"steps,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}
