package llm

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoAdapter 基于 Eino ChatModel 的通用适配器，提供商差异由 providerProfile 描述
type EinoAdapter struct {
	profile   providerProfile
	logical   string
	wire      string
	chatModel model.BaseChatModel
}

func newEinoAdapter(profile providerProfile, logical, wire string, chatModel model.BaseChatModel) *EinoAdapter {
	return &EinoAdapter{
		profile:   profile,
		logical:   logical,
		wire:      wire,
		chatModel: chatModel,
	}
}

func (a *EinoAdapter) Provider() string {
	return a.profile.name
}

// Model 逻辑模型名
func (a *EinoAdapter) Model() string {
	return a.logical
}

func (a *EinoAdapter) Complete(ctx context.Context, req CallRequest) (*Response, error) {
	msg, err := a.chatModel.Generate(ctx, a.toSchema(req.Messages), a.options(req)...)
	if err != nil {
		return nil, a.fail(err)
	}
	if msg == nil {
		return nil, a.fail(errors.New("empty response"))
	}
	return &Response{
		Content:  msg.Content,
		Usage:    a.ExtractUsage(msg),
		Model:    a.logical,
		Provider: a.profile.name,
	}, nil
}

func (a *EinoAdapter) Stream(ctx context.Context, req CallRequest) (*ChunkStream, error) {
	reader, err := a.chatModel.Stream(ctx, a.toSchema(req.Messages), a.options(req)...)
	if err != nil {
		return nil, a.fail(err)
	}
	return newChunkStream(a.profile.name, a.logical, reader, reportedUsage), nil
}

func (a *EinoAdapter) ExtractUsage(raw *schema.Message) Usage {
	u, _ := reportedUsage(raw)
	return u
}

func reportedUsage(raw *schema.Message) (Usage, bool) {
	if raw == nil || raw.ResponseMeta == nil || raw.ResponseMeta.Usage == nil {
		return Usage{}, false
	}
	u := raw.ResponseMeta.Usage
	return NewUsage(u.PromptTokens, u.CompletionTokens), true
}

func (a *EinoAdapter) toSchema(msgs []Message) []*schema.Message {
	prepared := a.profile.prepare(msgs)
	out := make([]*schema.Message, 0, len(prepared))
	for _, m := range prepared {
		out = append(out, &schema.Message{Role: toSchemaRole(m.Role), Content: m.Content})
	}
	return out
}

func (a *EinoAdapter) options(req CallRequest) []model.Option {
	opts := []model.Option{model.WithModel(a.wire)}
	if req.Temperature != nil {
		opts = append(opts, model.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	return opts
}

func (a *EinoAdapter) fail(err error) error {
	return &ProviderCallFailed{Provider: a.profile.name, Model: a.logical, Cause: err}
}

func toSchemaRole(role string) schema.RoleType {
	switch role {
	case RoleSystem:
		return schema.System
	case RoleAssistant:
		return schema.Assistant
	default:
		return schema.User
	}
}
