package llm

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Adapter 单一提供商的调用契约。
// 适配器不做重试，也不吞错：所有失败以 *ProviderCallFailed 返回。
type Adapter interface {
	Provider() string
	Complete(ctx context.Context, req CallRequest) (*Response, error)
	Stream(ctx context.Context, req CallRequest) (*ChunkStream, error)
	// ExtractUsage 从原始响应中提取并归一化用量，缺失字段按 0 处理
	ExtractUsage(raw *schema.Message) Usage
}
