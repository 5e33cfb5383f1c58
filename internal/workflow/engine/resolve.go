package engine

import (
	"context"
	"maps"
	"strings"

	"scholar-ai-api/internal/workflow/model"
	"scholar-ai-api/pkg/logger"
)

// resolveParams 解析 $var 引用；上下文中缺失的键原样保留并记录告警
func resolveParams(ctx context.Context, execCtx model.ExecutionContext, params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		s, ok := v.(string)
		if !ok || !model.IsRef(s) {
			out[k] = v
			continue
		}
		name := strings.TrimPrefix(s, model.RefPrefix)
		if val, found := execCtx[name]; found {
			out[k] = val
			continue
		}
		logger.Warn(ctx, "workflow context variable not found, passing literal",
			"param", k,
			"variable", name,
		)
		out[k] = s
	}
	return out
}

// agentInput 上下文浅拷贝叠加已解析参数，参数优先
func agentInput(execCtx model.ExecutionContext, resolved map[string]any) map[string]any {
	in := make(map[string]any, len(execCtx)+len(resolved))
	maps.Copy(in, execCtx)
	maps.Copy(in, resolved)
	return in
}

// merge 写入 <task>_result 并把结果顶层键展开到上下文
func merge(execCtx model.ExecutionContext, step model.Step, result map[string]any) {
	execCtx[step.ResultKey()] = result
	maps.Copy(execCtx, result)
}
