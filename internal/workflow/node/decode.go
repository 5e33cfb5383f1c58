package node

import (
	"encoding/json"
	"strings"
)

// ContentKey 结构化解析失败时原始文本所在的键
const ContentKey = "content"

// DecodeStructured 将模型输出解析为对象：
// 先整体严格解析，再截取第一个平衡的 JSON 对象，最后退化为 {"content": raw}。
// 第二个返回值表示是否得到了结构化结果。
func DecodeStructured(raw string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(stripCodeFence(raw))

	if obj, ok := decodeObject(trimmed); ok {
		return obj, true
	}
	if candidate, ok := ExtractJSONObject(trimmed); ok {
		if obj, ok := decodeObject(candidate); ok {
			return obj, true
		}
	}
	return map[string]any{ContentKey: raw}, false
}

func decodeObject(s string) (map[string]any, bool) {
	if s == "" || s[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// stripCodeFence 去掉 ```json ... ``` 包裹
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(t), "```")
}
