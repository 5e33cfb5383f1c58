package llm

import "strings"

// 提供商标识
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderZhipu    = "zhipu"
	ProviderOllama   = "ollama"
	ProviderClaude   = "claude"
)

// continuePrompt 末尾消息必须为 user 的提供商使用的补位消息
const continuePrompt = "Please continue."

// providerProfile 描述同一 OpenAI 兼容协议下各提供商的差异
type providerProfile struct {
	name           string
	defaultBaseURL string
	// requiresKey 为 false 时无需凭据即可用（本地模型）
	requiresKey bool
	// modelIDs 逻辑模型名 -> 提供商模型标识
	modelIDs map[string]string
	// trailingUser 要求最后一条消息为 user
	trailingUser bool
}

var profiles = map[string]providerProfile{
	ProviderOpenAI: {
		name:        ProviderOpenAI,
		requiresKey: true,
		modelIDs: map[string]string{
			"gpt-4o":      "gpt-4o",
			"gpt-4o-mini": "gpt-4o-mini",
			"gpt-4":       "gpt-4-turbo",
		},
	},
	ProviderDeepSeek: {
		name:           ProviderDeepSeek,
		defaultBaseURL: "https://api.deepseek.com/v1",
		requiresKey:    true,
		modelIDs: map[string]string{
			"deepseek-chat":     "deepseek-chat",
			"deepseek-reasoner": "deepseek-reasoner",
		},
	},
	ProviderZhipu: {
		name:           ProviderZhipu,
		defaultBaseURL: "https://open.bigmodel.cn/api/paas/v4/",
		requiresKey:    true,
		modelIDs: map[string]string{
			"glm-4":       "glm-4",
			"glm-4-flash": "glm-4-flash",
			"glm-4-plus":  "glm-4-plus",
		},
	},
	ProviderOllama: {
		name:           ProviderOllama,
		defaultBaseURL: "http://localhost:11434/v1",
		modelIDs: map[string]string{
			"llama3": "llama3",
			"qwen2":  "qwen2",
		},
	},
	ProviderClaude: {
		name:           ProviderClaude,
		defaultBaseURL: "https://api.anthropic.com/v1/",
		requiresKey:    true,
		modelIDs: map[string]string{
			"claude-sonnet": "claude-sonnet-4-5",
			"claude-haiku":  "claude-haiku-4-5",
			"claude-opus":   "claude-opus-4-1",
		},
		trailingUser: true,
	},
}

func lookupProfile(provider string) (providerProfile, bool) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(provider))]
	return p, ok
}

// wireModel 解析提供商侧模型标识：显式配置优先，其次映射表，最后使用逻辑名
func (p providerProfile) wireModel(logical, configured string) string {
	if configured != "" {
		return configured
	}
	if id, ok := p.modelIDs[logical]; ok {
		return id
	}
	return logical
}

// prepare 按提供商约束调整消息序列，不修改入参
func (p providerProfile) prepare(msgs []Message) []Message {
	out := make([]Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	if p.trailingUser && (len(out) == 0 || out[len(out)-1].Role != RoleUser) {
		out = append(out, UserMessage(continuePrompt))
	}
	return out
}
