package usage

import (
	"maps"

	"scholar-ai-api/internal/config"
)

// Price 每千 token 价格（USD）
type Price struct {
	InputPer1K  float64
	OutputPer1K float64
}

// DefaultPrices 默认价格表，可被配置覆盖
var DefaultPrices = map[string]Price{
	"gpt-4o":            {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"gpt-4o-mini":       {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"gpt-4":             {InputPer1K: 0.01, OutputPer1K: 0.03},
	"deepseek-chat":     {InputPer1K: 0.00027, OutputPer1K: 0.0011},
	"deepseek-reasoner": {InputPer1K: 0.00055, OutputPer1K: 0.00219},
	"glm-4":             {InputPer1K: 0.014, OutputPer1K: 0.014},
	"glm-4-flash":       {InputPer1K: 0, OutputPer1K: 0},
	"claude-sonnet":     {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-haiku":      {InputPer1K: 0.001, OutputPer1K: 0.005},
	"claude-opus":       {InputPer1K: 0.015, OutputPer1K: 0.075},
	"llama3":            {InputPer1K: 0, OutputPer1K: 0},
}

// Pricing 模型价格表
type Pricing struct {
	prices map[string]Price
}

// NewPricing 以默认价格表为基础，叠加配置中的价格
func NewPricing(overrides map[string]config.PriceConfig) *Pricing {
	prices := maps.Clone(DefaultPrices)
	for name, p := range overrides {
		prices[name] = Price{InputPer1K: p.InputPer1K, OutputPer1K: p.OutputPer1K}
	}
	return &Pricing{prices: prices}
}

// Cost 估算费用，未知模型按 0 计
func (p *Pricing) Cost(model string, promptTokens, completionTokens int) float64 {
	if p == nil {
		return 0
	}
	price, ok := p.prices[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1000*price.InputPer1K + float64(completionTokens)/1000*price.OutputPer1K
}
