package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeStructured(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		want       map[string]any
		structured bool
	}{
		{
			name:       "strict object",
			raw:        `{"title":"A","score":3}`,
			want:       map[string]any{"title": "A", "score": float64(3)},
			structured: true,
		},
		{
			name:       "object embedded in prose",
			raw:        `prefix text {"a":1} suffix`,
			want:       map[string]any{"a": float64(1)},
			structured: true,
		},
		{
			name:       "braces inside strings",
			raw:        `Here: {"text":"use } and { freely","n":{"m":2}} done`,
			want:       map[string]any{"text": "use } and { freely", "n": map[string]any{"m": float64(2)}},
			structured: true,
		},
		{
			name:       "code fence",
			raw:        "```json\n{\"ok\":true}\n```",
			want:       map[string]any{"ok": true},
			structured: true,
		},
		{
			name:       "skips unbalanced candidate",
			raw:        `see {broken and then {"b":"x"}`,
			want:       map[string]any{"b": "x"},
			structured: true,
		},
		{
			name:       "plain text",
			raw:        "not json at all",
			want:       map[string]any{"content": "not json at all"},
			structured: false,
		},
		{
			name:       "top level array is not an object",
			raw:        `[1,2,3]`,
			want:       map[string]any{"content": "[1,2,3]"},
			structured: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeStructured(tt.raw)
			assert.Equal(t, tt.structured, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	got, ok := ExtractJSONObject(`x {"a":"\"}"} y`)
	assert.True(t, ok)
	assert.Equal(t, `{"a":"\"}"}`, got)

	_, ok = ExtractJSONObject("{ never closed")
	assert.False(t, ok)
}

func TestTruncateAndSummarize(t *testing.T) {
	assert.Equal(t, "学术", TruncateByRunes("学术论文", 2))
	assert.Equal(t, "", TruncateByRunes("abc", 0))

	assert.Equal(t, `{"a":1}`, Summarize(map[string]any{"a": 1}, 100))
	assert.Equal(t, "abc...", Summarize("abcdef", 3))
	assert.Equal(t, "", Summarize(nil, 10))
}
