package prompt

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	assert.Equal(t, PromptID("planner.plan"), Resolve("planner", "plan"))
	assert.Equal(t, PromptID("research.summarize_literature"), Resolve("research", "summarize_literature"))
	assert.Equal(t, PromptID("research"), Resolve("research", "gap_analysis"))
	assert.Equal(t, PromptGeneric, Resolve("translator", "translate"))
}

func TestRegistry_AllStaticPromptsRender(t *testing.T) {
	r := NewRegistry()
	input := map[string]any{"topic": "graph neural networks", "papers": []any{map[string]any{"title": "{braces} ok"}}}

	for id := range staticPrompts {
		tpl, err := r.ChatTemplate(id)
		require.NoError(t, err, id)

		msgs, err := tpl.Format(context.Background(), Variables("agent", "task", input))
		require.NoError(t, err, id)
		require.Len(t, msgs, 2, id)
		assert.Equal(t, schema.System, msgs[0].Role)
		assert.Equal(t, schema.User, msgs[1].Role)
		assert.NotContains(t, msgs[1].Content, "{task}", id)
	}
}

func TestRegistry_RenderPlannerKeepsLiteralBraces(t *testing.T) {
	msgs, id, err := NewRegistry().Render(context.Background(), "planner", "plan", map[string]any{"topic": "survey diffusion models"})
	require.NoError(t, err)
	assert.Equal(t, PromptID("planner.plan"), id)
	assert.Contains(t, msgs[1].Content, `{"steps": [{"agent"`)
	assert.Contains(t, msgs[1].Content, "Goal: survey diffusion models")
}

func TestRegistry_CachesTemplates(t *testing.T) {
	r := NewRegistry()
	a, err := r.ChatTemplate(PromptGeneric)
	require.NoError(t, err)
	b, err := r.ChatTemplate(PromptGeneric)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = r.ChatTemplate("missing")
	assert.Error(t, err)
}
