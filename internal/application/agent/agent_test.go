package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholar-ai-api/internal/application/completion"
	"scholar-ai-api/internal/application/literature"
	"scholar-ai-api/internal/infrastructure/llm"
	"scholar-ai-api/internal/workflow/prompt"
)

type stubCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []completion.Request
}

func (s *stubCompleter) CompleteWithFallbacks(_ context.Context, req completion.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.reply, Model: "gpt-4o-mini", Provider: "openai"}, nil
}

func TestBaseAgent_StructuredOutput(t *testing.T) {
	c := &stubCompleter{reply: "Here you go:\n```json\n{\"draft\": \"text\", \"words\": 2}\n```"}
	a := NewBaseAgent(IDWriting, c, prompt.NewRegistry())

	out, err := a.Execute(context.Background(), "write_section", map[string]any{"topic": "graph neural networks"})
	require.NoError(t, err)
	assert.Equal(t, "text", out["draft"])
	assert.EqualValues(t, 2, out["words"])

	require.Len(t, c.reqs, 1)
	req := c.reqs[0]
	assert.Equal(t, IDWriting, req.AgentType)
	assert.Equal(t, "write_section", req.Task)
	assert.Equal(t, "agent", req.Service)
	require.NotEmpty(t, req.Messages)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[len(req.Messages)-1].Content, "graph neural networks")
}

func TestBaseAgent_PlainTextWrapped(t *testing.T) {
	c := &stubCompleter{reply: "just prose"}
	out, err := NewBaseAgent(IDEditing, c, prompt.NewRegistry()).Execute(context.Background(), "polish", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"content": "just prose"}, out)
}

func TestBaseAgent_Errors(t *testing.T) {
	c := &stubCompleter{err: errors.New("all down")}
	a := NewBaseAgent(IDReview, c, prompt.NewRegistry())

	_, err := a.Execute(context.Background(), "review", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all down")

	_, err = a.Execute(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, ErrEmptyTask)
}

type stubSearcher struct {
	topic string
	limit int
	res   *literature.FanOutResult
	err   error
}

func (s *stubSearcher) Search(_ context.Context, topic string, limit int) (*literature.FanOutResult, error) {
	s.topic, s.limit = topic, limit
	return s.res, s.err
}

func TestResearchAgent_SearchLiterature(t *testing.T) {
	s := &stubSearcher{res: &literature.FanOutResult{
		Papers: []literature.Paper{{Title: "A", Source: "arxiv"}},
		Results: []literature.SourceResult{
			{Source: "arxiv"},
			{Source: "semantic_scholar", Err: errors.New("429")},
		},
		Errors: map[string]string{"semantic_scholar": "429"},
	}}
	c := &stubCompleter{reply: "{}"}
	a := NewResearchAgent(c, prompt.NewRegistry(), s)

	out, err := a.Execute(context.Background(), TaskSearchLiterature, map[string]any{"topic": "rlhf", "limit": "7"})
	require.NoError(t, err)
	assert.Equal(t, "rlhf", s.topic)
	assert.Equal(t, 7, s.limit)
	assert.Len(t, out["papers"], 1)
	assert.Equal(t, []string{"arxiv"}, out["sources"])
	assert.Equal(t, map[string]string{"semantic_scholar": "429"}, out["source_errors"])
	assert.Empty(t, c.reqs)
}

func TestResearchAgent_OtherTasksUseModel(t *testing.T) {
	c := &stubCompleter{reply: `{"summary": "s"}`}
	a := NewResearchAgent(c, prompt.NewRegistry(), nil)

	out, err := a.Execute(context.Background(), "summarize_literature", map[string]any{"topic": "t"})
	require.NoError(t, err)
	assert.Equal(t, "s", out["summary"])
	require.Len(t, c.reqs, 1)
	assert.Equal(t, IDResearch, c.reqs[0].AgentType)

	out, err = a.Execute(context.Background(), TaskSearchLiterature, map[string]any{"topic": "t"})
	require.NoError(t, err)
	assert.Empty(t, out["papers"])
}

func TestRegistry(t *testing.T) {
	c := &stubCompleter{reply: "{}"}
	r := NewRegistry(DefaultAgents(c, prompt.NewRegistry(), nil)...)

	assert.Equal(t, []string{IDEditing, IDOutline, IDPaper, IDResearch, IDReview, IDWriting}, r.IDs())

	a, ok := r.Get(IDResearch)
	require.True(t, ok)
	_, isResearch := a.(*ResearchAgent)
	assert.True(t, isResearch)

	_, ok = r.Get("ghost")
	assert.False(t, ok)

	custom := NewBaseAgent(IDWriting, &stubCompleter{reply: "x"}, prompt.NewRegistry())
	r.Register(custom)
	got, _ := r.Get(IDWriting)
	assert.Same(t, custom, got)
	r.Register(nil)
	assert.Len(t, r.IDs(), 6)
}

func TestIntParam(t *testing.T) {
	assert.Equal(t, 3, intParam(3))
	assert.Equal(t, 4, intParam(float64(4)))
	assert.Equal(t, 12, intParam(" 12 "))
	assert.Equal(t, 0, intParam("x"))
	assert.Equal(t, 0, intParam(nil))
}
