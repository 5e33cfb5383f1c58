package literature

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholar-ai-api/internal/config"
)

type stubSource struct {
	name   string
	papers []Paper
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Search(ctx context.Context, q Query) ([]Paper, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.papers, s.err
}

func TestFanOut_PartialFailureKeepsSiblings(t *testing.T) {
	s1 := &stubSource{name: "s1", papers: []Paper{{Title: "Attention Is All You Need", DOI: "10.1/abc"}}}
	s2 := &stubSource{name: "s2", err: errors.New("boom")}
	s3 := &stubSource{name: "s3", papers: []Paper{{Title: "BERT"}}, delay: 20 * time.Millisecond}

	res := FanOut(context.Background(), []Source{s1, s2, s3}, Query{Topic: "transformers", Limit: 5}, 0)

	require.Len(t, res.Papers, 2)
	assert.Equal(t, "s1", res.Papers[0].Source)
	assert.Equal(t, "s3", res.Papers[1].Source)
	assert.Equal(t, map[string]string{"s2": "boom"}, res.Errors)
	assert.Equal(t, []string{"s1", "s3"}, res.Succeeded())
	assert.EqualValues(t, 1, s3.calls.Load())
}

type panicSource struct{}

func (panicSource) Name() string { return "broken" }

func (panicSource) Search(context.Context, Query) ([]Paper, error) {
	panic("nil response body")
}

func TestFanOut_PanickingSourceKeepsSiblings(t *testing.T) {
	s1 := &stubSource{name: "s1", papers: []Paper{{Title: "BERT"}}}

	res := FanOut(context.Background(), []Source{panicSource{}, s1}, Query{Topic: "nlp"}, 0)

	require.Len(t, res.Papers, 1)
	assert.Equal(t, "s1", res.Papers[0].Source)
	assert.Equal(t, []string{"s1"}, res.Succeeded())
	require.Contains(t, res.Errors, "broken")
	assert.Contains(t, res.Errors["broken"], "panicked: nil response body")
}

func TestFanOut_Dedup(t *testing.T) {
	s1 := &stubSource{name: "s1", papers: []Paper{
		{Title: "Deep  Learning", DOI: "10.1/X"},
		{Title: "Graph Networks"},
	}}
	s2 := &stubSource{name: "s2", papers: []Paper{
		{Title: "deep learning (preprint)", DOI: "10.1/x"},
		{Title: "graph   networks"},
		{Title: "Diffusion"},
	}}

	res := FanOut(context.Background(), []Source{s1, s2}, Query{Topic: "dl"}, 1)

	titles := make([]string, 0, len(res.Papers))
	for _, p := range res.Papers {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"Deep  Learning", "Graph Networks", "Diffusion"}, titles)
	assert.Empty(t, res.Errors)
}

func TestFanOut_RespectsParallelLimit(t *testing.T) {
	var mu sync.Mutex
	var active, peak int
	track := func() {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}

	sources := make([]Source, 0, 6)
	for i := 0; i < 6; i++ {
		sources = append(sources, &funcSource{name: string(rune('a' + i)), fn: track})
	}
	FanOut(context.Background(), sources, Query{Topic: "x"}, 2)
	assert.LessOrEqual(t, peak, 2)
}

type funcSource struct {
	name string
	fn   func()
}

func (f *funcSource) Name() string { return f.name }

func (f *funcSource) Search(context.Context, Query) ([]Paper, error) {
	f.fn()
	return nil, nil
}

func TestSearcher(t *testing.T) {
	ok := &stubSource{name: "ok", papers: []Paper{{Title: "A"}}}
	bad := &stubSource{name: "bad", err: errors.New("down")}

	t.Run("empty topic", func(t *testing.T) {
		_, err := NewSearcher(nil, ok).Search(context.Background(), "  ", 0)
		assert.Error(t, err)
	})

	t.Run("partial success", func(t *testing.T) {
		s := NewSearcher(&config.LiteratureConfig{PerSourceLimit: 3, MaxParallel: 2}, ok, bad)
		res, err := s.Search(context.Background(), "topic", 0)
		require.NoError(t, err)
		assert.Len(t, res.Papers, 1)
		assert.Equal(t, []string{"ok", "bad"}, s.Sources())
	})

	t.Run("all fail", func(t *testing.T) {
		_, err := NewSearcher(nil, bad).Search(context.Background(), "topic", 0)
		assert.ErrorIs(t, err, ErrAllSourcesFailed)
	})

	t.Run("no sources", func(t *testing.T) {
		res, err := NewSearcher(nil).Search(context.Background(), "topic", 0)
		require.NoError(t, err)
		assert.Empty(t, res.Papers)
	})
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapCache) GetOrLoadSafe(_ context.Context, key string, _ time.Duration, loader func() (any, error)) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.data[key]; ok {
		return b, nil
	}
	v, err := loader()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m.data[key] = b
	return b, nil
}

func TestCachedSource(t *testing.T) {
	inner := &stubSource{name: "s2", papers: []Paper{{Title: "Cached", Year: 2020}}}
	cs := NewCachedSource(inner, &mapCache{data: map[string][]byte{}}, time.Hour)

	for i := 0; i < 3; i++ {
		papers, err := cs.Search(context.Background(), Query{Topic: " LLM ", Limit: 5})
		require.NoError(t, err)
		require.Len(t, papers, 1)
		assert.Equal(t, 2020, papers[0].Year)
	}
	_, err := cs.Search(context.Background(), Query{Topic: "llm", Limit: 5})
	require.NoError(t, err)

	assert.EqualValues(t, 1, inner.calls.Load())
	assert.Equal(t, "s2", cs.Name())
}
