package literature

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"scholar-ai-api/pkg/logger"
	"scholar-ai-api/pkg/metrics"
)

// ErrAllSourcesFailed 所有文献源均失败
var ErrAllSourcesFailed = errors.New("all literature sources failed")

// SourceResult 单个文献源的结果
type SourceResult struct {
	Source   string        `json:"source"`
	Papers   []Paper       `json:"papers,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration_ns"`
}

// FanOutResult 合并后的检索结果
type FanOutResult struct {
	// Papers 成功源的结果按源顺序合并并去重
	Papers  []Paper           `json:"papers"`
	Results []SourceResult    `json:"results"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Succeeded 成功的源名称
func (r *FanOutResult) Succeeded() []string {
	var out []string
	for _, sr := range r.Results {
		if sr.Err == nil {
			out = append(out, sr.Source)
		}
	}
	return out
}

// FanOut 并发查询所有源；单个源失败不会取消其他源，汇合时只取成功的子集。
// maxParallel <= 0 表示不限制并发。
func FanOut(ctx context.Context, sources []Source, q Query, maxParallel int) *FanOutResult {
	results := make([]SourceResult, len(sources))

	// 不使用 errgroup.WithContext：兄弟源失败不应取消其余请求
	var g errgroup.Group
	if maxParallel > 0 {
		g.SetLimit(maxParallel)
	}
	for i, src := range sources {
		g.Go(func() error {
			start := time.Now()
			papers, err := searchSource(ctx, src, q)
			elapsed := time.Since(start)

			status := "success"
			if err != nil {
				status = "error"
				logger.Warn(ctx, "literature source failed",
					"source", src.Name(),
					"topic", q.Topic,
					"error", err.Error(),
				)
			}
			metrics.LiteratureSearchTotal.WithLabelValues(src.Name(), status).Inc()
			metrics.LiteratureSearchDuration.WithLabelValues(src.Name()).Observe(elapsed.Seconds())

			results[i] = SourceResult{Source: src.Name(), Papers: papers, Err: err, Duration: elapsed}
			return nil
		})
	}
	_ = g.Wait()

	return join(results)
}

// searchSource 将单个源的 panic 转为该源的错误
func searchSource(ctx context.Context, src Source, q Query) (papers []Paper, err error) {
	defer func() {
		if r := recover(); r != nil {
			papers = nil
			err = fmt.Errorf("literature source %s panicked: %v", src.Name(), r)
		}
	}()
	return src.Search(ctx, q)
}

func join(results []SourceResult) *FanOutResult {
	out := &FanOutResult{Results: results, Papers: []Paper{}}
	seen := make(map[string]struct{})
	for _, sr := range results {
		if sr.Err != nil {
			if out.Errors == nil {
				out.Errors = make(map[string]string)
			}
			out.Errors[sr.Source] = sr.Err.Error()
			continue
		}
		for _, p := range sr.Papers {
			if p.Source == "" {
				p.Source = sr.Source
			}
			key := p.dedupKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out.Papers = append(out.Papers, p)
		}
	}
	return out
}
