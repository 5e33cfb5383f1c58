package completion

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoModelAvailable 请求模型不可用且回退链中也没有可用模型
var ErrNoModelAvailable = errors.New("no llm model available")

// ModelAttempt 单个模型在重试耗尽后的最终错误
type ModelAttempt struct {
	Model string
	Err   error
}

// AllModelsFailed 主模型与全部回退模型均失败
type AllModelsFailed struct {
	Attempts []ModelAttempt
}

func (e *AllModelsFailed) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Model, a.Err))
	}
	return "all models failed: " + strings.Join(parts, "; ")
}

func (e *AllModelsFailed) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Models 按尝试顺序返回模型名
func (e *AllModelsFailed) Models() []string {
	names := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		names = append(names, a.Model)
	}
	return names
}
