package engine

import (
	"errors"
	"fmt"
)

// ErrUnknownWorkflow 预定义工作流不存在
var ErrUnknownWorkflow = errors.New("unknown predefined workflow")

// UnknownAgentError 步骤引用了未注册的 agent，运行随即失败
type UnknownAgentError struct {
	AgentID   string
	StepIndex int
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("unknown agent %q at step %d", e.AgentID, e.StepIndex)
}

// IsUnknownAgent 判断错误链中是否包含 UnknownAgentError
func IsUnknownAgent(err error) bool {
	var target *UnknownAgentError
	return errors.As(err, &target)
}
