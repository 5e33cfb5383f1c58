package service

import (
	"context"
	"strings"
)

type identityCtxKey struct{}

// AnonymousUser 未识别调用方时使用的用户标识
const AnonymousUser = "anonymous"

// UserIdentity 提供当前调用方的用户标识（port）。
// 认证与会话由外部负责，核心只读取其结果。
type UserIdentity interface {
	CurrentUser(ctx context.Context) string
}

// WithUserID 将用户标识写入上下文
func WithUserID(ctx context.Context, userID string) context.Context {
	id := strings.TrimSpace(userID)
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// UserIDFromContext 读取上下文中的用户标识
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(identityCtxKey{}).(string)
	return id, ok && id != ""
}

// ContextUserIdentity 从上下文读取用户标识，缺失时返回 AnonymousUser
type ContextUserIdentity struct{}

// NewContextUserIdentity 创建基于上下文的身份提供者
func NewContextUserIdentity() ContextUserIdentity {
	return ContextUserIdentity{}
}

func (ContextUserIdentity) CurrentUser(ctx context.Context) string {
	if id, ok := UserIDFromContext(ctx); ok {
		return id
	}
	return AnonymousUser
}
