package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLLMContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", WorkflowFromContext(ctx))
	assert.Equal(t, "unknown", ProviderFromContext(ctx))

	ctx = WithWorkflow(ctx, " paper_writing ")
	ctx = WithProviderModel(ctx, "openai", "gpt-4o-mini")
	assert.Equal(t, "paper_writing", WorkflowFromContext(ctx))
	assert.Equal(t, "openai", ProviderFromContext(ctx))
	assert.Equal(t, "gpt-4o-mini", ModelFromContext(ctx))

	// 空值不覆盖已有标签
	ctx = WithProvider(ctx, "  ")
	assert.Equal(t, "openai", ProviderFromContext(ctx))
}

func TestContextUserIdentity(t *testing.T) {
	id := NewContextUserIdentity()
	ctx := context.Background()
	assert.Equal(t, AnonymousUser, id.CurrentUser(ctx))

	ctx = WithUserID(ctx, "u-42")
	assert.Equal(t, "u-42", id.CurrentUser(ctx))

	got, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u-42", got)
}
