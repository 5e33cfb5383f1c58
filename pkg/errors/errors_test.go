package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithErrorDoesNotMutateSentinel(t *testing.T) {
	cause := stderrors.New("boom")
	err := ErrAllModelsFailed.WithError(cause)

	assert.Nil(t, ErrAllModelsFailed.Err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus)
}

func TestAsAppErrorUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("step 2: %w", ErrUnknownAgent.WithDetail("ghost"))

	appErr := AsAppError(wrapped)
	assert.Equal(t, CodeUnknownAgent, appErr.Code)
	assert.Equal(t, "ghost", appErr.Detail)
	assert.True(t, IsAppError(wrapped))

	plain := AsAppError(stderrors.New("plain"))
	assert.Equal(t, CodeUnknown, plain.Code)
}
