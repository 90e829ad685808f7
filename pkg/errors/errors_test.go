package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorPassesThroughTyped(t *testing.T) {
	wrapped := fmt.Errorf("loading course: %w", Clone(ErrNotFound, "course not found"))

	e := FromError(wrapped)
	require.NotNil(t, e)
	assert.Equal(t, ErrNotFound.Code, e.Code)
	assert.Equal(t, http.StatusNotFound, e.Status)
}

func TestFromErrorMapsDeadlineToTimeout(t *testing.T) {
	wrapped := fmt.Errorf("querying grades: %w", context.DeadlineExceeded)

	e := FromError(wrapped)
	require.NotNil(t, e)
	assert.Equal(t, ErrTimeout.Code, e.Code)
	assert.Equal(t, http.StatusGatewayTimeout, e.Status)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	e := FromError(fmt.Errorf("connection reset"))
	require.NotNil(t, e)
	assert.Equal(t, ErrInternal.Code, e.Code)
	assert.Equal(t, http.StatusInternalServerError, e.Status)
}

func TestFromErrorNil(t *testing.T) {
	assert.Nil(t, FromError(nil))
}
