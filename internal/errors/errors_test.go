package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassificationFromCode(t *testing.T) {
	err := New(ErrCodePersistFailed, "write failed", nil)

	assert.Equal(t, CategoryIO, err.Category)
	assert.Equal(t, SeverityError, err.Severity)
	assert.False(t, err.Retryable)
	assert.Equal(t, "[ERR_203_PERSIST_FAILED] write failed", err.Error())
}

func TestNew_RetryableEmbeddingCodes(t *testing.T) {
	timeout := New(ErrCodeEmbedTimeout, "deadline exceeded", nil)
	failed := New(ErrCodeEmbedFailed, "bad response", nil)

	assert.True(t, timeout.Retryable)
	assert.Equal(t, SeverityWarning, timeout.Severity)
	assert.False(t, failed.Retryable)
	assert.Equal(t, CategoryEmbedding, failed.Category)
}

func TestCorruptIndexIsFatal(t *testing.T) {
	err := New(ErrCodeCorruptIndex, "graph truncated", nil)

	assert.Equal(t, SeverityFatal, err.Severity)
	assert.True(t, IsFatal(err))
	assert.False(t, IsFatal(stderrors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestWrap_PreservesCauseChain(t *testing.T) {
	cause := stderrors.New("disk full")

	err := Wrap(ErrCodePersistFailed, cause)

	require.NotNil(t, err)
	assert.Equal(t, "disk full", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(ErrCodePersistFailed, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeWorkspaceLocked, "locked by pid 12", nil)
	b := New(ErrCodeWorkspaceLocked, "different message", nil)
	c := New(ErrCodeInvalidInput, "locked by pid 12", nil)

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}

func TestWithDetail(t *testing.T) {
	err := ValidationError("empty workspace id", nil).
		WithDetail("field", "workspace_id").
		WithDetail("got", "")

	assert.Equal(t, "workspace_id", err.Details["field"])
	assert.Equal(t, ErrCodeInvalidInput, err.Code)
}

func TestHelperConstructors(t *testing.T) {
	assert.Equal(t, ErrCodeEmbedFailed, EmbeddingError("x", nil).Code)
	assert.Equal(t, ErrCodeInvalidInput, ValidationError("x", nil).Code)
	assert.Equal(t, ErrCodeInternal, InternalError("x", nil).Code)
}

func TestGetCodeAndIsRetryable(t *testing.T) {
	assert.Equal(t, ErrCodeEmbedTimeout, GetCode(New(ErrCodeEmbedTimeout, "t", nil)))
	assert.Empty(t, GetCode(stderrors.New("plain")))
	assert.True(t, IsRetryable(New(ErrCodeEmbedUnavailable, "down", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))
}
