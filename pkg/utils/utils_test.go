package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFingerprint(t *testing.T) {
	assert.Equal(t, "", TokenFingerprint("  "))

	fp := TokenFingerprint("abc.def.ghi")
	assert.Len(t, fp, 12)
	assert.Equal(t, fp, TokenFingerprint("abc.def.ghi"))
	assert.NotEqual(t, fp, TokenFingerprint("abc.def.ghj"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", MaskSecret("abcd"))
	assert.Equal(t, "abcd**ghij", MaskSecret("abcdefghij"))
}

func TestAppError(t *testing.T) {
	err := NewAppError(ErrCodeStorage, "Failed to write key", "disk full")
	assert.Equal(t, "STORAGE_ERROR: Failed to write key (disk full)", err.Error())
	assert.Equal(t, ErrCodeStorage, ErrorCode(err))
	assert.NotZero(t, err.Line)

	assert.Equal(t, "", ErrorCode(assert.AnError))
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger("debug", "json", "discard", ""))
	assert.Equal(t, "debug", GetLogger().GetLevel().String())

	assert.Error(t, InitLogger("loud", "text", "stdout", ""))
}

func TestWrap(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, ErrCodeNetwork, "Request failed")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, ErrCodeNetwork, ErrorCode(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, "NETWORK_ERROR: Request failed (context deadline exceeded)", err.Error())
	assert.Contains(t, err.File, "utils_test.go")

	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing").Unwrap())
	assert.NotEmpty(t, NewAppError(ErrCodeInternal, "boom").WithStackTrace().StackTrace)
}
