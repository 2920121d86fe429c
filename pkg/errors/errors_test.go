package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodePersistence, "append failed", cause)

	require.EqualError(t, err, "append failed: connection refused")
	require.ErrorIs(t, err, cause)
	require.True(t, IsCode(err, CodePersistence))
	require.False(t, IsCode(err, CodeNotFound))
}

func TestCodeOfFindsWrappedAppError(t *testing.T) {
	inner := Wrap(CodeNotFound, "faq not found", nil)
	outer := fmt.Errorf("handler: %w", inner)

	require.Equal(t, CodeNotFound, CodeOf(outer))
	require.Equal(t, "", CodeOf(errors.New("plain")))
}
