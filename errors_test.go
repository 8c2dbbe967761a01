package aio

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStructuredError(t *testing.T) {
	err := NewError("submit", ErrCodeSubmitFailed, "queue full")
	require.Equal(t, "submit", err.Op)
	require.Equal(t, ErrCodeSubmitFailed, err.Code)
	require.Equal(t, "aio: queue full (op=submit)", err.Error())
}

func TestHandleError(t *testing.T) {
	err := NewHandleError("retry", 7, 2, ErrCodeNotRetryable, "op kind is not retryable")
	require.EqualValues(t, 7, err.Handle)
	require.EqualValues(t, 2, err.OwnerID)
	require.Contains(t, err.Error(), "handle=7")
}

func TestWrapErrnoNonNegativeIsNil(t *testing.T) {
	require.Nil(t, WrapErrno("wait", 0, 0))
	require.Nil(t, WrapErrno("wait", 0, 128))
}

func TestWrapErrnoClassification(t *testing.T) {
	err := WrapErrno("read", 3, -int64(syscall.EAGAIN))
	require.Equal(t, ErrCodeSubmitFailed, err.Code)
	require.Equal(t, syscall.EAGAIN, err.Errno)

	err = WrapErrno("read", 3, -int64(syscall.ENOSPC))
	require.Equal(t, ErrCodeSlotExhausted, err.Code)

	err = WrapErrno("read", 3, -int64(syscall.EIO))
	require.Equal(t, ErrCodeHardFailure, err.Code)
}

func TestIsCode(t *testing.T) {
	err := NewError("retry", ErrCodeRetryExhausted, "gave up")
	require.True(t, IsCode(err, ErrCodeRetryExhausted))
	require.False(t, IsCode(err, ErrCodeHardFailure))
	require.False(t, IsCode(errors.New("plain"), ErrCodeRetryExhausted))
}

func TestErrorIsComparesByCode(t *testing.T) {
	a := NewError("retry", ErrCodeRetryExhausted, "first")
	b := NewError("wait", ErrCodeRetryExhausted, "second")
	c := NewError("wait", ErrCodeHardFailure, "third")

	require.True(t, errors.Is(a, b))
	require.False(t, errors.Is(a, c))
}
