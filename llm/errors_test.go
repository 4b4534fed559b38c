package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRateLimited(t *testing.T) {
	require.True(t, IsRateLimited(&APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}))
	require.True(t, IsRateLimited(fmt.Errorf("call failed: %w",
		&APIError{StatusCode: http.StatusTooManyRequests})))
	require.False(t, IsRateLimited(&APIError{StatusCode: http.StatusBadRequest}))
	require.False(t, IsRateLimited(errors.New("something else")))
	require.False(t, IsRateLimited(nil))
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("connection reset")

	transient := &TransientError{Err: cause}
	require.ErrorIs(t, transient, cause)
	require.Contains(t, transient.Error(), "connection reset")

	fatal := &FatalError{Err: cause}
	require.ErrorIs(t, fatal, cause)
	require.Contains(t, fatal.Error(), "connection reset")
}

func TestIsTransientUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("request failed: %w", &TransientError{Err: context.DeadlineExceeded})
	require.True(t, IsTransient(wrapped))

	fatal := fmt.Errorf("request failed: %w", &FatalError{Err: errors.New("no key")})
	require.False(t, IsTransient(fatal))
}
