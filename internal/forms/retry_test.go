package forms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialRetryPolicy_ShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(2, 10*time.Millisecond, 100*time.Millisecond)

	require.False(t, p.ShouldRetry(nil, 0))
	require.True(t, p.ShouldRetry(&StatusError{URL: "u", StatusCode: 500}, 0))
	require.True(t, p.ShouldRetry(&StatusError{URL: "u", StatusCode: 500}, 1))
	require.False(t, p.ShouldRetry(&StatusError{URL: "u", StatusCode: 500}, 2))
}

func TestExponentialRetryPolicy_NeverRetriesCancellation(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 10*time.Millisecond, 100*time.Millisecond)

	require.False(t, p.ShouldRetry(context.Canceled, 0))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 0))
}

func TestExponentialRetryPolicy_NeverRetriesParseError(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 10*time.Millisecond, 100*time.Millisecond)

	// Refetching a structurally broken page reproduces the same page.
	require.False(t, p.ShouldRetry(&ParseError{URL: "u", Reason: "table gone"}, 0))
}

func TestExponentialRetryPolicy_BackoffBounded(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 10*time.Millisecond, 80*time.Millisecond)

	for attempt := 0; attempt < 8; attempt++ {
		d := p.Backoff(attempt)
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 80*time.Millisecond)
	}
}

func TestNewExponentialRetryPolicy_Defaults(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(-1, 0, 0)
	require.True(t, p.ShouldRetry(&StatusError{URL: "u", StatusCode: 500}, 2))
	require.False(t, p.ShouldRetry(&StatusError{URL: "u", StatusCode: 500}, 3))
}

func TestNewExponentialRetryPolicy_ZeroDisablesRetries(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(0, 0, 0)
	require.False(t, p.ShouldRetry(&StatusError{URL: "u", StatusCode: 500}, 0))
}
