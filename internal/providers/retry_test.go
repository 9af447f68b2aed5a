package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingPolicy(delays *[]time.Duration) RetryPolicy {
	policy := DefaultRetryPolicy()
	policy.Sleeper = func(d time.Duration) { *delays = append(*delays, d) }
	return policy
}

func TestRetryPolicyRetriesTransientStatus(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := recordingPolicy(&delays).Do(context.Background(), "analyze", func(context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{Provider: "test", StatusCode: http.StatusTooManyRequests}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestRetryPolicyExhaustsAfterFourAttempts(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := recordingPolicy(&delays).Do(context.Background(), "analyze", func(context.Context) error {
		calls++
		return &StatusError{Provider: "test", StatusCode: http.StatusServiceUnavailable}
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
	assert.Contains(t, err.Error(), "failed after 4 attempts")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestRetryPolicyDoesNotRetryPermanentFaults(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "bad request", err: &StatusError{Provider: "test", StatusCode: http.StatusBadRequest}},
		{name: "unauthorized", err: &StatusError{Provider: "test", StatusCode: http.StatusUnauthorized}},
		{name: "not implemented", err: &StatusError{Provider: "test", StatusCode: http.StatusNotImplemented}},
		{name: "missing credential", err: ErrMissingCredential},
		{name: "malformed", err: ErrMalformedResponse},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []time.Duration
			calls := 0
			err := recordingPolicy(&delays).Do(context.Background(), "analyze", func(context.Context) error {
				calls++
				return tt.err
			})
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, calls)
			assert.Empty(t, delays)
		})
	}
}

func TestRetryPolicyHonorsRetryAfterWithinCap(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := recordingPolicy(&delays).Do(context.Background(), "analyze", func(context.Context) error {
		calls++
		if calls == 1 {
			return &StatusError{Provider: "test", StatusCode: http.StatusTooManyRequests, RetryAfter: 30 * time.Second}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{8 * time.Second}, delays)
}

func TestRetryPolicyStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := DefaultRetryPolicy()
	policy.Sleeper = func(time.Duration) { cancel() }

	calls := 0
	err := policy.Do(ctx, "analyze", func(context.Context) error {
		calls++
		return &StatusError{Provider: "test", StatusCode: http.StatusBadGateway}
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoffDelayCapsAtMax(t *testing.T) {
	policy := DefaultRetryPolicy()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}
	for i, expected := range want {
		assert.Equal(t, expected, policy.backoffDelay(i+1), "attempt %d", i+1)
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), ParseRetryAfter(""))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("-1"))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("soon"))
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	assert.Greater(t, ParseRetryAfter(future), 30*time.Second)
}

func TestStatusErrorRetryableSet(t *testing.T) {
	for _, code := range []int{408, 409, 429, 500, 502, 503, 504} {
		assert.True(t, (&StatusError{StatusCode: code}).Retryable(), code)
	}
	for _, code := range []int{400, 401, 403, 404, 422, 501} {
		assert.False(t, (&StatusError{StatusCode: code}).Retryable(), code)
	}
}
