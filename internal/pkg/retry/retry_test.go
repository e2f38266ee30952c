package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	pkghttp "github.com/futig/sla-consultant/pkg/http"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", &pkghttp.NetworkError{Err: errors.New("connection refused")}, true},
		{"server error", &pkghttp.HTTPError{StatusCode: http.StatusBadGateway}, true},
		{"rate limited", &pkghttp.HTTPError{StatusCode: http.StatusTooManyRequests}, true},
		{"not found", &pkghttp.HTTPError{StatusCode: http.StatusNotFound}, false},
		{"wrapped server error", fmt.Errorf("start: %w", &pkghttp.HTTPError{StatusCode: 503}), true},
		{"canceled", &pkghttp.NetworkError{Err: context.Canceled}, false},
		{"breaker open", &pkghttp.NetworkError{Err: gobreaker.ErrOpenState}, false},
		{"plain", errors.New("decode response"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	rc := &RetryConfig{Attempts: 3, Delay: time.Millisecond, MaxDelay: time.Millisecond}

	calls := 0
	err := Do(context.Background(), rc, "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &pkghttp.HTTPError{StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	rc := &RetryConfig{Attempts: 5, Delay: time.Millisecond, MaxDelay: time.Millisecond}

	calls := 0
	err := Do(context.Background(), rc, "test", func(ctx context.Context) error {
		calls++
		return &pkghttp.HTTPError{StatusCode: http.StatusBadRequest, Message: "bad"}
	})

	var httpErr *pkghttp.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestDefaultRetryConfig(t *testing.T) {
	rc := DefaultRetryConfig()
	assert.Less(t, rc.Delay, rc.MaxDelay)
	assert.EqualValues(t, 3, rc.Attempts)
}
