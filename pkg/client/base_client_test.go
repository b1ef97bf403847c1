package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"flood-risk-aggregator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKey = "test-key"

func testConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:        baseURL,
		APIKey:         testKey,
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		Multiplier:     2,
		Threshold:      100,
		BreakerTimeout: time.Minute,
	}
}

func countingServer(t *testing.T, handler func(n int32, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(calls.Add(1), w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestBaseClient_RetriesTransientThenSucceeds(t *testing.T) {
	srv, calls := countingServer(t, func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	c := NewBaseClient("test", testConfig(srv.URL), zap.NewNop())
	body, err := c.GetWithRetry(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestBaseClient_StopsAfterTwoRetries(t *testing.T) {
	srv, calls := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := NewBaseClient("test", testConfig(srv.URL), zap.NewNop())
	_, err := c.GetWithRetry(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(3), calls.Load())
}

func TestBaseClient_NoRetryOnClientError(t *testing.T) {
	srv, calls := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no such province"}`))
	})

	c := NewBaseClient("test", testConfig(srv.URL), zap.NewNop())
	_, err := c.GetWithRetry(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBaseClient_MissingKeyFailsWithoutCalling(t *testing.T) {
	srv, calls := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cfg := testConfig(srv.URL)
	cfg.APIKey = ""
	c := NewBaseClient("test", cfg, zap.NewNop())

	_, err := c.GetWithRetry(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, models.ErrMissingCredentials)
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
	assert.Equal(t, int32(0), calls.Load())
}

func TestBaseClient_TimeoutIsUnavailable(t *testing.T) {
	srv, _ := countingServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		w.WriteHeader(http.StatusOK)
	})

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	c := NewBaseClient("test", cfg, zap.NewNop())

	start := time.Now()
	_, err := c.GetWithRetry(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestBaseClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv, calls := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	cfg := testConfig(srv.URL)
	cfg.Threshold = 2
	cfg.MaxRetries = 0
	c := NewBaseClient("test", cfg, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := c.GetWithRetry(context.Background(), srv.URL, nil)
		require.Error(t, err)
	}
	_, err := c.GetWithRetry(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, int32(2), calls.Load())
}

func TestBaseClient_ClientErrorsKeepBreakerClosed(t *testing.T) {
	srv, calls := countingServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("province") == "Atlantis" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	cfg := testConfig(srv.URL)
	cfg.Threshold = 2
	c := NewBaseClient("test", cfg, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := c.GetWithRetry(context.Background(), srv.URL+"?province=Atlantis", nil)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusNotFound, se.Code)
	}

	body, err := c.GetWithRetry(context.Background(), srv.URL+"?province=Hanoi", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(6), calls.Load())
}

func TestBaseClient_CallerCancelKeepsBreakerClosed(t *testing.T) {
	srv, _ := countingServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("slow") != "" {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	cfg := testConfig(srv.URL)
	cfg.Threshold = 2
	c := NewBaseClient("test", cfg, zap.NewNop())

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := c.GetWithRetry(ctx, srv.URL+"?slow=1", nil)
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	_, err := c.GetWithRetry(context.Background(), srv.URL, nil)
	require.NoError(t, err)
}

func TestCountsAsSuccess(t *testing.T) {
	assert.True(t, countsAsSuccess(nil))
	assert.True(t, countsAsSuccess(&StatusError{Code: 404}))
	assert.True(t, countsAsSuccess(&abortedError{err: context.Canceled}))
	assert.False(t, countsAsSuccess(&StatusError{Code: 502}))
	assert.False(t, countsAsSuccess(fmt.Errorf("max retries exceeded, last error: %w", &StatusError{Code: 429})))
	assert.False(t, countsAsSuccess(errors.New("connection refused")))
	assert.False(t, countsAsSuccess(context.DeadlineExceeded))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("connection reset")))
	assert.True(t, IsTransient(&StatusError{Code: 500}))
	assert.True(t, IsTransient(&StatusError{Code: 429}))
	assert.False(t, IsTransient(&StatusError{Code: 401}))
	assert.False(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(nil))
}
