package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRetryDo_CallCounts(t *testing.T) {
	unavailable := &RemoteServiceError{Op: "test", Status: http.StatusServiceUnavailable}
	notFound := &RemoteServiceError{Op: "test", Status: http.StatusNotFound}

	tests := []struct {
		name       string
		maxRetries int
		failures   int
		failErr    error
		wantCalls  int
		wantErr    error
	}{
		{"succeeds first time", 3, 0, nil, 1, nil},
		{"recovers after transient failures", 3, 2, unavailable, 3, nil},
		{"gives up after max retries", 2, 10, unavailable, 3, unavailable},
		{"non-transient is not retried", 3, 10, notFound, 1, notFound},
		{"zero retries still calls once", 0, 0, nil, 1, nil},
		{"negative retries still calls once", -1, 0, nil, 1, nil},
		{"negative retries surface the failure", -5, 10, unavailable, 1, unavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rc := RetryConfig{MaxRetries: tc.maxRetries, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1}
			calls := 0
			got, err := retryDo(context.Background(), rc, "test", func() (string, error) {
				calls++
				if calls <= tc.failures {
					return "", tc.failErr
				}
				return "ok", nil
			})

			if calls != tc.wantCalls {
				t.Errorf("expected %d calls, got %d", tc.wantCalls, calls)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected error %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr == nil && got != "ok" {
				t.Errorf("expected value ok, got %q", got)
			}
		})
	}
}

func TestRetryDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := retryDo(ctx, DefaultRetryConfig, "test", func() (int, error) {
		calls++
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Errorf("expected context.Canceled with no calls, got %v after %d calls", err, calls)
	}
}
