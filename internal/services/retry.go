package services

import (
	"context"
	"errors"
	"log"
	"math"
	"net"
	"time"
)

// RetryConfig controls retry behavior for remote calls.
type RetryConfig struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries:  3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Multiplier:  2.0,
}

// retryDo runs fn until it succeeds, fails with a non-transient error, or
// MaxRetries backoff rounds are used up. fn always runs at least once.
func retryDo[T any](ctx context.Context, rc RetryConfig, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	rc.MaxRetries = max(rc.MaxRetries, 0)

	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isTransient(err) {
			return zero, err
		}

		if attempt < rc.MaxRetries {
			wait := time.Duration(float64(rc.InitialWait) * math.Pow(rc.Multiplier, float64(attempt)))
			if wait > rc.MaxWait {
				wait = rc.MaxWait
			}
			log.Printf("%s failed (attempt %d): %v, retrying in %s", op, attempt+1, err, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}
	return zero, lastErr
}

// isTransient returns true for rate limiting, server-side failures and network errors.
// Quota exhaustion (403) and missing resources (404) are not retried.
func isTransient(err error) bool {
	var remoteErr *RemoteServiceError
	if errors.As(err, &remoteErr) && remoteErr.Status != 0 {
		return isRetryableStatus(remoteErr.Status)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

func isRetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
