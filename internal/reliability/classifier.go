// Package reliability labels upstream failures. Labels feed metrics and
// console error events; nothing here retries.
package reliability

import (
	"context"
	"errors"
	"net"
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

type retryable interface {
	IsRetryable() bool
}

// IsRetryable reports whether err is transient: timeouts, network failures,
// or typed API errors that say so.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Classify returns a coarse, low-cardinality code for err.
func Classify(err error) string {
	var r retryable
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &r):
		if r.IsRetryable() {
			return "upstream_retryable"
		}
		return "upstream_rejected"
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	default:
		return "internal"
	}
}
