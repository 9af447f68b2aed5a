package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrMissingCredential means the backend's secret is not in the environment.
	ErrMissingCredential = errors.New("missing provider credential")
	// ErrTimeout means the call did not finish within the per-item timeout.
	ErrTimeout = errors.New("provider call timed out")
	// ErrMalformedResponse means the provider returned no text or text that is not JSON.
	ErrMalformedResponse = errors.New("malformed provider response")
)

var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusConflict:            true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// StatusError is a fault reported by the provider's service.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

// Retryable reports whether the status is transient and worth another attempt.
func (e *StatusError) Retryable() bool {
	return retryableStatus[e.StatusCode]
}

// IsRetryableStatus reports whether code belongs to the transient status set.
func IsRetryableStatus(code int) bool {
	return retryableStatus[code]
}
