package client

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned for every non-2xx response of the Grafana API.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// retryable reports transport failures and responses worth another attempt.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	switch statusOf(err) {
	case 0:
		return !errors.Is(err, errRequest)
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// errRequest marks failures that happen before anything is sent.
var errRequest = errors.New("invalid request")
