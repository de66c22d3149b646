package client

import (
	"net/http"
	"time"

	"github.com/grafana-toolbox/grafana-wtf/internal/cache"
)

const (
	DefaultTimeout = 60 * time.Second
	DefaultRetries = 5
)

type options struct {
	cache      *cache.Responses
	timeout    time.Duration
	retries    int
	rateLimit  float64
	httpClient *http.Client
	userAgent  string
}

type Option func(*options)

// WithCache serves repeated GET requests from c.
func WithCache(c *cache.Responses) Option {
	return func(o *options) { o.cache = c }
}

// WithTimeout bounds every single request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRetries sets how often idempotent requests are retried on
// connection errors and 429/5xx responses.
func WithRetries(n int) Option {
	return func(o *options) { o.retries = n }
}

// WithRateLimit caps the request rate to rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(o *options) { o.rateLimit = rps }
}

// WithHTTPClient replaces the whole transport stack, caching included.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}
