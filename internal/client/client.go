// Package client talks to the Grafana HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/grafana-toolbox/grafana-wtf/internal/cache"
)

const (
	ContentType   = "Content-Type"
	Authorization = "Authorization"

	defaultUsername = "admin"
	defaultPassword = "admin"
)

type Grafana struct {
	baseURL  *url.URL
	token    string
	username string
	password string

	httpClient *http.Client
	limiter    *rate.Limiter
	retry      failsafe.Executor[any]
	userAgent  string
	logger     *zap.Logger
}

// NewClient creates a client for the Grafana instance at rawURL. Without a
// token, HTTP basic auth is used with the credentials of the URL, falling
// back to admin:admin.
func NewClient(log *zap.Logger, rawURL, token string, opts ...Option) (*Grafana, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("grafana url is empty")
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse grafana url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid grafana url %q: scheme and host required", rawURL)
	}

	o := options{timeout: DefaultTimeout, retries: DefaultRetries, userAgent: "grafana-wtf"}
	for _, opt := range opts {
		opt(&o)
	}

	g := &Grafana{
		token:     token,
		username:  defaultUsername,
		password:  defaultPassword,
		userAgent: o.userAgent,
		logger:    log,
	}
	if base.User != nil {
		g.username = base.User.Username()
		if p, ok := base.User.Password(); ok {
			g.password = p
		}
		base.User = nil
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	g.baseURL = base

	g.httpClient = o.httpClient
	if g.httpClient == nil {
		g.httpClient = newHTTPClient(o)
	}
	if o.rateLimit > 0 {
		burst := int(o.rateLimit)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(o.rateLimit), burst)
	}
	g.retry = newRetryExecutor(log, o.retries)

	return g, nil
}

// newHTTPClient stacks the response cache on top of a traced, pooled transport.
func newHTTPClient(o options) *http.Client {
	pooled := cleanhttp.DefaultPooledTransport()
	pooled.MaxIdleConnsPerHost = 100

	var rt http.RoundTripper = otelhttp.NewTransport(pooled)
	if o.cache != nil {
		rt = cache.NewTransport(o.cache, rt)
	}
	return &http.Client{Transport: rt, Timeout: o.timeout}
}

func newRetryExecutor(log *zap.Logger, retries int) failsafe.Executor[any] {
	if retries < 0 {
		retries = 0
	}
	return failsafe.With(retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			return retryable(err)
		}).
		WithBackoff(200*time.Millisecond, 5*time.Second).
		WithJitter(100 * time.Millisecond).
		WithMaxRetries(retries).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[any]) {
			log.Warn("Retrying Grafana API request", zap.Int("attempt", e.Attempts()), zap.Error(e.LastError()))
		}).
		Build())
}

// URL returns the base URL without credentials.
func (g *Grafana) URL() string {
	return g.baseURL.String()
}

func (g *Grafana) endpoint(path string, query url.Values) string {
	u := *g.baseURL
	u.Path = g.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one request and returns the body of a 2xx response. GET
// requests are retried.
func (g *Grafana) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to marshal payload: %v", errRequest, err)
		}
	}

	attempt := func() ([]byte, error) {
		return g.send(ctx, method, g.endpoint(path, query), raw)
	}
	if method != http.MethodGet {
		return attempt()
	}

	var body []byte
	err := g.retry.WithContext(ctx).Run(func() error {
		var err error
		body, err = attempt()
		return err
	})
	return body, err
}

func (g *Grafana) send(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", errRequest, err)
		}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", errRequest, err)
	}

	req.Header.Set(ContentType, "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.userAgent)
	if g.token != "" {
		req.Header.Set(Authorization, "Bearer "+g.token)
	} else {
		req.SetBasicAuth(g.username, g.password)
	}

	g.logger.Debug("Making request to Grafana API", zap.String("method", method), zap.String("url", endpoint))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Error("HTTP request failed", zap.String("url", endpoint), zap.Error(err))
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", errRequest, err)
		}
		return nil, fmt.Errorf("failed to do request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.logger.Warn("Failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.Error("Failed to read response body", zap.String("url", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Debug("API request failed", zap.String("url", endpoint), zap.Int("status", resp.StatusCode), zap.String("response", string(body)))
		return nil, &APIError{StatusCode: resp.StatusCode, Method: method, URL: endpoint, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func (g *Grafana) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := g.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	// Numbers stay json.Number so ids and versions survive a round trip.
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to parse response of %s: %w", path, err)
	}
	return nil
}

func itoa(i int) string { return strconv.Itoa(i) }
