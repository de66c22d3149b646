// Package app wires the Grafana client, its response cache and the engine
// from a configuration.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/cache"
	"github.com/grafana-toolbox/grafana-wtf/internal/client"
	"github.com/grafana-toolbox/grafana-wtf/internal/config"
	"github.com/grafana-toolbox/grafana-wtf/internal/version"
	"github.com/grafana-toolbox/grafana-wtf/internal/wtf"
)

// NewEngine creates an engine talking to cfg.URL with token. Each engine
// owns its response cache.
func NewEngine(log *zap.Logger, cfg *config.Config, token string, opts ...wtf.Option) (*wtf.Engine, error) {
	ttl, err := cfg.TTL()
	if err != nil {
		return nil, err
	}
	responses, err := cache.New(log, cache.DefaultSize, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}

	api, err := client.NewClient(log, cfg.URL, token,
		client.WithCache(responses),
		client.WithTimeout(cfg.Timeout),
		client.WithRateLimit(cfg.RateLimit),
		client.WithUserAgent(version.UserAgent()),
	)
	if err != nil {
		return nil, err
	}

	opts = append([]wtf.Option{
		wtf.WithCache(responses),
		wtf.WithConcurrency(cfg.Concurrency),
		wtf.WithGrafanaURL(cfg.URL),
		wtf.WithDashboards(cfg.Dashboards),
	}, opts...)
	return wtf.New(log, api, opts...), nil
}
