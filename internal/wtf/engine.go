// Package wtf searches, explores and rewrites the dashboards of a Grafana
// instance.
package wtf

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/cache"
	"github.com/grafana-toolbox/grafana-wtf/internal/index"
	"github.com/grafana-toolbox/grafana-wtf/internal/scan"
	"github.com/grafana-toolbox/grafana-wtf/pkg/finder"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

// API is the part of the Grafana HTTP API the engine uses.
type API interface {
	scan.Source
	GetDashboardVersions(ctx context.Context, id int64) ([]types.DashboardVersion, error)
	GetDashboardVersionsByUID(ctx context.Context, uid string) ([]types.DashboardVersion, error)
	UpdateDashboard(ctx context.Context, req types.UpdateDashboardRequest) (*types.UpdateDashboardResponse, error)
	Health(ctx context.Context) (*types.Health, error)
	AdminStats(ctx context.Context) (types.AdminStats, error)
	ListFolders(ctx context.Context) ([]types.Folder, error)
	ListPlugins(ctx context.Context) ([]types.Plugin, error)
	PluginHealth(ctx context.Context, id string) (*types.PluginHealth, error)
	ListNotificationChannels(ctx context.Context) ([]types.NotificationChannel, error)
	GetNotificationChannel(ctx context.Context, uid string) (*types.NotificationChannel, error)
}

type Engine struct {
	logger      *zap.Logger
	api         API
	cache       *cache.Responses
	concurrency int
	pageSize    int
	progress    scan.Progress
	grafanaURL  string
	selected    []string
	finder      *finder.Finder

	mu     sync.RWMutex
	data   *scan.Data
	scanID string
}

type Option func(*Engine)

// WithCache lets the engine purge the responses the client cached.
func WithCache(c *cache.Responses) Option {
	return func(e *Engine) { e.cache = c }
}

func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = n }
}

func WithPageSize(n int) Option {
	return func(e *Engine) { e.pageSize = n }
}

func WithProgress(p scan.Progress) Option {
	return func(e *Engine) { e.progress = p }
}

// WithGrafanaURL is used for rendering absolute links.
func WithGrafanaURL(u string) Option {
	return func(e *Engine) { e.grafanaURL = u }
}

// WithDashboards restricts Scan to the dashboards with the given uids.
func WithDashboards(uids []string) Option {
	return func(e *Engine) {
		if len(uids) > 0 {
			e.selected = uids
		}
	}
}

func New(log *zap.Logger, api API, opts ...Option) *Engine {
	e := &Engine{
		logger:      log,
		api:         api,
		concurrency: scan.DefaultConcurrency,
		pageSize:    scan.DefaultPageSize,
		progress:    scan.NopProgress{},
		finder:      finder.New(log),
		data:        &scan.Data{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) scanner() *scan.Scanner {
	return scan.New(e.logger, e.api,
		scan.WithConcurrency(e.concurrency),
		scan.WithPageSize(e.pageSize),
		scan.WithProgress(e.progress))
}

// Scan replaces the data model with a fresh copy of all data sources and
// the selected dashboards.
func (e *Engine) Scan(ctx context.Context) {
	id := uuid.NewString()
	e.logger.Info("Scanning Grafana", zap.String("url", e.grafanaURL), zap.String("scan_id", id))

	data := e.scanner().Scan(ctx, e.selected)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = data
	e.scanID = id
}

func (e *Engine) ScanDatasources(ctx context.Context) []types.DataSource {
	datasources := e.scanner().ScanDatasources(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = &scan.Data{
		Datasources:   datasources,
		DashboardList: e.data.DashboardList,
		Dashboards:    e.data.Dashboards,
	}
	return datasources
}

func (e *Engine) ScanDashboards(ctx context.Context, uids []string) []*types.Dashboard {
	summaries, dashboards := e.scanner().ScanDashboards(ctx, uids)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = &scan.Data{
		Datasources:   e.data.Datasources,
		DashboardList: summaries,
		Dashboards:    dashboards,
	}
	return dashboards
}

func (e *Engine) GrafanaURL() string {
	return e.grafanaURL
}

// ScanID identifies the most recent full scan.
func (e *Engine) ScanID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scanID
}

// Data returns the current data model. It must not be modified.
func (e *Engine) Data() *scan.Data {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.data
}

// ClearCache drops all cached API responses.
func (e *Engine) ClearCache() {
	if e.cache == nil {
		return
	}
	e.logger.Info("Clearing cache")
	e.cache.Clear()
}

func (e *Engine) indexer() *index.Indexer {
	data := e.Data()
	return index.New(e.logger, data.Dashboards, data.Datasources, index.WithGrafanaURL(e.grafanaURL))
}

func (e *Engine) ExploreDatasources() index.DatasourceExploration {
	return e.indexer().ExploreDatasources()
}

func (e *Engine) ExploreDashboards(opts index.ExploreOptions) []index.DashboardExploration {
	return e.indexer().ExploreDashboards(opts)
}
