// Package scan fetches dashboards and data sources from Grafana.
package scan

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grafana-toolbox/grafana-wtf/internal/client"
	"github.com/grafana-toolbox/grafana-wtf/pkg/paginate"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

const (
	DefaultPageSize    = 5000
	DefaultConcurrency = 5

	instrumentation = "github.com/grafana-toolbox/grafana-wtf/internal/scan"
	authHint        = "Please use --grafana-token or GRAFANA_TOKEN for authenticating with Grafana"
)

// Source is the part of the Grafana API a scan needs.
type Source interface {
	ListDatasources(ctx context.Context) ([]types.DataSource, error)
	SearchDashboards(ctx context.Context, limit, page int) ([]types.DashboardSummary, error)
	GetDashboard(ctx context.Context, uid string) (*types.Dashboard, error)
}

type Scanner struct {
	logger      *zap.Logger
	source      Source
	concurrency int
	pageSize    int
	progress    Progress

	tracer  trace.Tracer
	fetched metric.Int64Counter
	failed  metric.Int64Counter
}

type Option func(*Scanner)

// WithConcurrency bounds the number of dashboards fetched in parallel.
// Values below 2 fetch sequentially.
func WithConcurrency(n int) Option {
	return func(s *Scanner) { s.concurrency = n }
}

func WithPageSize(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithProgress(p Progress) Option {
	return func(s *Scanner) {
		if p != nil {
			s.progress = p
		}
	}
}

func New(log *zap.Logger, source Source, opts ...Option) *Scanner {
	s := &Scanner{
		logger:      log,
		source:      source,
		concurrency: DefaultConcurrency,
		pageSize:    DefaultPageSize,
		progress:    NopProgress{},
		tracer:      otel.Tracer(instrumentation),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter(instrumentation)
	var err error
	if s.fetched, err = meter.Int64Counter("grafana_wtf.dashboards.fetched",
		metric.WithDescription("Number of dashboards fetched by uid.")); err != nil {
		log.Warn("Failed to create counter", zap.Error(err))
	}
	if s.failed, err = meter.Int64Counter("grafana_wtf.dashboards.failed",
		metric.WithDescription("Number of dashboards which could not be fetched.")); err != nil {
		log.Warn("Failed to create counter", zap.Error(err))
	}
	return s
}

// Scan fetches data sources and dashboards into a fresh Data.
func (s *Scanner) Scan(ctx context.Context, uids []string) *Data {
	data := &Data{}
	data.Datasources = s.ScanDatasources(ctx)
	data.DashboardList, data.Dashboards = s.ScanDashboards(ctx, uids)
	return data
}

// ScanDatasources lists all data sources. Failures are logged and yield an
// empty list.
func (s *Scanner) ScanDatasources(ctx context.Context) []types.DataSource {
	ctx, span := s.tracer.Start(ctx, "scan.datasources")
	defer span.End()

	s.logger.Info("Scanning datasources")
	datasources, err := s.source.ListDatasources(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.handleError("Failed to list datasources", err)
		return []types.DataSource{}
	}
	span.SetAttributes(attribute.Int("datasources", len(datasources)))
	s.logger.Info("Found datasources", zap.Int("count", len(datasources)))
	return datasources
}

// ScanDashboards fetches the dashboards with the given uids, or all
// dashboards when uids is nil. Dashboards failing to load are logged and
// left out. Both results are sorted by uid.
func (s *Scanner) ScanDashboards(ctx context.Context, uids []string) ([]types.DashboardSummary, []*types.Dashboard) {
	ctx, span := s.tracer.Start(ctx, "scan.dashboards")
	defer span.End()

	s.logger.Info("Scanning dashboards")
	data := &Data{}
	if uids != nil {
		s.fetchByUID(ctx, uids, data)
	} else {
		summaries, err := s.listDashboards(ctx)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			s.handleError("Failed to list dashboards", err)
			return []types.DashboardSummary{}, []*types.Dashboard{}
		}
		data.DashboardList = summaries
		s.logger.Info("Found dashboards", zap.Int("count", len(summaries)))
		s.fetchAll(ctx, summaries, data)
	}

	data.Sort()
	span.SetAttributes(
		attribute.Int("dashboards.listed", len(data.DashboardList)),
		attribute.Int("dashboards.fetched", len(data.Dashboards)))
	if data.DashboardList == nil {
		data.DashboardList = []types.DashboardSummary{}
	}
	if data.Dashboards == nil {
		data.Dashboards = []*types.Dashboard{}
	}
	return data.DashboardList, data.Dashboards
}

func (s *Scanner) listDashboards(ctx context.Context) ([]types.DashboardSummary, error) {
	summaries, err := paginate.Pages(ctx, s.pageSize, s.source.SearchDashboards)
	if err != nil {
		return nil, err
	}
	out := summaries[:0]
	for _, summary := range summaries {
		if summary.Type == "dash-folder" {
			continue
		}
		out = append(out, summary)
	}
	return out, nil
}

// fetchByUID derives the summaries from the fetched envelopes, so every
// dashboard costs one request.
func (s *Scanner) fetchByUID(ctx context.Context, uids []string, data *Data) {
	s.progress.Start(len(uids))
	defer s.progress.Finish()

	for _, uid := range uids {
		s.logger.Info("Fetching dashboard by uid", zap.String("uid", uid))
		dashboard, err := s.fetch(ctx, uid, "")
		if err != nil {
			continue
		}
		data.DashboardList = append(data.DashboardList, dashboard.Summary())
		data.AppendDashboard(dashboard)
	}
}

func (s *Scanner) fetchAll(ctx context.Context, summaries []types.DashboardSummary, data *Data) {
	s.progress.Start(len(summaries))
	defer s.progress.Finish()

	if s.concurrency <= 1 {
		s.logger.Info("Fetching dashboards one by one")
		for _, summary := range summaries {
			if ctx.Err() != nil {
				return
			}
			if dashboard, err := s.fetch(ctx, summary.UID, summary.Title); err == nil {
				data.AppendDashboard(dashboard)
			}
		}
		return
	}

	s.logger.Info("Fetching dashboards in parallel", zap.Int("concurrency", s.concurrency))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, summary := range summaries {
		g.Go(func() error {
			if dashboard, err := s.fetch(gctx, summary.UID, summary.Title); err == nil {
				data.AppendDashboard(dashboard)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scanner) fetch(ctx context.Context, uid, title string) (*types.Dashboard, error) {
	s.logger.Debug("Fetching dashboard", zap.String("uid", uid), zap.String("title", title))
	defer s.progress.Add(1)

	dashboard, err := s.source.GetDashboard(ctx, uid)
	if err == nil && dashboard.IsFolder() {
		err = fmt.Errorf("%s is a folder", uid)
	}
	if err != nil {
		s.add(ctx, s.failed)
		s.handleError("Failed to fetch dashboard", err, zap.String("uid", uid), zap.String("title", title))
		return nil, err
	}
	s.add(ctx, s.fetched)
	return dashboard, nil
}

func (s *Scanner) add(ctx context.Context, c metric.Int64Counter) {
	if c != nil {
		c.Add(ctx, 1)
	}
}

func (s *Scanner) handleError(msg string, err error, fields ...zap.Field) {
	s.logger.Error(msg, append(fields, zap.Error(err))...)
	if client.IsUnauthorized(err) {
		s.logger.Error(authHint)
	}
}
