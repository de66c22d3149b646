package wtf

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/catalog"
	"github.com/grafana-toolbox/grafana-wtf/internal/index"
	"github.com/grafana-toolbox/grafana-wtf/pkg/dashboard"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

type GrafanaInfo struct {
	URL      string `json:"url"`
	Version  string `json:"version"`
	Commit   string `json:"commit,omitempty"`
	Database string `json:"database,omitempty"`
}

// Summary counts the entities of the scanned data model.
type Summary struct {
	Dashboards           int `json:"dashboards"`
	DashboardPanels      int `json:"dashboard_panels"`
	DashboardAnnotations int `json:"dashboard_annotations"`
	DashboardTemplating  int `json:"dashboard_templating"`
	Datasources          int `json:"datasources"`
	Folders              int `json:"folders"`
}

type Info struct {
	Grafana    GrafanaInfo      `json:"grafana"`
	Statistics types.AdminStats `json:"statistics,omitempty"`
	Summary    Summary          `json:"summary"`
}

// Info reports version and statistics of the instance. Admin statistics
// require admin permissions and are left out otherwise.
func (e *Engine) Info(ctx context.Context) (*Info, error) {
	health, err := e.api.Health(ctx)
	if err != nil {
		return nil, err
	}
	info := &Info{Grafana: GrafanaInfo{
		URL:      e.grafanaURL,
		Version:  health.Version,
		Commit:   health.Commit,
		Database: health.Database,
	}}

	if stats, err := e.api.AdminStats(ctx); err != nil {
		e.logger.Warn("Failed to fetch admin statistics", zap.Error(err))
	} else {
		info.Statistics = stats
	}

	data := e.Data()
	info.Summary.Dashboards = len(data.Dashboards)
	info.Summary.Datasources = len(data.Datasources)
	for _, d := range data.Dashboards {
		info.Summary.DashboardPanels += len(dashboard.Panels(d))
		info.Summary.DashboardAnnotations += len(d.Annotations())
		info.Summary.DashboardTemplating += len(d.Templating())
	}
	if folders, err := e.api.ListFolders(ctx); err != nil {
		e.logger.Warn("Failed to list folders", zap.Error(err))
	} else {
		info.Summary.Folders = len(folders)
	}
	return info, nil
}

func (e *Engine) Plugins(ctx context.Context) ([]types.Plugin, error) {
	plugins, err := e.api.ListPlugins(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(plugins, func(i, j int) bool { return plugins[i].ID < plugins[j].ID })
	return plugins, nil
}

type PluginStatus struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Type    string              `json:"type"`
	Version string              `json:"version"`
	Enabled bool                `json:"enabled"`
	Health  *types.PluginHealth `json:"health,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// PluginsStatus runs the health check of every plugin. Failing checks are
// reported per plugin.
func (e *Engine) PluginsStatus(ctx context.Context) ([]PluginStatus, error) {
	plugins, err := e.Plugins(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make([]PluginStatus, 0, len(plugins))
	for _, p := range plugins {
		status := PluginStatus{ID: p.ID, Name: p.Name, Type: p.Type, Version: p.Info.Version, Enabled: p.Enabled}
		health, err := e.api.PluginHealth(ctx, p.ID)
		if err != nil {
			e.logger.Debug("Plugin health check failed", zap.String("plugin", p.ID), zap.Error(err))
			status.Error = err.Error()
		} else {
			status.Health = health
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

type ChannelReport struct {
	Channel    types.NotificationChannel `json:"channel"`
	Dashboards []index.DashboardInfo     `json:"dashboards"`
}

// Channels lists the legacy notification channels, or the one with uid,
// together with the scanned dashboards referencing them.
func (e *Engine) Channels(ctx context.Context, uid string) ([]ChannelReport, error) {
	var channels []types.NotificationChannel
	if uid != "" {
		channel, err := e.api.GetNotificationChannel(ctx, uid)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *channel)
	} else {
		var err error
		if channels, err = e.api.ListNotificationChannels(ctx); err != nil {
			return nil, err
		}
	}

	data := e.Data()
	reports := make([]ChannelReport, 0, len(channels))
	for _, ch := range channels {
		report := ChannelReport{Channel: ch, Dashboards: []index.DashboardInfo{}}
		if ch.UID != "" {
			for _, d := range data.Dashboards {
				if len(e.finder.Find(ch.UID, d.Dashboard)) > 0 {
					report.Dashboards = append(report.Dashboards, index.DashboardInfo{
						Title: d.Title(),
						UID:   d.UID(),
						Path:  d.URL(),
						URL:   index.JoinURL(e.grafanaURL, d.URL()),
					})
				}
			}
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Catalog ranks the scanned dashboards by keywords.
func (e *Engine) Catalog(query string, limit int) ([]catalog.Hit, error) {
	c, err := catalog.Build(e.Data().Dashboards)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.Close(); err != nil {
			e.logger.Warn("Failed to close catalog", zap.Error(err))
		}
	}()
	return c.Search(query, limit)
}
