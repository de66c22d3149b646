package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

func (g *Grafana) Health(ctx context.Context) (*types.Health, error) {
	var health types.Health
	if err := g.getJSON(ctx, "/api/health", nil, &health); err != nil {
		return nil, err
	}
	g.logger.Debug("Successfully retrieved health", zap.String("version", health.Version))
	return &health, nil
}

func (g *Grafana) AdminStats(ctx context.Context) (types.AdminStats, error) {
	var stats types.AdminStats
	if err := g.getJSON(ctx, "/api/admin/stats", nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (g *Grafana) ListDatasources(ctx context.Context) ([]types.DataSource, error) {
	var datasources []types.DataSource
	if err := g.getJSON(ctx, "/api/datasources", nil, &datasources); err != nil {
		return nil, err
	}
	g.logger.Debug("Successfully retrieved data sources", zap.Int("count", len(datasources)))
	return datasources, nil
}

// SearchDashboards returns one page of dashboard summaries. Pages are
// numbered from 1.
func (g *Grafana) SearchDashboards(ctx context.Context, limit, page int) ([]types.DashboardSummary, error) {
	query := url.Values{}
	query.Set("type", "dash-db")
	query.Set("limit", itoa(limit))
	query.Set("page", itoa(page))

	var summaries []types.DashboardSummary
	if err := g.getJSON(ctx, "/api/search", query, &summaries); err != nil {
		return nil, err
	}
	g.logger.Debug("Successfully searched dashboards", zap.Int("page", page), zap.Int("count", len(summaries)))
	return summaries, nil
}

func (g *Grafana) GetDashboard(ctx context.Context, uid string) (*types.Dashboard, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: dashboard uid is empty", errRequest)
	}
	var dashboard types.Dashboard
	if err := g.getJSON(ctx, "/api/dashboards/uid/"+url.PathEscape(uid), nil, &dashboard); err != nil {
		return nil, err
	}
	g.logger.Debug("Successfully retrieved dashboard", zap.String("uid", uid))
	return &dashboard, nil
}

// GetDashboardVersions returns the version history of a dashboard by its
// numeric id.
func (g *Grafana) GetDashboardVersions(ctx context.Context, id int64) ([]types.DashboardVersion, error) {
	return g.versions(ctx, fmt.Sprintf("/api/dashboards/id/%d/versions", id))
}

// GetDashboardVersionsByUID uses the endpoint which replaced the id based
// one in recent Grafana versions.
func (g *Grafana) GetDashboardVersionsByUID(ctx context.Context, uid string) ([]types.DashboardVersion, error) {
	return g.versions(ctx, "/api/dashboards/uid/"+url.PathEscape(uid)+"/versions")
}

func (g *Grafana) versions(ctx context.Context, path string) ([]types.DashboardVersion, error) {
	body, err := g.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	versions, err := decodeVersions(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response of %s: %w", path, err)
	}
	return versions, nil
}

// decodeVersions accepts both a plain list and the {"versions": [...]}
// object recent Grafana versions respond with.
func decodeVersions(body []byte) ([]types.DashboardVersion, error) {
	var list []types.DashboardVersion
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Versions []types.DashboardVersion `json:"versions"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Versions, nil
}

// UpdateDashboard saves a dashboard. Callers must carry the folder over
// from the meta block, Grafana moves the dashboard to the General folder
// otherwise.
func (g *Grafana) UpdateDashboard(ctx context.Context, req types.UpdateDashboardRequest) (*types.UpdateDashboardResponse, error) {
	body, err := g.do(ctx, http.MethodPost, "/api/dashboards/db", nil, req)
	if err != nil {
		return nil, err
	}
	var resp types.UpdateDashboardResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse update response: %w", err)
	}
	g.logger.Debug("Successfully updated dashboard", zap.String("uid", resp.UID), zap.Int64("version", resp.Version))
	return &resp, nil
}

func (g *Grafana) ListFolders(ctx context.Context) ([]types.Folder, error) {
	var folders []types.Folder
	if err := g.getJSON(ctx, "/api/folders", nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (g *Grafana) ListPlugins(ctx context.Context) ([]types.Plugin, error) {
	var plugins []types.Plugin
	if err := g.getJSON(ctx, "/api/plugins", nil, &plugins); err != nil {
		return nil, err
	}
	g.logger.Debug("Successfully retrieved plugins", zap.Int("count", len(plugins)))
	return plugins, nil
}

func (g *Grafana) PluginHealth(ctx context.Context, id string) (*types.PluginHealth, error) {
	var health types.PluginHealth
	if err := g.getJSON(ctx, "/api/plugins/"+url.PathEscape(id)+"/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (g *Grafana) ListNotificationChannels(ctx context.Context) ([]types.NotificationChannel, error) {
	var channels []types.NotificationChannel
	if err := g.getJSON(ctx, "/api/alert-notifications", nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (g *Grafana) GetNotificationChannel(ctx context.Context, uid string) (*types.NotificationChannel, error) {
	var channel types.NotificationChannel
	if err := g.getJSON(ctx, "/api/alert-notifications/uid/"+url.PathEscape(uid), nil, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}
