package wtf

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/client"
	"github.com/grafana-toolbox/grafana-wtf/internal/index"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

// EditRecord is one revision of a dashboard.
type EditRecord struct {
	Datetime string `json:"datetime"`
	User     string `json:"user"`
	Message  string `json:"message"`
	Folder   string `json:"folder"`
	Title    string `json:"title"`
	Version  int64  `json:"version"`
	URL      string `json:"url"`
	ID       int64  `json:"id"`
	UID      string `json:"uid"`
}

// Log collects the edit history of the dashboard with uid, or of all
// scanned dashboards when uid is empty. Records are ordered newest first.
func (e *Engine) Log(ctx context.Context, uid string) []EditRecord {
	what := "multiple dashboards"
	if uid != "" {
		what = uid
	}
	e.logger.Info("Aggregating edit history", zap.String("dashboards", what), zap.String("url", e.grafanaURL))

	records := []EditRecord{}
	for _, summary := range e.Data().DashboardList {
		if uid != "" && summary.UID != uid {
			continue
		}
		versions, err := e.versions(ctx, summary)
		if err != nil {
			e.logger.Error("Failed to fetch dashboard versions", zap.String("uid", summary.UID), zap.Error(err))
			continue
		}
		for _, v := range versions {
			records = append(records, EditRecord{
				Datetime: v.Created,
				User:     v.CreatedBy,
				Message:  v.Message,
				Folder:   summary.FolderTitle,
				Title:    summary.Title,
				Version:  v.Version,
				URL:      index.JoinURL(e.grafanaURL, summary.URL),
				ID:       summary.ID,
				UID:      summary.UID,
			})
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Datetime > records[j].Datetime
	})
	return records
}

// versions prefers the id based endpoint and falls back to the uid based
// one, which is the only one left in recent Grafana versions.
func (e *Engine) versions(ctx context.Context, summary types.DashboardSummary) ([]types.DashboardVersion, error) {
	if summary.ID != 0 {
		versions, err := e.api.GetDashboardVersions(ctx, summary.ID)
		if err == nil || !client.IsNotFound(err) || summary.UID == "" {
			return versions, err
		}
	}
	return e.api.GetDashboardVersionsByUID(ctx, summary.UID)
}
