package wtf

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/cache"
	"github.com/grafana-toolbox/grafana-wtf/internal/client"
	"github.com/grafana-toolbox/grafana-wtf/internal/index"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

func TestScan(t *testing.T) {
	f := newFakeGrafana(t)
	e := newTestEngine(t, f)

	e.Scan(context.Background())
	data := e.Data()
	assert.Len(t, data.Datasources, 3)
	require.Len(t, data.Dashboards, 2)
	assert.Equal(t, "dangle", data.Dashboards[0].UID())
	assert.Equal(t, "ioUrPwQiz", data.Dashboards[1].UID())
	assert.NotEmpty(t, e.ScanID())
}

func TestScanSelectedDashboards(t *testing.T) {
	f := newFakeGrafana(t)
	e := newTestEngine(t, f, WithDashboards([]string{"ioUrPwQiz", "unknown"}))

	e.Scan(context.Background())
	data := e.Data()
	require.Len(t, data.Dashboards, 1)
	require.Len(t, data.DashboardList, 1)
	assert.Equal(t, "Testdrive", data.DashboardList[0].FolderTitle)
}

func TestSearch(t *testing.T) {
	f := newFakeGrafana(t)
	e := newTestEngine(t, f)
	e.Scan(context.Background())

	result := e.Search("ldi_readings")
	assert.Empty(t, result.Datasources)
	require.Len(t, result.Dashboards, 1)
	matches := result.Dashboards[0].Meta.Matches
	require.Len(t, matches, 1)
	assert.Equal(t, "dashboard.panels.[1].targets.[0].measurement", matches[0].Path.String())
	assert.Equal(t, "ldi_readings", matches[0].Value)

	result = e.Search("ldi_v2")
	require.Len(t, result.Datasources, 1)
	paths := []string{}
	for _, m := range result.Datasources[0].Meta.Matches {
		paths = append(paths, m.Path.String())
	}
	assert.Equal(t, []string{"database", "name"}, paths)

	result = e.Search("")
	assert.Len(t, result.Datasources, 3)
	assert.Len(t, result.Dashboards, 2)
	assert.Empty(t, result.Dashboards[0].Meta.Matches)

	result = e.Search("no such thing")
	assert.Empty(t, result.Datasources)
	assert.Empty(t, result.Dashboards)
}

func TestReplaceDryRun(t *testing.T) {
	f := newFakeGrafana(t)
	e := newTestEngine(t, f)
	e.Scan(context.Background())

	outcomes, err := e.Replace(context.Background(), "ldi_readings", "ldi_measurements", true)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "ioUrPwQiz", outcomes[0].UID)
	assert.True(t, outcomes[0].DryRun)
	assert.Equal(t, 1, outcomes[0].Occurrences)
	assert.Empty(t, f.updates)
}

func TestReplaceRoundTrip(t *testing.T) {
	f := newFakeGrafana(t)
	e := newTestEngine(t, f)
	e.Scan(context.Background())

	before, err := marshal(e.Data().Dashboards[1].Dashboard)
	require.NoError(t, err)

	outcomes, err := e.Replace(context.Background(), "ldi_readings", "ldi_measurements", false)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, int64(4), outcomes[0].Version)
	assert.Empty(t, outcomes[0].Error)

	require.Len(t, f.updates, 1)
	update := f.updates[0]
	assert.Equal(t, float64(42), update["folderId"])
	assert.Equal(t, "fld", update["folderUid"])
	assert.Equal(t, true, update["overwrite"])
	assert.Equal(t, `grafana-wtf: Replaced "ldi_readings" by "ldi_measurements"`, update["message"])

	assert.Empty(t, e.Search("ldi_readings").Dashboards)
	assert.Len(t, e.Search("ldi_measurements").Dashboards, 1)

	// A rescan sees the updated dashboard as well.
	e.Scan(context.Background())
	_, err = e.Replace(context.Background(), "ldi_measurements", "ldi_readings", false)
	require.NoError(t, err)

	e.Scan(context.Background())
	after, err := marshal(e.Data().Dashboards[1].Dashboard)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{name: "large integers keep their digits", text: `{"id": 9007199254740993, "version": 3}`, want: `{"id":9007199254740993,"version":3}`},
		{name: "floats are untouched", text: `{"min": 0.25}`, want: `{"min":0.25}`},
		{name: "trailing data", text: `{"a": 1}}`, wantErr: true},
		{name: "broken value", text: `{"a": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v map[string]any
			err := unmarshal(tt.text, &v)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			got, err := marshal(v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReplaceEmptyExpression(t *testing.T) {
	f := newFakeGrafana(t)
	e := newTestEngine(t, f)

	_, err := e.Replace(context.Background(), "", "x", true)
	require.ErrorIs(t, err, ErrEmptyExpression)
}

func TestReplaceClearsCache(t *testing.T) {
	f := newFakeGrafana(t)
	responses, err := cache.New(zap.NewNop(), 0, time.Hour)
	require.NoError(t, err)

	api, err := client.NewClient(zap.NewNop(), f.server.URL, "token", client.WithCache(responses), client.WithRetries(0))
	require.NoError(t, err)
	e := New(zap.NewNop(), api, WithCache(responses), WithGrafanaURL(f.server.URL))

	e.Scan(context.Background())
	require.Positive(t, responses.Len())

	_, err = e.Replace(context.Background(), "Weather data", "Weather", false)
	require.NoError(t, err)
	assert.Equal(t, 0, responses.Len())
}

func TestLog(t *testing.T) {
	f := newFakeGrafana(t)
	e := newTestEngine(t, f)
	e.Scan(context.Background())

	records := e.Log(context.Background(), "")
	require.Len(t, records, 3)
	assert.Equal(t, "third", records[0].Message)
	assert.Equal(t, "initial", records[1].Message)
	assert.Equal(t, "editor", records[1].User)
	assert.Equal(t, "General", records[1].Folder)
	assert.Equal(t, f.server.URL+"/d/dangle/dangling", records[1].URL)

	records = e.Log(context.Background(), "ioUrPwQiz")
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "ioUrPwQiz", r.UID)
		assert.Equal(t, "Testdrive", r.Folder)
		assert.Equal(t, "Weather data", r.Title)
	}
}

func TestExplore(t *testing.T) {
	f := newFakeGrafana(t)
	e := newTestEngine(t, f)
	e.Scan(context.Background())

	datasources := e.ExploreDatasources()
	require.Len(t, datasources.Used, 1)
	assert.Equal(t, "ldi_v2", datasources.Used[0].Datasource.Name)
	require.Len(t, datasources.Unused, 2)
	assert.Equal(t, "bar", datasources.Unused[0].Datasource.Name)
	assert.Equal(t, "foo", datasources.Unused[1].Datasource.Name)

	dashboards := e.ExploreDashboards(index.ExploreOptions{})
	require.Len(t, dashboards, 2)
	uid := "weatherbase"
	assert.Equal(t, []types.DatasourceRef{{UID: &uid}}, dashboards[0].DatasourcesMissing)
	require.Len(t, dashboards[1].Datasources, 1)
	assert.Equal(t, "PDF2762CDFF14A314", dashboards[1].Datasources[0].UID)
	assert.Empty(t, dashboards[1].DatasourcesMissing)
}

func TestInfo(t *testing.T) {
	f := newFakeGrafana(t)
	e := newTestEngine(t, f)
	e.Scan(context.Background())

	info, err := e.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9.5.2", info.Grafana.Version)
	assert.Equal(t, 2, info.Summary.Dashboards)
	assert.Equal(t, 3, info.Summary.DashboardPanels)
	assert.Equal(t, 1, info.Summary.DashboardAnnotations)
	assert.Equal(t, 3, info.Summary.Datasources)
	assert.Equal(t, 1, info.Summary.Folders)
	assert.Equal(t, json.Number("2"), info.Statistics["dashboards"])
}

func TestPluginsStatus(t *testing.T) {
	f := newFakeGrafana(t)
	e := newTestEngine(t, f)

	statuses, err := e.PluginsStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "clock", statuses[0].ID)
	assert.NotEmpty(t, statuses[0].Error)
	assert.Nil(t, statuses[0].Health)
	assert.Equal(t, "influxdb", statuses[1].ID)
	require.NotNil(t, statuses[1].Health)
	assert.Equal(t, "OK", statuses[1].Health.Status)
}

func TestChannels(t *testing.T) {
	f := newFakeGrafana(t)
	e := newTestEngine(t, f)
	e.Scan(context.Background())

	reports, err := e.Channels(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.Len(t, reports[0].Dashboards, 1)
	assert.Equal(t, "ioUrPwQiz", reports[0].Dashboards[0].UID)
	assert.Empty(t, reports[1].Dashboards)

	reports, err = e.Channels(context.Background(), "alerting-uid")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Alerting", reports[0].Channel.Name)
}

func TestCatalog(t *testing.T) {
	f := newFakeGrafana(t)
	e := newTestEngine(t, f)
	e.Scan(context.Background())

	hits, err := e.Catalog("weather", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "ioUrPwQiz", hits[0].UID)
}
