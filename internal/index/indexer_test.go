package index

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

func dashboardFrom(t *testing.T, text string) *types.Dashboard {
	t.Helper()
	var d types.Dashboard
	require.NoError(t, json.Unmarshal([]byte(text), &d))
	return &d
}

var (
	ldiV2 = types.DataSource{"id": float64(1), "uid": "PDF2762CDFF14A314", "name": "ldi_v2", "type": "influxdb", "url": "http://localhost:8086"}
	prom  = types.DataSource{"id": float64(2), "uid": "prom-uid", "name": "Prometheus", "type": "prometheus", "url": "http://localhost:9090"}
	prom2 = types.DataSource{"id": float64(3), "uid": "prom-2", "name": "Prometheus 2", "type": "prometheus", "url": "http://localhost:9091"}
	foo   = types.DataSource{"id": float64(4), "uid": "foo-uid", "name": "foo", "type": "testdata"}
	bar   = types.DataSource{"id": float64(5), "uid": "bar-uid", "name": "bar", "type": "testdata"}
)

const legacyDashboard = `{
  "dashboard": {"uid": "legacy", "title": "Legacy", "panels": [
    {"id": 1, "datasource": "ldi_v2", "targets": [{"measurement": "ldi_readings"}]}
  ]},
  "meta": {"url": "/d/legacy/legacy"}
}`

const missingDashboard = `{
  "dashboard": {"uid": "missing", "title": "Missing", "panels": [
    {"id": 1, "datasource": {"uid": "weatherbase"}},
    {"id": 2, "datasource": {"type": "datasource", "uid": "grafana"}},
    {"id": 3, "datasource": "-- Mixed --"}
  ],
  "annotations": {"list": [{"name": "Annotations & Alerts", "datasource": "-- Grafana --"}]}},
  "meta": {"url": "/d/missing/missing"}
}`

const templatedDashboard = `{
  "dashboard": {"uid": "templated", "title": "Templated",
    "panels": [
      {"id": 1, "datasource": "$datasource", "targets": [{"expr": "up", "datasource": {"uid": "${datasource}"}}]},
      {"id": 2, "datasource": {"uid": "PDF2762CDFF14A314", "type": "influxdb"}}
    ],
    "templating": {"list": [
      {"name": "datasource", "type": "datasource", "query": "prometheus", "current": {"text": "All", "value": ["$__all"]}},
      {"name": "single", "type": "datasource", "query": "influxdb", "current": {"value": "ldi_v2"}},
      {"name": "dangling", "type": "datasource", "query": "influxdb", "current": {"value": "nope"}},
      {"name": "host", "type": "query", "datasource": {"uid": "prom-uid"}, "query": "label_values(host)"}
    ]}
  },
  "meta": {"url": "/d/templated/templated"}
}`

func TestExploreDashboardsLegacyNameReference(t *testing.T) {
	ix := New(zap.NewNop(), []*types.Dashboard{dashboardFrom(t, legacyDashboard)}, []types.DataSource{ldiV2}, WithGrafanaURL("http://localhost:3000"))

	result := ix.ExploreDashboards(ExploreOptions{})
	require.Len(t, result, 1)
	assert.Equal(t, []DatasourceInfo{{UID: "PDF2762CDFF14A314", Name: "ldi_v2", Type: "influxdb", URL: "http://localhost:8086"}}, result[0].Datasources)
	assert.Empty(t, result[0].DatasourcesMissing)
	assert.Equal(t, "http://localhost:3000/d/legacy/legacy", result[0].Dashboard.URL)
	assert.Equal(t, "/d/legacy/legacy", result[0].Dashboard.Path)

	// Legacy name and uid converge on the same bucket.
	assert.Equal(t, []string{"legacy"}, ix.DatasourceDashboardIndex["PDF2762CDFF14A314"])
}

func TestExploreDashboardsMissingReference(t *testing.T) {
	ix := New(zap.NewNop(), []*types.Dashboard{dashboardFrom(t, missingDashboard)}, []types.DataSource{ldiV2})

	result := ix.ExploreDashboards(ExploreOptions{})
	require.Len(t, result, 1)
	assert.Empty(t, result[0].Datasources)

	out, err := json.Marshal(result[0].DatasourcesMissing)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name": null, "uid": "weatherbase", "type": null}]`, string(out))
}

func TestTemplateVariables(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	datasources := []types.DataSource{ldiV2, prom, prom2}
	ix := New(zap.New(core), []*types.Dashboard{dashboardFrom(t, templatedDashboard)}, datasources)

	items := ix.DashboardDatasourceIndex["templated"]
	assert.Equal(t, []types.DatasourceItem{
		{UID: "PDF2762CDFF14A314", Type: "influxdb"},
		{UID: "prom-uid", Name: "Prometheus", Type: "prometheus", URL: "http://localhost:9090"},
		{UID: "prom-2", Name: "Prometheus 2", Type: "prometheus", URL: "http://localhost:9091"},
		{UID: "PDF2762CDFF14A314", Name: "ldi_v2", Type: "influxdb", URL: "http://localhost:8086"},
		{UID: "prom-uid"},
	}, items)
	assert.Equal(t, 1, logs.FilterMessage("Unable to resolve datasource of template variable").Len())

	result := ix.ExploreDashboards(ExploreOptions{})
	require.Len(t, result, 1)
	var uids []string
	for _, ds := range result[0].Datasources {
		uids = append(uids, ds.UID)
	}
	assert.Equal(t, []string{"PDF2762CDFF14A314", "prom-uid", "prom-2"}, uids)
	assert.Empty(t, result[0].DatasourcesMissing)
}

func TestExploreDatasourcesUnused(t *testing.T) {
	ix := New(zap.NewNop(), nil, []types.DataSource{foo, bar})

	result := ix.ExploreDatasources()
	assert.Empty(t, result.Used)
	require.Len(t, result.Unused, 2)
	assert.Equal(t, "bar", result.Unused[0].Datasource.Name)
	assert.Equal(t, "foo", result.Unused[1].Datasource.Name)
}

func TestExploreDatasourcesIsIdempotent(t *testing.T) {
	dashboards := []*types.Dashboard{
		dashboardFrom(t, templatedDashboard),
		dashboardFrom(t, legacyDashboard),
		dashboardFrom(t, missingDashboard),
	}
	datasources := []types.DataSource{foo, prom, ldiV2, bar, prom2}

	first := New(zap.NewNop(), dashboards, datasources).ExploreDatasources()
	second := New(zap.NewNop(), dashboards, datasources).ExploreDatasources()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("explorations differ (-first +second):\n%s", diff)
	}

	var used []string
	for _, b := range first.Used {
		used = append(used, b.Datasource.Name)
	}
	assert.Equal(t, []string{"Prometheus", "Prometheus 2", "ldi_v2"}, used)
	require.Len(t, first.Used[2].Dashboards, 2)
	assert.Equal(t, "legacy", first.Used[2].Dashboards[0].UID)
	assert.Equal(t, "templated", first.Used[2].Dashboards[1].UID)
}

func TestIndexInvariants(t *testing.T) {
	dashboards := []*types.Dashboard{
		dashboardFrom(t, templatedDashboard),
		dashboardFrom(t, legacyDashboard),
		dashboardFrom(t, missingDashboard),
		{Dashboard: map[string]any{"title": "no uid"}},
	}
	ix := New(zap.NewNop(), dashboards, []types.DataSource{ldiV2, prom})

	for ident, uids := range ix.DatasourceDashboardIndex {
		for _, uid := range uids {
			assert.Contains(t, ix.DashboardByUID, uid, ident)
		}
	}
	for uid := range ix.DashboardDatasourceIndex {
		assert.Contains(t, ix.DashboardByUID, uid)
	}
	assert.Len(t, ix.DashboardByUID, 3)
	assert.Equal(t, "legacy", ix.Dashboards()[0].UID())
}

func TestResolvePolicy(t *testing.T) {
	// A legacy data source whose name equals the uid of another one.
	legacy := types.DataSource{"name": "prom-uid", "type": "prometheus"}
	ix := New(zap.NewNop(), nil, []types.DataSource{prom, legacy, ldiV2})

	tests := []struct {
		name  string
		item  types.DatasourceItem
		ident string
		ok    bool
	}{
		{name: "uid matches uid first", item: types.DatasourceItem{UID: "prom-uid"}, ident: "prom-uid", ok: true},
		{name: "name matches name first", item: types.DatasourceItem{Name: "prom-uid"}, ident: "prom-uid", ok: true},
		{name: "uid field holding a name", item: types.DatasourceItem{UID: "ldi_v2"}, ident: "PDF2762CDFF14A314", ok: true},
		{name: "name field holding a uid", item: types.DatasourceItem{Name: "PDF2762CDFF14A314"}, ident: "PDF2762CDFF14A314", ok: true},
		{name: "unknown", item: types.DatasourceItem{UID: "weatherbase"}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, ok := ix.Resolve(tt.item)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.ident, ds.Ident())
			}
		})
	}

	ds, _ := ix.Resolve(types.DatasourceItem{Name: "prom-uid"})
	assert.Empty(t, ds.UID(), "name lookup must prefer the legacy record")
}

func TestDuplicateIdent(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	// Identified by its name, which equals the uid of prom.
	legacy := types.DataSource{"name": "prom-uid", "type": "prometheus"}
	ix := New(zap.New(core), nil, []types.DataSource{prom, legacy})

	assert.Equal(t, "Prometheus", ix.DatasourceByIdent["prom-uid"].Name())
	entries := logs.FilterMessage("Duplicate datasource identifier, keeping the first one").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "prom-uid", entries[0].ContextMap()["ident"])
	assert.Equal(t, "prom-uid", entries[0].ContextMap()["dropped"])
}

func TestExploreDashboardsDetails(t *testing.T) {
	dashboards := []*types.Dashboard{
		dashboardFrom(t, legacyDashboard),
		dashboardFrom(t, `{"dashboard": {"uid": "empty", "title": "Empty"}, "meta": {}}`),
	}
	ix := New(zap.NewNop(), dashboards, []types.DataSource{ldiV2})

	all := ix.ExploreDashboards(ExploreOptions{})
	assert.Len(t, all, 2)

	detailed := ix.ExploreDashboards(ExploreOptions{Details: true})
	require.Len(t, detailed, 1)
	require.NotNil(t, detailed[0].Details)
	require.Len(t, detailed[0].Details.Queries, 1)
	query := detailed[0].Details.Queries[0]
	assert.Equal(t, "ldi_readings", query["measurement"])
	assert.Equal(t, "ldi_v2", query["datasource"])
	assert.Equal(t, float64(1), query["_panel"].(map[string]any)["id"])

	queriesOnly := ix.ExploreDashboards(ExploreOptions{Details: true, QueriesOnly: true})
	require.Len(t, queriesOnly, 1)
	assert.Equal(t, []map[string]any{{"measurement": "ldi_readings", "_panel": query["_panel"]}}, queriesOnly[0].Details.Queries)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000/d/x/y", JoinURL("http://localhost:3000", "/d/x/y"))
	assert.Equal(t, "http://localhost:3000/d/x/y", JoinURL("http://localhost:3000/grafana/", "/d/x/y"))
	assert.Equal(t, "/d/x/y", JoinURL("", "/d/x/y"))
}
