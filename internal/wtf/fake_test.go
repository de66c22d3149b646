package wtf

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/client"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

const weatherDashboard = `{
  "dashboard": {
    "id": 11,
    "uid": "ioUrPwQiz",
    "title": "Weather data",
    "version": 3,
    "tags": ["weather"],
    "panels": [
      {"id": 1, "title": "Temperature", "type": "graph", "datasource": "ldi_v2"},
      {"id": 2, "title": "Readings", "type": "graph",
       "datasource": {"type": "influxdb", "uid": "PDF2762CDFF14A314"},
       "targets": [{"measurement": "ldi_readings", "refId": "A"}]}
    ],
    "annotations": {"list": [{"name": "Annotations & Alerts", "datasource": "-- Grafana --", "notifier": "alerting-uid"}]}
  },
  "meta": {"folderId": 42, "folderUid": "fld", "folderTitle": "Testdrive", "url": "/d/ioUrPwQiz/weather-data"}
}`

const dangleDashboard = `{
  "dashboard": {
    "id": 12,
    "uid": "dangle",
    "title": "Dangling",
    "version": 1,
    "panels": [{"id": 1, "title": "Missing", "datasource": {"uid": "weatherbase"}}]
  },
  "meta": {"folderId": 0, "folderTitle": "General", "url": "/d/dangle/dangling"}
}`

type fakeGrafana struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.Mutex
	datasources []types.DataSource
	dashboards  map[string]*types.Dashboard
	updates     []map[string]any
	requests    atomic.Int32
}

func newFakeGrafana(t *testing.T) *fakeGrafana {
	t.Helper()
	f := &fakeGrafana{
		t: t,
		datasources: []types.DataSource{
			{"id": float64(1), "uid": "PDF2762CDFF14A314", "name": "ldi_v2", "type": "influxdb", "url": "http://localhost:8086", "database": "ldi_v2"},
			{"id": float64(2), "uid": "foo-uid", "name": "foo", "type": "testdata"},
			{"id": float64(3), "uid": "bar-uid", "name": "bar", "type": "testdata"},
		},
		dashboards: map[string]*types.Dashboard{},
	}
	for _, text := range []string{weatherDashboard, dangleDashboard} {
		var d types.Dashboard
		require.NoError(t, json.Unmarshal([]byte(text), &d))
		f.dashboards[d.UID()] = &d
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGrafana) write(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(v))
}

func (f *fakeGrafana) handle(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/api/health":
		f.write(w, types.Health{Version: "9.5.2", Database: "ok"})
	case path == "/api/admin/stats":
		f.write(w, map[string]any{"dashboards": 2, "datasources": 3})
	case path == "/api/folders":
		f.write(w, []types.Folder{{ID: 42, UID: "fld", Title: "Testdrive"}})
	case path == "/api/datasources":
		f.write(w, f.datasources)
	case path == "/api/search":
		var out []types.DashboardSummary
		if r.URL.Query().Get("page") == "1" {
			for _, uid := range []string{"dangle", "ioUrPwQiz"} {
				s := f.dashboards[uid].Summary()
				out = append(out, s)
			}
		}
		f.write(w, out)
	case strings.HasPrefix(path, "/api/dashboards/uid/"):
		uid := strings.TrimPrefix(path, "/api/dashboards/uid/")
		if strings.HasSuffix(uid, "/versions") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		d, ok := f.dashboards[uid]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "Dashboard not found"}`))
			return
		}
		f.write(w, d)
	case path == "/api/dashboards/id/11/versions":
		f.write(w, map[string]any{"versions": []types.DashboardVersion{
			{ID: 3, DashboardID: 11, Version: 3, Created: "2021-12-13T10:00:00Z", CreatedBy: "admin", Message: "third"},
			{ID: 1, DashboardID: 11, Version: 1, Created: "2021-12-11T10:00:00Z", CreatedBy: "admin"},
		}})
	case path == "/api/dashboards/id/12/versions":
		f.write(w, []types.DashboardVersion{
			{ID: 5, DashboardID: 12, Version: 1, Created: "2021-12-12T10:00:00Z", CreatedBy: "editor", Message: "initial"},
		})
	case path == "/api/dashboards/db" && r.Method == http.MethodPost:
		var payload map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&payload))
		f.updates = append(f.updates, payload)
		dash := payload["dashboard"].(map[string]any)
		uid := dash["uid"].(string)
		f.dashboards[uid] = &types.Dashboard{Dashboard: dash, Meta: f.dashboards[uid].Meta}
		f.write(w, types.UpdateDashboardResponse{UID: uid, Status: "success", Version: 4})
	case path == "/api/plugins":
		f.write(w, []types.Plugin{{ID: "influxdb", Name: "InfluxDB", Type: "datasource"}, {ID: "clock", Name: "Clock", Type: "panel"}})
	case path == "/api/plugins/influxdb/health":
		f.write(w, types.PluginHealth{Status: "OK", Message: "healthy"})
	case path == "/api/alert-notifications":
		f.write(w, []types.NotificationChannel{{ID: 1, UID: "alerting-uid", Name: "Alerting", Type: "email"}, {ID: 2, UID: "other", Name: "Other", Type: "slack"}})
	case path == "/api/alert-notifications/uid/alerting-uid":
		f.write(w, types.NotificationChannel{ID: 1, UID: "alerting-uid", Name: "Alerting", Type: "email"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestEngine(t *testing.T, f *fakeGrafana, opts ...Option) *Engine {
	t.Helper()
	api, err := client.NewClient(zap.NewNop(), f.server.URL, "token", client.WithRetries(0))
	require.NoError(t, err)
	opts = append([]Option{WithGrafanaURL(f.server.URL), WithConcurrency(2)}, opts...)
	return New(zap.NewNop(), api, opts...)
}
