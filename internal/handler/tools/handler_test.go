package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/app"
	"github.com/grafana-toolbox/grafana-wtf/internal/config"
	"github.com/grafana-toolbox/grafana-wtf/internal/contextutil"
	"github.com/grafana-toolbox/grafana-wtf/internal/wtf"
)

const dashboardJSON = `{
  "dashboard": {
    "id": 11, "uid": "ioUrPwQiz", "title": "Weather data", "version": 3, "tags": ["weather"],
    "panels": [
      {"id": 1, "title": "Temperature", "datasource": "ldi_v2",
       "targets": [{"measurement": "ldi_readings", "refId": "A"}]},
      {"id": 2, "title": "Broken", "datasource": {"uid": "weatherbase"}}
    ]
  },
  "meta": {"folderId": 0, "folderTitle": "General", "url": "/d/ioUrPwQiz/weather-data"}
}`

type fakeGrafana struct {
	server  *httptest.Server
	updates atomic.Int32
	tokens  chan string
}

func newFakeGrafana(t *testing.T) *fakeGrafana {
	t.Helper()
	f := &fakeGrafana{tokens: make(chan string, 100)}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case f.tokens <- r.Header.Get("Authorization"):
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/datasources":
			_, _ = io.WriteString(w, `[
				{"id": 1, "uid": "PDF2762CDFF14A314", "name": "ldi_v2", "type": "influxdb", "database": "ldi_readings"},
				{"id": 2, "uid": "P4169E866C3094E38", "name": "unused", "type": "prometheus"}
			]`)
		case "/api/search":
			if r.URL.Query().Get("page") != "1" {
				_, _ = io.WriteString(w, `[]`)
				return
			}
			_, _ = io.WriteString(w, `[{"id": 11, "uid": "ioUrPwQiz", "title": "Weather data", "type": "dash-db", "url": "/d/ioUrPwQiz/weather-data"}]`)
		case "/api/dashboards/uid/ioUrPwQiz":
			_, _ = io.WriteString(w, dashboardJSON)
		case "/api/dashboards/id/11/versions":
			_, _ = io.WriteString(w, `[
				{"id": 2, "version": 2, "created": "2021-03-02T00:00:00Z", "createdBy": "admin", "message": "second"},
				{"id": 1, "version": 1, "created": "2021-03-01T00:00:00Z", "createdBy": "admin", "message": ""}
			]`)
		case "/api/dashboards/db":
			f.updates.Add(1)
			_, _ = io.WriteString(w, `{"status": "success", "uid": "ioUrPwQiz", "version": 4}`)
		case "/api/health":
			_, _ = io.WriteString(w, `{"version": "11.1.0", "database": "ok"}`)
		case "/api/admin/stats":
			_, _ = io.WriteString(w, `{"dashboards": 1, "datasources": 2}`)
		case "/api/folders":
			_, _ = io.WriteString(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGrafana) config() *config.Config {
	return &config.Config{
		URL:            f.server.URL,
		CacheTTL:       "300",
		Concurrency:    2,
		Timeout:        5 * time.Second,
		DeploymentMode: config.ModeLocal,
	}
}

func newTestServer(t *testing.T, f *fakeGrafana, factory EngineFactory) *server.MCPServer {
	t.Helper()
	engine, err := app.NewEngine(zap.NewNop(), f.config(), "default-token")
	require.NoError(t, err)

	h := NewHandler(zap.NewNop(), engine, factory)
	s := server.NewMCPServer("test", "0.0.1", server.WithToolCapabilities(false))
	h.RegisterSearchHandlers(s)
	h.RegisterHistoryHandlers(s)
	h.RegisterExploreHandlers(s)
	return s
}

type toolResult struct {
	IsError bool
	Text    string
}

func callTool(t *testing.T, ctx context.Context, s *server.MCPServer, name string, args map[string]any) toolResult {
	t.Helper()
	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(ctx, request))
	require.NoError(t, err)

	var response struct {
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &response), string(raw))
	require.Nil(t, response.Error, string(raw))
	require.NotEmpty(t, response.Result.Content, string(raw))
	return toolResult{IsError: response.Result.IsError, Text: response.Result.Content[0].Text}
}

func TestSearchTool(t *testing.T) {
	f := newFakeGrafana(t)
	s := newTestServer(t, f, nil)

	res := callTool(t, context.Background(), s, "grafana_search", map[string]any{"expression": "ldi_readings"})
	require.False(t, res.IsError, res.Text)

	var out struct {
		Datasources []wtf.SearchItem `json:"datasources"`
		Dashboards  struct {
			Data []struct {
				Meta struct {
					Matches []struct {
						Path  string `json:"path"`
						Value any    `json:"value"`
					} `json:"matches"`
				} `json:"meta"`
				Data dashboardSummary `json:"data"`
			} `json:"data"`
			Pagination struct {
				Total int `json:"total"`
			} `json:"pagination"`
		} `json:"dashboards"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Text), &out))
	assert.Len(t, out.Datasources, 1)
	require.Len(t, out.Dashboards.Data, 1)
	assert.Equal(t, 1, out.Dashboards.Pagination.Total)
	assert.Equal(t, "ioUrPwQiz", out.Dashboards.Data[0].Data.UID)
	assert.Equal(t, f.server.URL+"/d/ioUrPwQiz/weather-data", out.Dashboards.Data[0].Data.URL)
	require.Len(t, out.Dashboards.Data[0].Meta.Matches, 1)
	assert.Equal(t, "dashboard.panels.[0].targets.[0].measurement", out.Dashboards.Data[0].Meta.Matches[0].Path)
}

func TestReplaceToolDefaultsToDryRun(t *testing.T) {
	f := newFakeGrafana(t)
	s := newTestServer(t, f, nil)

	res := callTool(t, context.Background(), s, "grafana_replace", map[string]any{"expression": "ldi_readings", "replacement": "ldi_v3"})
	require.False(t, res.IsError, res.Text)

	var outcomes []wtf.ReplaceOutcome
	require.NoError(t, json.Unmarshal([]byte(res.Text), &outcomes))
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].DryRun)
	assert.Equal(t, 1, outcomes[0].Occurrences)
	assert.Zero(t, f.updates.Load())

	res = callTool(t, context.Background(), s, "grafana_replace", map[string]any{"expression": "ldi_readings", "replacement": "ldi_v3", "dry_run": "false"})
	require.False(t, res.IsError, res.Text)
	assert.EqualValues(t, 1, f.updates.Load())
}

func TestReplaceToolValidation(t *testing.T) {
	f := newFakeGrafana(t)
	s := newTestServer(t, f, nil)

	res := callTool(t, context.Background(), s, "grafana_replace", map[string]any{"expression": "", "replacement": "x"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, `"expression" must be a non-empty string`)
}

func TestHistoryTool(t *testing.T) {
	f := newFakeGrafana(t)
	s := newTestServer(t, f, nil)

	res := callTool(t, context.Background(), s, "grafana_dashboard_history", map[string]any{"limit": "1"})
	require.False(t, res.IsError, res.Text)

	var out struct {
		Data       []wtf.EditRecord `json:"data"`
		Pagination struct {
			Total   int  `json:"total"`
			HasMore bool `json:"hasMore"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Text), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "second", out.Data[0].Message)
	assert.Equal(t, 2, out.Pagination.Total)
	assert.True(t, out.Pagination.HasMore)
}

func TestExploreTools(t *testing.T) {
	f := newFakeGrafana(t)
	s := newTestServer(t, f, nil)

	res := callTool(t, context.Background(), s, "grafana_explore_datasources", nil)
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, `"unused"`)
	assert.Contains(t, res.Text, "P4169E866C3094E38")

	res = callTool(t, context.Background(), s, "grafana_explore_dashboards", map[string]any{"queries_only": "true"})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, `"datasources_missing"`)
	assert.Contains(t, res.Text, "weatherbase")
	assert.Contains(t, res.Text, "ldi_readings")
}

func TestFindDashboardsAndInfoTools(t *testing.T) {
	f := newFakeGrafana(t)
	s := newTestServer(t, f, nil)

	res := callTool(t, context.Background(), s, "grafana_find_dashboards", map[string]any{"query": "weather"})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "ioUrPwQiz")

	res = callTool(t, context.Background(), s, "grafana_find_dashboards", map[string]any{"query": " "})
	assert.True(t, res.IsError)

	res = callTool(t, context.Background(), s, "grafana_info", nil)
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, `"version":"11.1.0"`)
	assert.Contains(t, res.Text, `"dashboards":1`)
}

func TestEnginePerToken(t *testing.T) {
	f := newFakeGrafana(t)
	var created atomic.Int32
	factory := func(token string) (*wtf.Engine, error) {
		created.Add(1)
		return app.NewEngine(zap.NewNop(), f.config(), token)
	}
	s := newTestServer(t, f, factory)

	ctx := contextutil.SetToken(context.Background(), "glsa_user")
	for range 2 {
		res := callTool(t, ctx, s, "grafana_info", nil)
		require.False(t, res.IsError, res.Text)
	}
	assert.EqualValues(t, 1, created.Load())

	// drain and check the token reached Grafana
	found := false
	for len(f.tokens) > 0 {
		if <-f.tokens == "Bearer glsa_user" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSessionCacheIsBounded(t *testing.T) {
	var created atomic.Int32
	factory := func(token string) (*wtf.Engine, error) {
		created.Add(1)
		return nil, nil
	}
	h := NewHandler(zap.NewNop(), nil, factory)
	h.sessions = newSessionCache(zap.NewNop(), 2)

	for _, token := range []string{"a", "b", "a", "c", "a", "b"} {
		_, err := h.getSession(contextutil.SetToken(context.Background(), token))
		require.NoError(t, err)
	}
	// "b" was evicted by "c" and had to be created again.
	assert.EqualValues(t, 4, created.Load())
	assert.Equal(t, 2, h.sessions.Len())
	assert.True(t, h.sessions.Contains("a"))
	assert.True(t, h.sessions.Contains("b"))
}
