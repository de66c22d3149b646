package tools

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/contextutil"
	"github.com/grafana-toolbox/grafana-wtf/internal/index"
	"github.com/grafana-toolbox/grafana-wtf/internal/wtf"
	"github.com/grafana-toolbox/grafana-wtf/pkg/paginate"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

const (
	dashboardsDesc = "Comma separated dashboard UIDs to restrict the operation to (optional, defaults to all dashboards). Example: 'ioUrPwQiz,_JJ22OZZk'."
	limitDesc      = "Maximum number of results to return per page. Default: 50. Must be greater than 0."
	offsetDesc     = "Number of results to skip before returning results. Use for pagination: offset=0 for first page, offset=50 for second page (if limit=50). Default: 0."
)

// EngineFactory creates an engine authenticated with token.
type EngineFactory func(token string) (*wtf.Engine, error)

// session serializes tool calls on one engine, since every call rescans.
type session struct {
	mu     sync.Mutex
	engine *wtf.Engine
}

// maxSessions bounds the number of per-token engines kept alive.
const maxSessions = 128

type Handler struct {
	session    *session
	logger     *zap.Logger
	newEngine  EngineFactory
	sessions   *lru.Cache[string, *session]
	cacheMutex sync.Mutex
}

func NewHandler(log *zap.Logger, engine *wtf.Engine, newEngine EngineFactory) *Handler {
	return &Handler{
		session:   &session{engine: engine},
		logger:    log,
		newEngine: newEngine,
		sessions:  newSessionCache(log, maxSessions),
	}
}

func newSessionCache(log *zap.Logger, size int) *lru.Cache[string, *session] {
	c, err := lru.NewWithEvict(size, func(string, *session) {
		log.Debug("Evicted least recently used engine")
	})
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return c
}

// getSession returns the session for the token found in the context,
// creating and caching its engine on first use. Without a token, the
// default engine is used.
func (h *Handler) getSession(ctx context.Context) (*session, error) {
	token, ok := contextutil.GetToken(ctx)
	if !ok || token == "" || h.newEngine == nil {
		return h.session, nil
	}

	if cached, exists := h.sessions.Get(token); exists {
		return cached, nil
	}

	h.cacheMutex.Lock()
	defer h.cacheMutex.Unlock()

	// just to check if other goroutine created the engine
	if cached, exists := h.sessions.Get(token); exists {
		return cached, nil
	}

	h.logger.Debug("Creating engine with token from context")
	engine, err := h.newEngine(token)
	if err != nil {
		return nil, err
	}
	s := &session{engine: engine}
	h.sessions.Add(token, s)
	return s, nil
}

// run locks the session of the request and hands its engine to fn.
func (h *Handler) run(ctx context.Context, fn func(e *wtf.Engine) (*mcp.CallToolResult, error)) (*mcp.CallToolResult, error) {
	s, err := h.getSession(ctx)
	if err != nil {
		h.logger.Error("Failed to create engine", zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.engine == nil {
		return mcp.NewToolResultError("no Grafana token given, use the Authorization header"), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}

func (h *Handler) RegisterSearchHandlers(s *server.MCPServer) {
	h.logger.Debug("Registering search handlers")

	searchTool := mcp.NewTool("grafana_search",
		mcp.WithDescription("Search all data sources and dashboards of the Grafana instance for a substring. Every match is reported with the path of the attribute it was found in, e.g. 'dashboard.panels.[1].targets.[0].measurement'. An empty expression lists everything. IMPORTANT: Dashboards are paginated using 'limit' and 'offset'; data sources are always returned in full."),
		mcp.WithString("expression", mcp.Description("Text to look for, matched literally and case sensitively (optional). Example: 'ldi_readings', 'grafana-worldmap-panel'.")),
		mcp.WithString("dashboards", mcp.Description(dashboardsDesc)),
		mcp.WithString("verbose", mcp.Description("'true' returns the complete dashboard JSON for every hit, 'false' a compact summary. Default: 'false'.")),
		mcp.WithString("limit", mcp.Description(limitDesc)),
		mcp.WithString("offset", mcp.Description(offsetDesc)),
	)

	s.AddTool(searchTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := arguments(req)
		expression, _ := args["expression"].(string)
		uids := listArg(args, "dashboards")
		verbose := boolArg(args, "verbose", false)
		limit, offset := paginate.ParseParams(req.Params.Arguments)

		h.logger.Debug("Tool called: grafana_search", zap.String("expression", expression), zap.Strings("dashboards", uids))
		return h.run(ctx, func(e *wtf.Engine) (*mcp.CallToolResult, error) {
			e.ScanDatasources(ctx)
			e.ScanDashboards(ctx, uids)
			result := e.Search(expression)

			dashboards := make([]wtf.SearchItem, 0, len(result.Dashboards))
			for _, item := range result.Dashboards {
				if !verbose {
					if d, ok := item.Data.(*types.Dashboard); ok {
						item.Data = compactDashboard(e, d)
					}
				}
				dashboards = append(dashboards, item)
			}

			return h.jsonResult(searchResponse{
				Datasources: result.Datasources,
				Dashboards:  paginate.Of(dashboards, offset, limit),
			})
		})
	})

	replaceTool := mcp.NewTool("grafana_replace",
		mcp.WithDescription("Replace a substring in dashboards and save the modified dashboards back to Grafana. IMPORTANT: Runs as a dry run by default, reporting which dashboards would change and how often the expression occurs. Set dry_run to 'false' only after reviewing the dry run. Every saved dashboard gets a new version with the message 'grafana-wtf: Replaced \"<expression>\" by \"<replacement>\"'."),
		mcp.WithString("expression", mcp.Required(), mcp.Description("Text to replace, matched literally. Must not be empty.")),
		mcp.WithString("replacement", mcp.Required(), mcp.Description("Replacement text, may be empty.")),
		mcp.WithString("dashboards", mcp.Description(dashboardsDesc)),
		mcp.WithString("dry_run", mcp.Description("'false' saves the changes. Default: 'true'.")),
	)

	s.AddTool(replaceTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := arguments(req)
		expression, ok := args["expression"].(string)
		if !ok || expression == "" {
			h.logger.Warn("Missing or invalid expression", zap.Any("expression", args["expression"]))
			return mcp.NewToolResultError(`Parameter validation failed: "expression" must be a non-empty string. Example: {"expression": "grafana-worldmap-panel", "replacement": "grafana-map-panel"}`), nil
		}
		replacement, ok := args["replacement"].(string)
		if !ok {
			h.logger.Warn("Missing or invalid replacement", zap.Any("replacement", args["replacement"]))
			return mcp.NewToolResultError(`Parameter validation failed: "replacement" must be a string. Example: {"expression": "grafana-worldmap-panel", "replacement": "grafana-map-panel"}`), nil
		}
		uids := listArg(args, "dashboards")
		dryRun := boolArg(args, "dry_run", true)

		h.logger.Debug("Tool called: grafana_replace",
			zap.String("expression", expression),
			zap.String("replacement", replacement),
			zap.Bool("dry_run", dryRun))
		return h.run(ctx, func(e *wtf.Engine) (*mcp.CallToolResult, error) {
			e.ClearCache()
			e.ScanDashboards(ctx, uids)
			outcomes, err := e.Replace(ctx, expression, replacement, dryRun)
			e.ClearCache()
			if err != nil {
				h.logger.Error("Failed to replace", zap.String("expression", expression), zap.Error(err))
				return mcp.NewToolResultError(err.Error()), nil
			}
			return h.jsonResult(outcomes)
		})
	})
}

func (h *Handler) RegisterHistoryHandlers(s *server.MCPServer) {
	h.logger.Debug("Registering history handlers")

	historyTool := mcp.NewTool("grafana_dashboard_history",
		mcp.WithDescription("List the edit history of one dashboard, or of all dashboards, newest first. Every record carries date, user, commit message, folder, title, version and URL. IMPORTANT: This tool supports pagination using 'limit' and 'offset'."),
		mcp.WithString("uid", mcp.Description("Dashboard UID (optional, defaults to all dashboards).")),
		mcp.WithString("limit", mcp.Description(limitDesc)),
		mcp.WithString("offset", mcp.Description(offsetDesc)),
	)

	s.AddTool(historyTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		uid := stringArg(arguments(req), "uid")
		limit, offset := paginate.ParseParams(req.Params.Arguments)

		h.logger.Debug("Tool called: grafana_dashboard_history", zap.String("uid", uid))
		return h.run(ctx, func(e *wtf.Engine) (*mcp.CallToolResult, error) {
			var uids []string
			if uid != "" {
				uids = []string{uid}
			}
			e.ScanDashboards(ctx, uids)
			return pagedResult(h, e.Log(ctx, uid), offset, limit)
		})
	})
}

func (h *Handler) RegisterExploreHandlers(s *server.MCPServer) {
	h.logger.Debug("Registering explore handlers")

	datasourcesTool := mcp.NewTool("grafana_explore_datasources",
		mcp.WithDescription("Partition the data sources of the Grafana instance into used and unused ones. Every used data source lists the dashboards referencing it, directly, through a template variable or through an annotation."),
	)

	s.AddTool(datasourcesTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		h.logger.Debug("Tool called: grafana_explore_datasources")
		return h.run(ctx, func(e *wtf.Engine) (*mcp.CallToolResult, error) {
			e.ScanDatasources(ctx)
			e.ScanDashboards(ctx, nil)
			return h.jsonResult(e.ExploreDatasources())
		})
	})

	dashboardsTool := mcp.NewTool("grafana_explore_dashboards",
		mcp.WithDescription("List dashboards with the data sources they use and the data source references which do not resolve to any existing data source ('datasources_missing'). Use it to find broken dashboards. IMPORTANT: This tool supports pagination using 'limit' and 'offset'."),
		mcp.WithString("dashboards", mcp.Description(dashboardsDesc)),
		mcp.WithString("details", mcp.Description("'true' adds the queries, annotations and template variables referencing data sources. Default: 'false'.")),
		mcp.WithString("queries_only", mcp.Description("'true' reduces the details to the query expressions. Implies details. Default: 'false'.")),
		mcp.WithString("limit", mcp.Description(limitDesc)),
		mcp.WithString("offset", mcp.Description(offsetDesc)),
	)

	s.AddTool(dashboardsTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := arguments(req)
		uids := listArg(args, "dashboards")
		queriesOnly := boolArg(args, "queries_only", false)
		opts := index.ExploreOptions{Details: queriesOnly || boolArg(args, "details", false), QueriesOnly: queriesOnly}
		limit, offset := paginate.ParseParams(req.Params.Arguments)

		h.logger.Debug("Tool called: grafana_explore_dashboards", zap.Strings("dashboards", uids), zap.Bool("details", opts.Details))
		return h.run(ctx, func(e *wtf.Engine) (*mcp.CallToolResult, error) {
			e.ScanDatasources(ctx)
			e.ScanDashboards(ctx, uids)
			return pagedResult(h, e.ExploreDashboards(opts), offset, limit)
		})
	})

	findTool := mcp.NewTool("grafana_find_dashboards",
		mcp.WithDescription("Rank dashboards by keywords found in their title, tags, folder, panel titles and description. Use it to locate a dashboard when its UID is unknown."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Keywords, e.g. 'weather temperature'.")),
		mcp.WithString("limit", mcp.Description("Maximum number of hits. Default: 10.")),
	)

	s.AddTool(findTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := arguments(req)
		query, ok := args["query"].(string)
		if !ok || strings.TrimSpace(query) == "" {
			h.logger.Warn("Empty query parameter")
			return mcp.NewToolResultError(`Parameter validation failed: "query" must be a non-empty string. Example: {"query": "weather"}`), nil
		}
		limit := 10
		if l, err := strconv.Atoi(stringArg(args, "limit")); err == nil && l > 0 {
			limit = l
		}

		h.logger.Debug("Tool called: grafana_find_dashboards", zap.String("query", query), zap.Int("limit", limit))
		return h.run(ctx, func(e *wtf.Engine) (*mcp.CallToolResult, error) {
			e.ScanDashboards(ctx, nil)
			hits, err := e.Catalog(query, limit)
			if err != nil {
				h.logger.Error("Failed to rank dashboards", zap.String("query", query), zap.Error(err))
				return mcp.NewToolResultError(err.Error()), nil
			}
			return h.jsonResult(hits)
		})
	})

	infoTool := mcp.NewTool("grafana_info",
		mcp.WithDescription("Report version and statistics of the Grafana instance: number of dashboards, panels, annotations, template variables, data sources and folders."),
	)

	s.AddTool(infoTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		h.logger.Debug("Tool called: grafana_info")
		return h.run(ctx, func(e *wtf.Engine) (*mcp.CallToolResult, error) {
			e.ScanDatasources(ctx)
			e.ScanDashboards(ctx, nil)
			info, err := e.Info(ctx)
			if err != nil {
				h.logger.Error("Failed to get Grafana info", zap.Error(err))
				return mcp.NewToolResultError(err.Error()), nil
			}
			return h.jsonResult(info)
		})
	})
}

type searchResponse struct {
	Datasources []wtf.SearchItem  `json:"datasources"`
	Dashboards  paginate.Response `json:"dashboards"`
}

type dashboardSummary struct {
	UID    string `json:"uid"`
	Title  string `json:"title"`
	Folder string `json:"folder"`
	URL    string `json:"url"`
}

func compactDashboard(e *wtf.Engine, d *types.Dashboard) dashboardSummary {
	return dashboardSummary{
		UID:    d.UID(),
		Title:  d.Title(),
		Folder: d.FolderTitle(),
		URL:    index.JoinURL(e.GrafanaURL(), d.URL()),
	}
}

func (h *Handler) jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal response", zap.Error(err))
		return mcp.NewToolResultError("failed to marshal response: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func pagedResult[T any](h *Handler, items []T, offset, limit int) (*mcp.CallToolResult, error) {
	resultJSON, err := paginate.Wrap(items, offset, limit)
	if err != nil {
		h.logger.Error("Failed to wrap response with pagination", zap.Error(err))
		return mcp.NewToolResultError("failed to marshal response: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return args
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

// boolArg accepts JSON booleans as well as 'true'/'false' strings.
func boolArg(args map[string]any, key string, def bool) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func listArg(args map[string]any, key string) []string {
	var out []string
	for _, item := range strings.Split(stringArg(args, key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
