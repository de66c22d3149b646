package mcp_server

import (
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/config"
	"github.com/grafana-toolbox/grafana-wtf/internal/contextutil"
	"github.com/grafana-toolbox/grafana-wtf/internal/handler/tools"
	"github.com/grafana-toolbox/grafana-wtf/internal/version"
)

type MCPServer struct {
	logger  *zap.Logger
	handler *tools.Handler
	config  *config.Config
}

func NewMCPServer(log *zap.Logger, handler *tools.Handler, cfg *config.Config) *MCPServer {
	return &MCPServer{logger: log, handler: handler, config: cfg}
}

// Build creates the MCP server with all tools registered.
func (m *MCPServer) Build() *server.MCPServer {
	s := server.NewMCPServer("GrafanaWTF", version.Version, server.WithLogging(), server.WithToolCapabilities(false))

	m.handler.RegisterSearchHandlers(s)
	m.handler.RegisterHistoryHandlers(s)
	m.handler.RegisterExploreHandlers(s)

	m.logger.Info("All handlers registered successfully")
	return s
}

func (m *MCPServer) Start() error {
	m.logger.Info("Starting grafana-wtf MCP Server",
		zap.String("server_name", "GrafanaWTFMCPServer"),
		zap.String("grafana_url", m.config.URL),
		zap.String("deployment_mode", m.config.DeploymentMode))

	s := m.Build()
	if m.config.DeploymentMode == config.ModeCloud {
		return m.startCloud(s)
	}
	return m.startLocal(s)
}

func (m *MCPServer) startLocal(s *server.MCPServer) error {
	m.logger.Info("MCP Server running in LOCAL mode (stdio)")
	return server.ServeStdio(s)
}

func (m *MCPServer) startCloud(s *server.MCPServer) error {
	m.logger.Info("MCP Server running in cloud hosted mode")

	addr := fmt.Sprintf(":%s", m.config.Port)

	mux := http.NewServeMux()
	mux.Handle("/mcp", m.HTTPHandler(s))

	m.logger.Info("Listening for MCP clients",
		zap.String("addr", addr),
		zap.String("mcp_endpoint", "/mcp"))

	return http.ListenAndServe(addr, mux)
}

// HTTPHandler serves s over streamable HTTP. A bearer token in the
// Authorization header selects the Grafana credentials of the request.
func (m *MCPServer) HTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s, server.WithHTTPContextFunc(contextutil.FromRequest))
}
