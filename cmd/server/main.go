package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/app"
	"github.com/grafana-toolbox/grafana-wtf/internal/config"
	"github.com/grafana-toolbox/grafana-wtf/internal/handler/tools"
	"github.com/grafana-toolbox/grafana-wtf/internal/logger"
	mcpserver "github.com/grafana-toolbox/grafana-wtf/internal/mcp-server"
	"github.com/grafana-toolbox/grafana-wtf/internal/telemetry"
	"github.com/grafana-toolbox/grafana-wtf/internal/version"
	"github.com/grafana-toolbox/grafana-wtf/internal/wtf"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Sprintf("Failed to load config: %v", err))
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.LogLevel(cfg.LogLevel))
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Sprintf("Failed to initialize logger: %v", err))
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	shutdown, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, version.Version, log)
	if err != nil {
		log.Fatal("Failed to set up telemetry", zap.Error(err))
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Warn("Failed to shut down telemetry", zap.Error(err))
		}
	}()

	// In cloud mode, every request brings its own token.
	var engine *wtf.Engine
	if cfg.DeploymentMode != config.ModeCloud || cfg.Token != "" {
		if engine, err = app.NewEngine(log, cfg, cfg.Token); err != nil {
			log.Fatal("Failed to create engine", zap.Error(err))
		}
	}
	newEngine := func(token string) (*wtf.Engine, error) {
		return app.NewEngine(log, cfg, token)
	}

	handler := tools.NewHandler(log, engine, newEngine)
	if err := mcpserver.NewMCPServer(log, handler, cfg).Start(); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
