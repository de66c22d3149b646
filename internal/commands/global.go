// Package commands implements the grafana-wtf command line interface.
package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/app"
	"github.com/grafana-toolbox/grafana-wtf/internal/config"
	"github.com/grafana-toolbox/grafana-wtf/internal/logger"
	"github.com/grafana-toolbox/grafana-wtf/internal/report"
	"github.com/grafana-toolbox/grafana-wtf/internal/scan"
	"github.com/grafana-toolbox/grafana-wtf/internal/wtf"
)

// GlobalFlags holds the options shared by all commands and the resources
// derived from them.
type GlobalFlags struct {
	configFile       string
	url              string
	token            string
	selectDashboards string
	format           string
	cacheTTL         string
	concurrency      int
	rateLimit        float64
	timeout          time.Duration
	dropCache        bool
	verbose          bool
	debug            bool
	progress         bool
	color            bool

	set struct {
		url, token, selectDashboards, cacheTTL, concurrency, rateLimit, timeout bool
	}

	Out    io.Writer
	Logger *zap.Logger
	Config *config.Config
}

func (g *GlobalFlags) Register(app *kingpin.Application) {
	app.Flag("grafana-url", "URL to Grafana instance; alternatively, set "+config.GrafanaURL+".").
		IsSetByUser(&g.set.url).
		StringVar(&g.url)
	app.Flag("grafana-token", "Grafana API key or service account token; alternatively, set "+config.GrafanaToken+".").
		IsSetByUser(&g.set.token).
		StringVar(&g.token)
	app.Flag("config", "Path to a YAML file with settings, using the flag names as keys.").
		Default("").
		StringVar(&g.configFile)
	app.Flag("select-dashboard", "Restrict operation to dashboards by UID, comma separated.").
		IsSetByUser(&g.set.selectDashboards).
		StringVar(&g.selectDashboards)
	app.Flag("format", "Output format: json, yaml, text, tree, tabular[:psql|pipe|grid]. The default depends on the command.").
		Default("").
		StringVar(&g.format)
	app.Flag("cache-ttl", "Time-to-live for the request cache in seconds. Use 'inf' to never expire and '0' to disable the cache.").
		IsSetByUser(&g.set.cacheTTL).
		StringVar(&g.cacheTTL)
	app.Flag("drop-cache", "Drop cache before requesting resources.").
		BoolVar(&g.dropCache)
	app.Flag("concurrency", "Number of dashboards fetched in parallel.").
		IsSetByUser(&g.set.concurrency).
		IntVar(&g.concurrency)
	app.Flag("rate-limit", "Maximum number of requests per second, 0 means unlimited.").
		IsSetByUser(&g.set.rateLimit).
		Float64Var(&g.rateLimit)
	app.Flag("timeout", "Timeout for a single request to Grafana.").
		IsSetByUser(&g.set.timeout).
		DurationVar(&g.timeout)
	app.Flag("verbose", "Enable verbose mode.").
		BoolVar(&g.verbose)
	app.Flag("debug", "Enable debug messages.").
		BoolVar(&g.debug)
	app.Flag("progress", "Show a progress bar while fetching dashboards.").
		Default("true").
		BoolVar(&g.progress)
	app.Flag("color", "Colorize text reports written to a terminal.").
		Default("true").
		BoolVar(&g.color)

	app.PreAction(g.setup)
}

func (g *GlobalFlags) overrides() map[string]any {
	o := map[string]any{}
	if g.set.url {
		o[config.KeyURL] = g.url
	}
	if g.set.token {
		o[config.KeyToken] = g.token
	}
	if g.set.selectDashboards {
		o[config.KeySelectDashboards] = g.selectDashboards
	}
	if g.set.cacheTTL {
		o[config.KeyCacheTTL] = g.cacheTTL
	}
	if g.set.concurrency {
		o[config.KeyConcurrency] = g.concurrency
	}
	if g.set.rateLimit {
		o[config.KeyRateLimit] = g.rateLimit
	}
	if g.set.timeout {
		o[config.KeyTimeout] = g.timeout
	}
	if g.debug {
		o[config.KeyLogLevel] = "debug"
	}
	return o
}

func (g *GlobalFlags) setup(_ *kingpin.ParseContext) error {
	if g.Out == nil {
		g.Out = os.Stdout
	}
	cfg, err := config.Load(g.configFile, g.overrides())
	if err != nil {
		return err
	}
	g.Config = cfg

	if g.Logger == nil {
		if g.Logger, err = logger.NewConsoleLogger(logger.LogLevel(cfg.LogLevel)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	g.Logger.Debug("Configuration loaded",
		zap.String("grafana_url", cfg.URL),
		zap.String("cache_ttl", cfg.CacheTTL),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Strings("dashboards", cfg.Dashboards))
	return nil
}

// Engine validates the configuration and connects to Grafana.
func (g *GlobalFlags) Engine() (*wtf.Engine, error) {
	if err := g.Config.Validate(); err != nil {
		return nil, err
	}
	var opts []wtf.Option
	if g.progress && !g.debug {
		opts = append(opts, wtf.WithProgress(scan.NewBarProgress()))
	}
	engine, err := app.NewEngine(g.Logger, g.Config, g.Config.Token, opts...)
	if err != nil {
		return nil, err
	}
	if g.dropCache {
		engine.ClearCache()
	}
	return engine, nil
}

// Format returns the requested output format, or def.
func (g *GlobalFlags) Format(def string) (report.Format, error) {
	if g.format == "" {
		return report.ParseFormat(def)
	}
	return report.ParseFormat(g.format)
}

func (g *GlobalFlags) colored() bool {
	if !g.color {
		return false
	}
	f, ok := g.Out.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
